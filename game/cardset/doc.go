// Package cardset stores custom card sets for the memory matching game.
//
// A card set is a document keyed by a user-chosen game name that lists one
// image URL per pair:
//
//	{"images": ["https://.../images/pets/1700000000000-0.jpg", ...]}
//
// Backends:
//   - FileStore: one JSON file per game name, cached in memory
//   - RedisStore: JSON strings under memorymatch:cardset:<name>, written with SETNX
//   - PostgresStore: the card_sets table, migrated with goose from embedded SQL
//
// Every backend implements service.CardSetStore. Create never overwrites: a
// taken name fails with ErrCardSetExists, and unknown names fail with
// ErrCardSetNotFound.
//
// Usage:
//
//	store, err := cardset.Open(ctx, cardset.Options{Backend: "file", Dir: "data/cardsets"}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	set, err := store.Get(ctx, "vacation")
package cardset
