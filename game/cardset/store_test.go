package cardset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
)

func testSet(name string, n int) *engine.CardSet {
	images := make([]string, n)
	for i := range images {
		images[i] = fmt.Sprintf("https://cdn.example.com/images/%s/1700000000000-%d.jpg", name, i)
	}
	return &engine.CardSet{Name: name, Images: images}
}

// runStoreContract exercises the behaviour every backend shares
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "nothing here")
		assert.ErrorIs(t, err, ErrCardSetNotFound)
	})

	t.Run("create and get", func(t *testing.T) {
		set := testSet("vacation", 9)
		require.NoError(t, store.Create(ctx, set))
		assert.False(t, set.CreatedAt.IsZero())

		got, err := store.Get(ctx, "vacation")
		require.NoError(t, err)
		assert.Equal(t, "vacation", got.Name)
		assert.Equal(t, set.Images, got.Images)

		size, err := got.BoardSize()
		require.NoError(t, err)
		assert.Equal(t, engine.Medium, size)
	})

	t.Run("name taken", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, testSet("pets", 4)))
		err := store.Create(ctx, testSet("pets", 12))
		assert.ErrorIs(t, err, ErrCardSetExists)

		// The original document is untouched
		got, err := store.Get(ctx, "pets")
		require.NoError(t, err)
		assert.Len(t, got.Images, 4)
	})

	t.Run("invalid set rejected", func(t *testing.T) {
		err := store.Create(ctx, testSet("odd", 5))
		assert.ErrorIs(t, err, engine.ErrInvalidCardSet)
		_, err = store.Get(ctx, "odd")
		assert.ErrorIs(t, err, ErrCardSetNotFound)
	})

	t.Run("list", func(t *testing.T) {
		infos, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		assert.Equal(t, "pets", infos[0].Name)
		assert.Equal(t, engine.Easy, infos[0].BoardSize)
		assert.Equal(t, 4, infos[0].NumImages)
		assert.Equal(t, "vacation", infos[1].Name)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "pets"))
		_, err := store.Get(ctx, "pets")
		assert.ErrorIs(t, err, ErrCardSetNotFound)
		assert.ErrorIs(t, store.Delete(ctx, "pets"), ErrCardSetNotFound)
	})

	t.Run("concurrent create has one winner", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := store.Create(ctx, testSet("race", 4))
				if err == nil {
					mu.Lock()
					winners++
					mu.Unlock()
					return
				}
				assert.True(t, errors.Is(err, ErrCardSetExists), "unexpected error: %v", err)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
	})
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "cardsets"), nil)
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)
}

func TestFileStore_SkipsUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))
	require.NoError(t, store.Create(context.Background(), testSet("good", 4)))

	infos, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "good", infos[0].Name)
}

func TestFileStore_RefreshCache(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSet("cached", 4)))
	require.NoError(t, os.Remove(filepath.Join(dir, "cached.json")))

	// Still served from cache until refreshed
	_, err = store.Get(ctx, "cached")
	require.NoError(t, err)

	store.RefreshCache()
	_, err = store.Get(ctx, "cached")
	assert.ErrorIs(t, err, ErrCardSetNotFound)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, nil)
	defer store.Close()

	runStoreContract(t, store)

	assert.True(t, mr.Exists(redisKeyPrefix+"vacation"))
}

func TestRedisStore_ListDropsStaleIndexEntries(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStoreFromURL(context.Background(), "redis://"+mr.Addr(), nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, testSet("fleeting", 4)))
	mr.Del(redisKeyPrefix + "fleeting")

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	members, err := mr.Members(redisIndexKey)
	if err == nil {
		assert.NotContains(t, members, "fleeting")
	}
}

func TestNewRedisStoreFromURL_Errors(t *testing.T) {
	_, err := NewRedisStoreFromURL(context.Background(), "", nil)
	assert.Error(t, err)

	_, err = NewRedisStoreFromURL(context.Background(), "not a url", nil)
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("MEMORYMATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("MEMORYMATCH_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := OpenPostgresStore(ctx, url, nil)
	require.NoError(t, err)
	defer store.Close()

	cleanup := func(db *sql.DB) {
		_, err := db.ExecContext(context.Background(), `DELETE FROM card_sets`)
		require.NoError(t, err)
	}
	cleanup(store.db)
	defer cleanup(store.db)

	runStoreContract(t, store)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "firestore"}, nil)
	assert.Error(t, err)
}

func TestOpen_FileBackend(t *testing.T) {
	store, err := Open(context.Background(), Options{Backend: BackendFile, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
}
