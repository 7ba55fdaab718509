package cardset

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/wricardo/mcp-training/memorymatch/game/engine"
	"github.com/wricardo/mcp-training/memorymatch/game/service"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgreSQL error codes
const uniqueViolationCode = "23505"

const migrationsTable = "memorymatch_migrations"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// slogGooseLogger adapts the goose logger interface to slog
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf logs at error level and leaves exiting to the caller
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate applies the embedded schema migrations
func Migrate(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	goose.SetLogger(&slogGooseLogger{logger: logger.With("component", "migrations")})
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName(migrationsTable)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run card set migrations: %w", err)
	}
	return nil
}

// PostgresStore keeps card sets in the card_sets table
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool
	logger *slog.Logger
}

// NewPostgresStore wraps a database connection managed by the caller
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger.With("component", "cardset", "backend", "postgres"),
	}
}

// OpenPostgresStore connects to databaseURL and applies migrations
func OpenPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database URL required for postgres card set store")
	}
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := Migrate(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	store := NewPostgresStore(db, logger)
	store.ownsDB = true
	return store, nil
}

// Get loads a card set by name
func (s *PostgresStore) Get(ctx context.Context, name string) (*engine.CardSet, error) {
	var (
		images    []byte
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT images, created_at FROM card_sets WHERE name = $1`, name,
	).Scan(&images, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
		}
		return nil, fmt.Errorf("query card set: %w", err)
	}

	set := &engine.CardSet{Name: name, CreatedAt: createdAt}
	if err := json.Unmarshal(images, &set.Images); err != nil {
		return nil, fmt.Errorf("failed to parse images of card set %s: %w", name, err)
	}
	return set, nil
}

// Create inserts a card set; the primary key rejects taken names
func (s *PostgresStore) Create(ctx context.Context, set *engine.CardSet) error {
	if err := engine.ValidateCardSet(set); err != nil {
		return err
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}

	images, err := json.Marshal(set.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO card_sets (name, images, created_at) VALUES ($1, $2, $3)`,
		set.Name, string(images), set.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrCardSetExists, set.Name)
		}
		return fmt.Errorf("insert card set: %w", err)
	}

	s.logger.Info("card set created", "name", set.Name, "images", len(set.Images))
	return nil
}

// List returns every card set, sorted by name
func (s *PostgresStore) List(ctx context.Context) ([]*service.CardSetInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, jsonb_array_length(images), created_at FROM card_sets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list card sets: %w", err)
	}
	defer rows.Close()

	var infos []*service.CardSetInfo
	for rows.Next() {
		var info service.CardSetInfo
		if err := rows.Scan(&info.Name, &info.NumImages, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card set: %w", err)
		}
		info.BoardSize, _ = engine.BoardSizeByValue(info.NumImages * 2)
		infos = append(infos, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate card sets: %w", err)
	}
	return infos, nil
}

// Delete removes a card set
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM card_sets WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete card set: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrCardSetNotFound, name)
	}
	return nil
}

// Close closes the database if the store opened it
func (s *PostgresStore) Close() error {
	if s == nil || !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
