package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/link-preview/internal/shortener"
)

// Schema creates the url_records table. A row with a NULL url_key is a
// reserved placeholder; the unique index on url_key enforces one record per
// canonical URL.
const Schema = `
CREATE TABLE IF NOT EXISTS url_records (
	code                 TEXT PRIMARY KEY,
	canonical_url        TEXT NOT NULL DEFAULT '',
	url_key              TEXT,
	title                TEXT NOT NULL DEFAULT '',
	description          TEXT NOT NULL DEFAULT '',
	image_url            TEXT NOT NULL DEFAULT '',
	image_screenshot_url TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),

	CONSTRAINT url_records_url_key_unique UNIQUE (url_key)
);
`

const (
	pgUniqueViolation    = "23505"
	urlKeyConstraintName = "url_records_url_key_unique"

	recordColumns = `code, canonical_url, url_key, title, description,
		image_url, image_screenshot_url, created_at, updated_at`
)

// PostgresStore is a PostgreSQL implementation of shortener.Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed record store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, Schema)

	return err
}

func (p *PostgresStore) Reserve(ctx context.Context, code shortener.Code) error {
	query := `
		INSERT INTO url_records (code)
		VALUES ($1)
		ON CONFLICT (code) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query, string(code))
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return shortener.ErrCodeExists
	}

	return nil
}

func (p *PostgresStore) Get(ctx context.Context, code shortener.Code) (*shortener.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM url_records
		WHERE code = $1 AND url_key IS NOT NULL
	`

	record, err := scanRecord(p.pool.QueryRow(ctx, query, string(code)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return record, nil
}

func (p *PostgresStore) FindByURLKey(ctx context.Context, key shortener.URLKey) ([]*shortener.Record, error) {
	query := `SELECT ` + recordColumns + `
		FROM url_records
		WHERE url_key = $1
	`

	rows, err := p.pool.Query(ctx, query, string(key))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*shortener.Record

	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func (p *PostgresStore) Commit(ctx context.Context, record *shortener.Record) (*shortener.Record, bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE url_records
		SET canonical_url = $2, url_key = $3, title = $4, description = $5,
			image_url = $6, image_screenshot_url = $7, created_at = $8, updated_at = $9
		WHERE code = $1 AND url_key IS NULL
	`

	tag, err := tx.Exec(ctx, query,
		string(record.Code),
		record.CanonicalURL,
		string(record.URLKey),
		record.Title,
		record.Description,
		record.ImageURL,
		record.ImageScreenshotURL,
		record.CreatedAt,
		record.UpdatedAt,
	)

	switch {
	case isURLKeyViolation(err):
		// The failed UPDATE holds the placeholder row lock until rollback.
		_ = tx.Rollback(ctx)

		return p.yieldToOwner(ctx, record)
	case err != nil:
		return nil, false, err
	case tag.RowsAffected() == 0:
		return nil, false, shortener.ErrNotReserved
	}

	if err := tx.Commit(ctx); err != nil {
		if isURLKeyViolation(err) {
			return p.yieldToOwner(ctx, record)
		}

		return nil, false, err
	}

	stored := *record

	return &stored, true, nil
}

// yieldToOwner drops the placeholder of a commit that lost the url key and
// returns the record that owns it.
func (p *PostgresStore) yieldToOwner(ctx context.Context, record *shortener.Record) (*shortener.Record, bool, error) {
	if err := p.Release(ctx, record.Code); err != nil {
		return nil, false, err
	}

	owners, err := p.FindByURLKey(ctx, record.URLKey)
	if err != nil {
		return nil, false, err
	}

	if len(owners) == 0 {
		return nil, false, fmt.Errorf("url key %s conflicted but has no owner", record.URLKey)
	}

	return owners[0], false, nil
}

func (p *PostgresStore) Release(ctx context.Context, code shortener.Code) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM url_records WHERE code = $1 AND url_key IS NULL`, string(code))

	return err
}

func (p *PostgresStore) Update(
	ctx context.Context, code shortener.Code, update shortener.RecordUpdate,
) (*shortener.Record, error) {
	query := `
		UPDATE url_records
		SET title = $2, description = $3, image_url = $4, image_screenshot_url = $5, updated_at = $6
		WHERE code = $1 AND url_key IS NOT NULL
		RETURNING ` + recordColumns

	record, err := scanRecord(p.pool.QueryRow(ctx, query,
		string(code),
		update.Title,
		update.Description,
		update.ImageURL,
		update.ImageScreenshotURL,
		update.UpdatedAt,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return record, nil
}

func scanRecord(row pgx.Row) (*shortener.Record, error) {
	var (
		record    shortener.Record
		urlKey    *string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&record.Code,
		&record.CanonicalURL,
		&urlKey,
		&record.Title,
		&record.Description,
		&record.ImageURL,
		&record.ImageScreenshotURL,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if urlKey != nil {
		record.URLKey = shortener.URLKey(*urlKey)
	}

	record.CreatedAt = createdAt
	record.UpdatedAt = updatedAt

	return &record, nil
}

func isURLKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == urlKeyConstraintName
}

// Compile-time check.
var _ shortener.Store = (*PostgresStore)(nil)
