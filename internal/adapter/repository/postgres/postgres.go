// Package postgres stores URL records in the PostgreSQL urls table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shorturl/internal/entity"
)

type urlDB struct {
	URL       string    `db:"url"`
	ShortCode int64     `db:"short_code"`
	CreatedAt time.Time `db:"created_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		OriginalURL: u.URL,
		ShortCode:   u.ShortCode,
		CreatedAt:   u.CreatedAt,
	}
}

// URLRepository runs single statements against the urls table. It performs no
// client-side locking; callers sequencing several calls get no atomicity.
type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) FindByURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.FindByURL"
	const query = `SELECT url, short_code, created_at FROM urls WHERE url = $1 ORDER BY id LIMIT 1`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, originalURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) FindByShortCode(ctx context.Context, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.FindByShortCode"
	const query = `SELECT url, short_code, created_at FROM urls WHERE short_code = $1 ORDER BY id LIMIT 1`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) Count(ctx context.Context) (int64, error) {
	const op = "adapter.repository.postgres.URLRepository.Count"
	const query = `SELECT COUNT(*) FROM urls`

	var n int64

	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("%s: failed to count rows in urls table: %w", op, err)
	}

	return n, nil
}

func (r *URLRepository) NextShortCode(ctx context.Context) (int64, error) {
	const op = "adapter.repository.postgres.URLRepository.NextShortCode"
	const query = `SELECT nextval('short_code_seq')`

	var n int64

	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("%s: failed to advance short_code_seq: %w", op, err)
	}

	return n, nil
}

// SyncShortCodeSequence moves short_code_seq past the largest stored short code,
// so codes handed out by NextShortCode never repeat codes assigned by counting.
func (r *URLRepository) SyncShortCodeSequence(ctx context.Context) error {
	const op = "adapter.repository.postgres.URLRepository.SyncShortCodeSequence"
	const query = `SELECT setval('short_code_seq',
		GREATEST(COALESCE(MAX(short_code), 0), 1),
		COALESCE(MAX(short_code), 0) > 0) FROM urls`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: failed to set short_code_seq: %w", op, err)
	}

	return nil
}

func (r *URLRepository) Save(ctx context.Context, originalURL string, shortCode int64) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(url, short_code) VALUES ($1, $2) RETURNING url, short_code, created_at`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, originalURL, shortCode); err != nil {
		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return url.toEntity(), nil
}
