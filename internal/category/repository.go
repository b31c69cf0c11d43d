package category

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-invoice/sage/internal/platform/httpx"
)

// Repository persists categories.
type Repository interface {
	List(ctx context.Context) ([]Category, error)
	GetBySlug(ctx context.Context, slug string) (*Category, error)
	SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository stores categories in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const listSQL = `SELECT c.id, c.title, c.slug, c.description, COUNT(i.id), c.created_at, c.updated_at
FROM categories c
LEFT JOIN invoices i ON i.category_id = c.id`

func (r *PGRepository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, listSQL+` GROUP BY c.id ORDER BY c.title, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (r *PGRepository) GetBySlug(ctx context.Context, slug string) (*Category, error) {
	rows, err := r.pool.Query(ctx, listSQL+` WHERE c.slug = $1 GROUP BY c.id`, slug)
	if err != nil {
		return nil, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PGRepository) SlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE slug = $1 AND id <> $2)`, slug, excludeID).Scan(&exists)
	return exists, err
}

func (r *PGRepository) Create(ctx context.Context, c *Category) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (title, slug, description) VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		c.Title, c.Slug, c.Description).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return translate(err)
}

func (r *PGRepository) Update(ctx context.Context, c *Category) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE categories SET title = $2, slug = $3, description = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`,
		c.ID, c.Title, c.Slug, c.Description).Scan(&c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrCategoryNotFound
	}
	return translate(err)
}

// Delete removes the category; its invoices cascade at the database level.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.InvoiceCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("category slug: %w", httpx.ErrDuplicate)
	}
	return err
}
