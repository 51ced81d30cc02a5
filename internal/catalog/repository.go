package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bookColumns = `id, title, author, genre, published_on, copies, available, rating, description`

// ListBooks returns all books.
func (r *Repository) ListBooks(ctx context.Context) ([]Book, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// GetBook fetches a book by ID.
func (r *Repository) GetBook(ctx context.Context, id int64) (*Book, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	return mapErr(scanBook(row))
}

// CreateBook inserts a book with every copy available.
func (r *Repository) CreateBook(ctx context.Context, input BookInput) (*Book, error) {
	row := r.pool.QueryRow(ctx, `
INSERT INTO books (title, author, genre, published_on, copies, available, rating, description)
VALUES ($1, $2, $3, $4, $5, $5, $6, $7)
RETURNING `+bookColumns,
		input.Title, input.Author, input.Genre, input.PublishedOn, input.Copies, input.Rating, input.Description)
	return mapErr(scanBook(row))
}

// UpdateBook replaces editable fields, keeping copies on loan on loan.
func (r *Repository) UpdateBook(ctx context.Context, id int64, input BookInput) (*Book, error) {
	row := r.pool.QueryRow(ctx, `
UPDATE books SET
	title = $2, author = $3, genre = $4, published_on = $5,
	available = LEAST($6, GREATEST(0, available + $6 - copies)),
	copies = $6, rating = $7, description = $8
WHERE id = $1
RETURNING `+bookColumns,
		id, input.Title, input.Author, input.Genre, input.PublishedOn, input.Copies, input.Rating, input.Description)
	return mapErr(scanBook(row))
}

// DeleteBook removes a book.
func (r *Repository) DeleteBook(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBook(row pgx.Row) (*Book, error) {
	var b Book
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.PublishedOn, &b.Copies, &b.Available, &b.Rating, &b.Description); err != nil {
		return nil, err
	}
	return &b, nil
}

func mapErr(b *Book, err error) (*Book, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return b, err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ RepositoryPort = (*Repository)(nil)
