package borrows

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. Member name and book
// title are stored with the loan so history survives catalogue edits.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const borrowColumns = `id, member_id, member_name, book_id, book_title, borrowed_on, due_on, returned_on`

// ListBorrows returns all loans.
func (r *Repository) ListBorrows(ctx context.Context) ([]Borrow, error) {
	return r.query(ctx, `SELECT `+borrowColumns+` FROM borrows ORDER BY id`)
}

// ListByMember returns one member's loans.
func (r *Repository) ListByMember(ctx context.Context, memberID int64) ([]Borrow, error) {
	return r.query(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE member_id = $1 ORDER BY id`, memberID)
}

// GetBorrow fetches a loan by ID.
func (r *Repository) GetBorrow(ctx context.Context, id int64) (*Borrow, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1`, id)
	return mapNoRows(scanBorrow(row))
}

// Checkout decrements availability and inserts the loan in one transaction.
func (r *Repository) Checkout(ctx context.Context, nb NewBorrow) (*Borrow, error) {
	var out *Borrow
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var title string
		err := tx.QueryRow(ctx, `
UPDATE books SET available = available - 1
WHERE id = $1 AND available > 0
RETURNING title`, nb.BookID).Scan(&title)
		if errors.Is(err, pgx.ErrNoRows) {
			return missingOrUnavailable(ctx, tx, nb.BookID)
		}
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
INSERT INTO borrows (member_id, member_name, book_id, book_title, borrowed_on, due_on)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+borrowColumns,
			nb.MemberID, nb.MemberName, nb.BookID, title, nb.BorrowedOn, nb.DueOn)
		out, err = scanBorrow(row)
		if catalog.IsUniqueViolation(err) {
			return ErrAlreadyBorrowed
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Return closes an open loan and puts the copy back in one transaction.
func (r *Repository) Return(ctx context.Context, id int64, on time.Time) (*Borrow, error) {
	var out *Borrow
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
UPDATE borrows SET returned_on = $2
WHERE id = $1 AND returned_on IS NULL
RETURNING `+borrowColumns, id, on)
		b, err := scanBorrow(row)
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM borrows WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrAlreadyReturned
			}
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out = b
		return release(ctx, tx, b.BookID)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDates replaces the due and return dates. Recording a first return
// releases the copy.
func (r *Repository) UpdateDates(ctx context.Context, id int64, input DatesInput) (*Borrow, error) {
	var out *Borrow
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := mapNoRows(scanBorrow(tx.QueryRow(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1 FOR UPDATE`, id)))
		if err != nil {
			return err
		}
		if current.ReturnedOn == nil && input.ReturnedOn != nil {
			if err := release(ctx, tx, current.BookID); err != nil {
				return err
			}
		}
		row := tx.QueryRow(ctx, `
UPDATE borrows SET due_on = $2, returned_on = COALESCE($3, returned_on)
WHERE id = $1
RETURNING `+borrowColumns, id, input.DueOn, input.ReturnedOn)
		out, err = scanBorrow(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) query(ctx context.Context, sql string, args ...any) ([]Borrow, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Borrow
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func release(ctx context.Context, tx pgx.Tx, bookID int64) error {
	_, err := tx.Exec(ctx, `UPDATE books SET available = LEAST(copies, available + 1) WHERE id = $1`, bookID)
	return err
}

func missingOrUnavailable(ctx context.Context, tx pgx.Tx, bookID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return catalog.ErrUnavailable
	}
	return catalog.ErrNotFound
}

func scanBorrow(row pgx.Row) (*Borrow, error) {
	var (
		b                       Borrow
		borrowed, due, returned pgtype.Date
	)
	if err := row.Scan(&b.ID, &b.MemberID, &b.MemberName, &b.BookID, &b.BookTitle, &borrowed, &due, &returned); err != nil {
		return nil, err
	}
	b.BorrowedOn = Day(borrowed.Time)
	b.DueOn = Day(due.Time)
	if returned.Valid {
		on := Day(returned.Time)
		b.ReturnedOn = &on
	}
	return &b, nil
}

func mapNoRows(b *Borrow, err error) (*Borrow, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

var _ RepositoryPort = (*Repository)(nil)
