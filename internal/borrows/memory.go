package borrows

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/librarydesk/librarydesk/internal/catalog"
)

// Shelf hands out and takes back copies of books.
type Shelf interface {
	Reserve(ctx context.Context, bookID int64) (*catalog.Book, error)
	Release(ctx context.Context, bookID int64) error
}

// MemoryRepository keeps loans in process memory and adjusts availability on
// the shelf it was built with.
type MemoryRepository struct {
	mu      sync.Mutex
	shelf   Shelf
	borrows map[int64]Borrow
	nextID  int64
}

// NewMemoryRepository returns a repository seeded with loans. Seeded loans are
// assumed to be reflected in the shelf's availability already.
func NewMemoryRepository(shelf Shelf, seed []Borrow) *MemoryRepository {
	repo := &MemoryRepository{shelf: shelf, borrows: make(map[int64]Borrow, len(seed))}
	for _, b := range seed {
		repo.borrows[b.ID] = b
		if b.ID > repo.nextID {
			repo.nextID = b.ID
		}
	}
	return repo
}

// ListBorrows returns all loans ordered by ID.
func (m *MemoryRepository) ListBorrows(ctx context.Context) ([]Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(func(Borrow) bool { return true }), nil
}

// ListByMember returns one member's loans ordered by ID.
func (m *MemoryRepository) ListByMember(ctx context.Context, memberID int64) ([]Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectLocked(func(b Borrow) bool { return b.MemberID == memberID }), nil
}

// GetBorrow returns the loan with id.
func (m *MemoryRepository) GetBorrow(ctx context.Context, id int64) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.borrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyBorrow(b), nil
}

// Checkout reserves a copy and records the loan.
func (m *MemoryRepository) Checkout(ctx context.Context, nb NewBorrow) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.borrows {
		if b.MemberID == nb.MemberID && b.BookID == nb.BookID && b.ReturnedOn == nil {
			return nil, ErrAlreadyBorrowed
		}
	}
	book, err := m.shelf.Reserve(ctx, nb.BookID)
	if err != nil {
		return nil, err
	}
	m.nextID++
	b := Borrow{
		ID:         m.nextID,
		MemberID:   nb.MemberID,
		MemberName: nb.MemberName,
		BookID:     nb.BookID,
		BookTitle:  book.Title,
		BorrowedOn: nb.BorrowedOn,
		DueOn:      nb.DueOn,
	}
	m.borrows[b.ID] = b
	return copyBorrow(b), nil
}

// Return closes an open loan and releases the copy.
func (m *MemoryRepository) Return(ctx context.Context, id int64, on time.Time) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.borrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.ReturnedOn != nil {
		return nil, ErrAlreadyReturned
	}
	if err := m.shelf.Release(ctx, b.BookID); err != nil {
		return nil, err
	}
	b.ReturnedOn = &on
	m.borrows[id] = b
	return copyBorrow(b), nil
}

// UpdateDates replaces the due and return dates. Recording a first return
// releases the copy.
func (m *MemoryRepository) UpdateDates(ctx context.Context, id int64, input DatesInput) (*Borrow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.borrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.ReturnedOn == nil && input.ReturnedOn != nil {
		if err := m.shelf.Release(ctx, b.BookID); err != nil {
			return nil, err
		}
	}
	b.DueOn = input.DueOn
	if input.ReturnedOn != nil {
		returned := *input.ReturnedOn
		b.ReturnedOn = &returned
	}
	m.borrows[id] = b
	return copyBorrow(b), nil
}

func (m *MemoryRepository) selectLocked(keep func(Borrow) bool) []Borrow {
	out := make([]Borrow, 0, len(m.borrows))
	for _, b := range m.borrows {
		if keep(b) {
			out = append(out, *copyBorrow(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func copyBorrow(b Borrow) *Borrow {
	if b.ReturnedOn != nil {
		returned := *b.ReturnedOn
		b.ReturnedOn = &returned
	}
	return &b
}

var _ RepositoryPort = (*MemoryRepository)(nil)
