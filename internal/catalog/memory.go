package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepository keeps books in process memory. It also acts as the shelf
// the in-memory borrow ledger reserves copies from.
type MemoryRepository struct {
	mu     sync.RWMutex
	books  map[int64]Book
	nextID int64
}

// NewMemoryRepository returns a repository seeded with books.
func NewMemoryRepository(books []Book) *MemoryRepository {
	repo := &MemoryRepository{books: make(map[int64]Book, len(books))}
	for _, b := range books {
		if b.Available > b.Copies {
			b.Available = b.Copies
		}
		repo.books[b.ID] = b
		if b.ID > repo.nextID {
			repo.nextID = b.ID
		}
	}
	return repo
}

// ListBooks returns all books ordered by ID.
func (m *MemoryRepository) ListBooks(ctx context.Context) ([]Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Book, 0, len(m.books))
	for _, b := range m.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetBook returns the book with id.
func (m *MemoryRepository) GetBook(ctx context.Context, id int64) (*Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// CreateBook stores a new book with every copy available.
func (m *MemoryRepository) CreateBook(ctx context.Context, input BookInput) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.duplicateLocked(0, input) {
		return nil, ErrDuplicate
	}
	m.nextID++
	b := applyInput(Book{ID: m.nextID}, input)
	b.Available = b.Copies
	m.books[b.ID] = b
	return &b, nil
}

// UpdateBook replaces editable fields.
func (m *MemoryRepository) UpdateBook(ctx context.Context, id int64, input BookInput) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.duplicateLocked(id, input) {
		return nil, ErrDuplicate
	}
	b.Available = adjustAvailable(b, input.Copies)
	b = applyInput(b, input)
	m.books[id] = b
	return &b, nil
}

// DeleteBook removes a book.
func (m *MemoryRepository) DeleteBook(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[id]; !ok {
		return ErrNotFound
	}
	delete(m.books, id)
	return nil
}

// Reserve takes one available copy of a book.
func (m *MemoryRepository) Reserve(ctx context.Context, id int64) (*Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Available <= 0 {
		return nil, ErrUnavailable
	}
	b.Available--
	m.books[id] = b
	return &b, nil
}

// Release puts one copy back on the shelf. Releasing a deleted book is a no-op.
func (m *MemoryRepository) Release(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	if b.Available < b.Copies {
		b.Available++
		m.books[id] = b
	}
	return nil
}

func (m *MemoryRepository) duplicateLocked(skip int64, input BookInput) bool {
	for id, b := range m.books {
		if id != skip && strings.EqualFold(b.Title, input.Title) && strings.EqualFold(b.Author, input.Author) {
			return true
		}
	}
	return false
}

func applyInput(b Book, input BookInput) Book {
	b.Title = input.Title
	b.Author = input.Author
	b.Genre = input.Genre
	b.PublishedOn = input.PublishedOn
	b.Copies = input.Copies
	b.Rating = input.Rating
	b.Description = input.Description
	return b
}

var _ RepositoryPort = (*MemoryRepository)(nil)
