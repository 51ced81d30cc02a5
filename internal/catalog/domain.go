package catalog

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a book does not exist.
	ErrNotFound = errors.New("catalog: book not found")
	// ErrDuplicate is returned when a title/author pair already exists.
	ErrDuplicate = errors.New("catalog: duplicate book")
	// ErrUnavailable is returned when no copy is left to lend.
	ErrUnavailable = errors.New("catalog: no copies available")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("catalog: validation failed")
)

// Genres lists the genres a book may be filed under.
var Genres = []string{"Fiction", "Non-Fiction", "Science Fiction", "Mystery", "Romance", "Biography", "History", "Science"}

// Book is a catalogue entry. Available never exceeds Copies.
type Book struct {
	ID          int64
	Title       string
	Author      string
	Genre       string
	PublishedOn time.Time
	Copies      int
	Available   int
	Rating      float64
	Description string
}

// Year returns the publication year, or 0 when unknown.
func (b Book) Year() int {
	if b.PublishedOn.IsZero() {
		return 0
	}
	return b.PublishedOn.Year()
}

// IsAvailable reports whether a copy can be borrowed.
func (b Book) IsAvailable() bool {
	return b.Available > 0
}

// BookInput carries admin-editable fields.
type BookInput struct {
	Title       string    `validate:"required,max=200"`
	Author      string    `validate:"required,max=120"`
	Genre       string    `validate:"required"`
	PublishedOn time.Time `validate:"required"`
	Copies      int       `validate:"min=1,max=1000"`
	Rating      float64   `validate:"min=0,max=5"`
	Description string    `validate:"max=2000"`
}

// BrowseQuery filters and orders the member catalogue.
type BrowseQuery struct {
	Search string
	Genre  string
	Author string
	Sort   string
}

// Sort keys accepted by Browse.
const (
	SortTitle  = "title"
	SortAuthor = "author"
	SortRating = "rating"
	SortDate   = "date"
)

// BrowseResult is a filtered listing plus the facets for the filter controls.
type BrowseResult struct {
	Books   []Book
	Genres  []string
	Authors []string
	Query   BrowseQuery
}
