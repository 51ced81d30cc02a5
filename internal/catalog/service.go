package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/librarydesk/librarydesk/internal/shared"
)

// RepositoryPort defines persistence for books.
type RepositoryPort interface {
	ListBooks(ctx context.Context) ([]Book, error)
	GetBook(ctx context.Context, id int64) (*Book, error)
	CreateBook(ctx context.Context, input BookInput) (*Book, error)
	UpdateBook(ctx context.Context, id int64, input BookInput) (*Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// FieldErrors maps form fields to messages. It matches ErrValidation.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, msg := range f {
		parts = append(parts, field+": "+msg)
	}
	sort.Strings(parts)
	return "catalog: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match ErrValidation.
func (f FieldErrors) Unwrap() error { return ErrValidation }

// Page is one page of the admin listing.
type Page struct {
	Books      []Book
	Pagination shared.Pagination
}

// Service implements catalogue rules on top of a repository.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ListBooks returns a page of books ordered by title.
func (s *Service) ListBooks(ctx context.Context, page, perPage int) (Page, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("catalog: list: %w", err)
	}
	sortBooks(books, SortTitle)
	p := shared.NewPagination(page, perPage, len(books))
	start, end := p.Bounds()
	return Page{Books: books[start:end], Pagination: p}, nil
}

// GetBook returns one book.
func (s *Service) GetBook(ctx context.Context, id int64) (*Book, error) {
	return s.repo.GetBook(ctx, id)
}

// Browse filters the catalogue for members. Search matches title or author
// case-insensitively; genre and author filters are exact, "all" or "" disable
// them.
func (s *Service) Browse(ctx context.Context, q BrowseQuery) (BrowseResult, error) {
	books, err := s.repo.ListBooks(ctx)
	if err != nil {
		return BrowseResult{}, fmt.Errorf("catalog: browse: %w", err)
	}
	authorSet := make(map[string]struct{})
	for _, b := range books {
		authorSet[b.Author] = struct{}{}
	}
	authors := make([]string, 0, len(authorSet))
	for a := range authorSet {
		authors = append(authors, a)
	}
	sort.Strings(authors)

	search := strings.ToLower(strings.TrimSpace(q.Search))
	filtered := books[:0]
	for _, b := range books {
		if search != "" &&
			!strings.Contains(strings.ToLower(b.Title), search) &&
			!strings.Contains(strings.ToLower(b.Author), search) {
			continue
		}
		if !matchesFacet(q.Genre, b.Genre) || !matchesFacet(q.Author, b.Author) {
			continue
		}
		filtered = append(filtered, b)
	}
	if q.Sort == "" {
		q.Sort = SortTitle
	}
	sortBooks(filtered, q.Sort)
	return BrowseResult{Books: filtered, Genres: Genres, Authors: authors, Query: q}, nil
}

// CreateBook validates input and stores a new book with every copy available.
func (s *Service) CreateBook(ctx context.Context, input BookInput) (*Book, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}
	return s.repo.CreateBook(ctx, normalise(input))
}

// UpdateBook validates input and updates a book. Copies on loan stay on loan.
func (s *Service) UpdateBook(ctx context.Context, id int64, input BookInput) (*Book, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}
	return s.repo.UpdateBook(ctx, id, normalise(input))
}

// DeleteBook removes a book.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	return s.repo.DeleteBook(ctx, id)
}

func (s *Service) check(input BookInput) error {
	errs := FieldErrors{}
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs[fe.Field()] = fieldMessage(fe)
		}
	}
	if _, ok := errs["Genre"]; !ok && !knownGenre(input.Genre) {
		errs["Genre"] = "Unknown genre"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + fe.Param()
	case "max":
		return "Must be at most " + fe.Param()
	}
	return fe.Error()
}

func knownGenre(genre string) bool {
	for _, g := range Genres {
		if g == genre {
			return true
		}
	}
	return false
}

func matchesFacet(filter, value string) bool {
	return filter == "" || strings.EqualFold(filter, "all") || filter == value
}

func normalise(input BookInput) BookInput {
	input.Title = strings.TrimSpace(input.Title)
	input.Author = strings.TrimSpace(input.Author)
	input.Description = strings.TrimSpace(input.Description)
	return input
}

// adjustAvailable keeps the number of copies on loan constant when Copies
// changes, clamped to [0, copies].
func adjustAvailable(book Book, copies int) int {
	available := book.Available + copies - book.Copies
	if available < 0 {
		return 0
	}
	if available > copies {
		return copies
	}
	return available
}

func sortBooks(books []Book, key string) {
	col := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(books, func(i, j int) bool {
		a, b := books[i], books[j]
		switch key {
		case SortAuthor:
			if c := col.CompareString(a.Author, b.Author); c != 0 {
				return c < 0
			}
		case SortRating:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case SortDate:
			if a.Year() != b.Year() {
				return a.Year() > b.Year()
			}
		}
		return col.CompareString(a.Title, b.Title) < 0
	})
}
