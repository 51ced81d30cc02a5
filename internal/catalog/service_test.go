package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func sampleBooks() []Book {
	return []Book{
		{ID: 1, Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Genre: "Fiction", PublishedOn: date(1925), Copies: 3, Available: 2, Rating: 4.2},
		{ID: 2, Title: "dune", Author: "Frank Herbert", Genre: "Science Fiction", PublishedOn: date(1965), Copies: 2, Available: 0, Rating: 4.7},
		{ID: 3, Title: "Sapiens", Author: "Yuval Noah Harari", Genre: "History", PublishedOn: date(2011), Copies: 1, Available: 1, Rating: 4.5},
		{ID: 4, Title: "Emma", Author: "Jane Austen", Genre: "Romance", PublishedOn: date(1815), Copies: 1, Available: 1, Rating: 3.9},
	}
}

func titles(books []Book) []string {
	out := make([]string, 0, len(books))
	for _, b := range books {
		out = append(out, b.Title)
	}
	return out
}

func TestBrowseSearchAndFilters(t *testing.T) {
	svc := NewService(NewMemoryRepository(sampleBooks()))
	ctx := context.Background()

	res, err := svc.Browse(ctx, BrowseQuery{Search: "FRANK"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dune"}, titles(res.Books))

	res, err = svc.Browse(ctx, BrowseQuery{Genre: "History"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sapiens"}, titles(res.Books))

	res, err = svc.Browse(ctx, BrowseQuery{Genre: "all", Author: "Jane Austen"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Emma"}, titles(res.Books))
	assert.Len(t, res.Authors, 4)
	assert.Equal(t, Genres, res.Genres)
}

func TestBrowseSorts(t *testing.T) {
	svc := NewService(NewMemoryRepository(sampleBooks()))
	ctx := context.Background()

	cases := map[string][]string{
		SortTitle:  {"dune", "Emma", "Sapiens", "The Great Gatsby"},
		SortAuthor: {"The Great Gatsby", "dune", "Emma", "Sapiens"},
		SortRating: {"dune", "Sapiens", "The Great Gatsby", "Emma"},
		SortDate:   {"Sapiens", "dune", "The Great Gatsby", "Emma"},
		"":         {"dune", "Emma", "Sapiens", "The Great Gatsby"},
	}
	for key, want := range cases {
		res, err := svc.Browse(ctx, BrowseQuery{Sort: key})
		require.NoError(t, err)
		assert.Equal(t, want, titles(res.Books), key)
	}
}

func TestCreateBookValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(nil))
	_, err := svc.CreateBook(context.Background(), BookInput{Title: "", Author: "X", Genre: "Poetry", Copies: 0})
	require.ErrorIs(t, err, ErrValidation)

	var fields FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "Title")
	assert.Contains(t, fields, "Copies")
	assert.Contains(t, fields, "PublishedOn")
	assert.Equal(t, "Unknown genre", fields["Genre"])
}

func TestCreateUpdateDelete(t *testing.T) {
	repo := NewMemoryRepository(sampleBooks())
	svc := NewService(repo)
	ctx := context.Background()

	input := BookInput{Title: " Beloved ", Author: "Toni Morrison", Genre: "Fiction", PublishedOn: date(1987), Copies: 4, Rating: 4.1}
	book, err := svc.CreateBook(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "Beloved", book.Title)
	assert.Equal(t, 4, book.Available)

	_, err = svc.CreateBook(ctx, BookInput{Title: "beloved", Author: "toni morrison", Genre: "Fiction", PublishedOn: date(1987), Copies: 1})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.Reserve(ctx, book.ID)
	require.NoError(t, err)
	input.Copies = 2
	updated, err := svc.UpdateBook(ctx, book.ID, input)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Copies)
	assert.Equal(t, 1, updated.Available, "one copy stays on loan")

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	assert.ErrorIs(t, svc.DeleteBook(ctx, book.ID), ErrNotFound)
}

func TestReserveRelease(t *testing.T) {
	repo := NewMemoryRepository(sampleBooks())
	ctx := context.Background()

	_, err := repo.Reserve(ctx, 2)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = repo.Reserve(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	b, err := repo.Reserve(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Available)

	require.NoError(t, repo.Release(ctx, 3))
	require.NoError(t, repo.Release(ctx, 3))
	got, err := repo.GetBook(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Available, "never exceeds copies")
}

func TestListBooksPaginates(t *testing.T) {
	svc := NewService(NewMemoryRepository(sampleBooks()))
	page, err := svc.ListBooks(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Great Gatsby"}, titles(page.Books))
	assert.True(t, page.Pagination.HasPrev())
	assert.False(t, page.Pagination.HasNext())
}
