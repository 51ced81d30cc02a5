package view_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/librarydesk/internal/borrows"
	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/shared"
	"github.com/librarydesk/librarydesk/internal/view"
)

func sampleEntry(status borrows.Status) borrows.Entry {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return borrows.Entry{
		Borrow: borrows.Borrow{
			ID: 3, MemberID: 2, MemberName: "John Doe", BookID: 1, BookTitle: "Dune",
			BorrowedOn: day, DueOn: day.AddDate(0, 0, 14),
		},
		Status:      status,
		DaysOverdue: 2,
	}
}

func TestPagesRender(t *testing.T) {
	engine, err := view.NewEngine()
	require.NoError(t, err)
	book := catalog.Book{ID: 1, Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Copies: 2, Available: 1, Rating: 4.4}
	admin := &session.Session{Identity: "1", Role: session.RoleAdmin}
	member := &session.Session{Identity: "2", Role: session.RoleUser}

	cases := []struct {
		page string
		user *session.Session
		data any
		want []string
	}{
		{"pages/admin_overview.html", admin, borrows.Dashboard{
			Books: 1, Copies: 2, Available: 1, Members: 3,
			RecentLoans:  []borrows.Entry{sampleEntry(borrows.StatusBorrowed)},
			OverdueLoans: []borrows.Entry{sampleEntry(borrows.StatusOverdue)},
		}, []string{"John Doe", "Dune", "Recent loans", "/admin/books"}},
		{"pages/admin_books.html", admin, catalog.Page{
			Books: []catalog.Book{book}, Pagination: shared.NewPagination(2, 1, 3),
		}, []string{"Frank Herbert", "4.4", "?page=1", "?page=3"}},
		{"pages/user_browse.html", member, catalog.BrowseResult{
			Books: []catalog.Book{book}, Genres: catalog.Genres, Authors: []string{"Frank Herbert"},
		}, []string{"/user/browse/1/borrow", "1 of 2 available"}},
		{"pages/user_overview.html", member, borrows.Overview{
			Current: []borrows.Entry{sampleEntry(borrows.StatusBorrowed)},
			Overdue: []borrows.Entry{sampleEntry(borrows.StatusOverdue)},
		}, []string{"2 days overdue", "/user/history"}},
		{"pages/user_history.html", member, borrows.History{
			Entries: []borrows.Entry{sampleEntry(borrows.StatusReturnedLate)},
		}, []string{"returned late", "Dune"}},
	}
	for _, tc := range cases {
		t.Run(tc.page, func(t *testing.T) {
			res := httptest.NewRecorder()
			err := engine.Render(res, tc.page, view.TemplateData{Title: "T", CSRFToken: "tok", User: tc.user, Data: tc.data})
			require.NoError(t, err)
			body := res.Body.String()
			for _, want := range tc.want {
				assert.Contains(t, body, want)
			}
			assert.Contains(t, body, `value="tok"`)
		})
	}
}
