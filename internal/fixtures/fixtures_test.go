package fixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/librarydesk/librarydesk/internal/borrows"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/users"
)

var now = time.Date(2024, time.May, 1, 9, 30, 0, 0, time.UTC)

func TestLoadDefault(t *testing.T) {
	ds, err := Load("", now, bcrypt.MinCost)
	require.NoError(t, err)
	require.Len(t, ds.Accounts, 4)
	require.Len(t, ds.Books, 5)
	require.Len(t, ds.Borrows, 6)

	admin := ds.Accounts[0]
	assert.Equal(t, session.RoleAdmin, admin.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte("admin123")))
	assert.Equal(t, users.StatusInactive, ds.Accounts[3].Status)

	assert.Equal(t, "1984", ds.Books[2].Title)
	assert.Equal(t, 1925, ds.Books[0].Year())
	assert.Equal(t, 4, ds.Books[0].Available, "one open loan of Gatsby")
	assert.Equal(t, 2, ds.Books[1].Available, "Mockingbird: one returned, one open")

	statuses := map[borrows.Status]int{}
	for _, b := range ds.Borrows {
		statuses[b.Status(now)]++
	}
	assert.Equal(t, map[borrows.Status]int{
		borrows.StatusBorrowed:     3,
		borrows.StatusOverdue:      1,
		borrows.StatusReturned:     1,
		borrows.StatusReturnedLate: 1,
	}, statuses)
}

func TestParseRejectsInconsistentData(t *testing.T) {
	cases := map[string]string{
		"unknown role": `
accounts:
  - {id: 1, name: X, email: x@y.z, password: p, role: librarian}
`,
		"unknown book": `
accounts:
  - {id: 1, name: X, email: x@y.z, password: p, role: user}
borrows:
  - {member_id: 1, book_id: 9, borrowed: -1, due: 5}
`,
		"no copies left": `
accounts:
  - {id: 1, name: X, email: x@y.z, password: p, role: user}
books:
  - {id: 1, title: T, author: A, genre: Fiction, copies: 1}
borrows:
  - {member_id: 1, book_id: 1, borrowed: -1, due: 5}
  - {member_id: 1, book_id: 1, borrowed: -2, due: 5}
`,
		"bad date": `
books:
  - {id: 1, title: T, author: A, genre: Fiction, copies: 1, published_on: yesterday}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), now, bcrypt.MinCost)
			assert.Error(t, err)
		})
	}
}
