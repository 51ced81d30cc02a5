// Package fixtures loads demo accounts, books and loans from YAML.
package fixtures

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/librarydesk/librarydesk/internal/borrows"
	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/users"
)

//go:embed default.yaml
var defaultData []byte

// Dataset is a consistent set of seed records. Book availability already
// accounts for the open loans.
type Dataset struct {
	Accounts []users.Account
	Books    []catalog.Book
	Borrows  []borrows.Borrow
}

type file struct {
	Accounts []struct {
		ID       int64  `yaml:"id"`
		Name     string `yaml:"name"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
		Status   string `yaml:"status"`
		JoinedOn string `yaml:"joined_on"`
	} `yaml:"accounts"`
	Books []struct {
		ID          int64   `yaml:"id"`
		Title       string  `yaml:"title"`
		Author      string  `yaml:"author"`
		Genre       string  `yaml:"genre"`
		PublishedOn string  `yaml:"published_on"`
		Copies      int     `yaml:"copies"`
		Rating      float64 `yaml:"rating"`
		Description string  `yaml:"description"`
	} `yaml:"books"`
	Borrows []struct {
		MemberID int64 `yaml:"member_id"`
		BookID   int64 `yaml:"book_id"`
		Borrowed int   `yaml:"borrowed"`
		Due      int   `yaml:"due"`
		Returned *int  `yaml:"returned"`
	} `yaml:"borrows"`
}

// Load reads path, or the embedded demo data when path is empty.
func Load(path string, now time.Time, cost int) (*Dataset, error) {
	data := defaultData
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("fixtures: read %s: %w", path, err)
		}
	}
	return Parse(data, now, cost)
}

// Parse decodes a fixtures document. Passwords are hashed with bcrypt at cost;
// loan offsets are resolved against now.
func Parse(data []byte, now time.Time, cost int) (*Dataset, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("fixtures: decode: %w", err)
	}
	ds := &Dataset{}
	names := make(map[int64]string, len(f.Accounts))
	for _, a := range f.Accounts {
		role, err := session.ParseRole(a.Role)
		if err != nil {
			return nil, fmt.Errorf("fixtures: account %d: %w", a.ID, err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("fixtures: account %d: hash password: %w", a.ID, err)
		}
		joined, err := parseDate(a.JoinedOn)
		if err != nil {
			return nil, fmt.Errorf("fixtures: account %d: %w", a.ID, err)
		}
		status := users.StatusActive
		if strings.EqualFold(a.Status, string(users.StatusInactive)) {
			status = users.StatusInactive
		}
		ds.Accounts = append(ds.Accounts, users.Account{
			ID:           a.ID,
			Name:         a.Name,
			Email:        strings.ToLower(a.Email),
			PasswordHash: string(hash),
			Role:         role,
			Status:       status,
			JoinedAt:     joined,
		})
		names[a.ID] = a.Name
	}

	books := make(map[int64]int, len(f.Books))
	for _, b := range f.Books {
		published, err := parseDate(b.PublishedOn)
		if err != nil {
			return nil, fmt.Errorf("fixtures: book %d: %w", b.ID, err)
		}
		books[b.ID] = len(ds.Books)
		ds.Books = append(ds.Books, catalog.Book{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Genre:       b.Genre,
			PublishedOn: published,
			Copies:      b.Copies,
			Available:   b.Copies,
			Rating:      b.Rating,
			Description: b.Description,
		})
	}

	today := borrows.Day(now)
	for i, l := range f.Borrows {
		name, ok := names[l.MemberID]
		if !ok {
			return nil, fmt.Errorf("fixtures: borrow %d: unknown member %d", i+1, l.MemberID)
		}
		idx, ok := books[l.BookID]
		if !ok {
			return nil, fmt.Errorf("fixtures: borrow %d: unknown book %d", i+1, l.BookID)
		}
		book := &ds.Books[idx]
		b := borrows.Borrow{
			ID:         int64(i + 1),
			MemberID:   l.MemberID,
			MemberName: name,
			BookID:     l.BookID,
			BookTitle:  book.Title,
			BorrowedOn: today.AddDate(0, 0, l.Borrowed),
			DueOn:      today.AddDate(0, 0, l.Due),
		}
		if l.Returned != nil {
			returned := today.AddDate(0, 0, *l.Returned)
			b.ReturnedOn = &returned
		} else {
			if book.Available == 0 {
				return nil, fmt.Errorf("fixtures: borrow %d: no copy of book %d left", i+1, l.BookID)
			}
			book.Available--
		}
		ds.Borrows = append(ds.Borrows, b)
	}
	return ds, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", v, err)
	}
	return t, nil
}
