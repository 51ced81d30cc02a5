package borrows

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/librarydesk/librarydesk/internal/catalog"
	"github.com/librarydesk/librarydesk/internal/session"
	"github.com/librarydesk/librarydesk/internal/users"
)

// DefaultPeriod is the loan length when none is configured.
const DefaultPeriod = 14 * 24 * time.Hour

// RepositoryPort defines persistence for loans. Checkout and Return adjust the
// book's availability in the same unit of work.
type RepositoryPort interface {
	ListBorrows(ctx context.Context) ([]Borrow, error)
	ListByMember(ctx context.Context, memberID int64) ([]Borrow, error)
	GetBorrow(ctx context.Context, id int64) (*Borrow, error)
	Checkout(ctx context.Context, nb NewBorrow) (*Borrow, error)
	Return(ctx context.Context, id int64, on time.Time) (*Borrow, error)
	UpdateDates(ctx context.Context, id int64, input DatesInput) (*Borrow, error)
}

// Accounts resolves borrowers.
type Accounts interface {
	GetAccount(ctx context.Context, id int64) (*users.Account, error)
	ListAccounts(ctx context.Context) ([]users.Account, error)
}

// Books lists the catalogue for the admin dashboard.
type Books interface {
	ListBooks(ctx context.Context) ([]catalog.Book, error)
}

// Service implements lending rules.
type Service struct {
	repo     RepositoryPort
	accounts Accounts
	books    Books
	period   time.Duration
	now      func() time.Time
}

// NewService constructs a Service. A non-positive period falls back to DefaultPeriod.
func NewService(repo RepositoryPort, accounts Accounts, books Books, period time.Duration) *Service {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Service{repo: repo, accounts: accounts, books: books, period: period, now: time.Now}
}

// WithClock replaces the clock used to derive today.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() time.Time {
	return Day(s.now())
}

// Borrow checks a book out to the member behind identity.
func (s *Service) Borrow(ctx context.Context, identity string, bookID int64) (*Borrow, error) {
	member, err := s.member(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !member.IsActive() || member.Role != session.RoleUser {
		return nil, fmt.Errorf("borrows: account %d may not borrow: %w", member.ID, users.ErrNotFound)
	}
	today := s.today()
	b, err := s.repo.Checkout(ctx, NewBorrow{
		MemberID:   member.ID,
		MemberName: member.Name,
		BookID:     bookID,
		BorrowedOn: today,
		DueOn:      Day(today.Add(s.period)),
	})
	if err != nil {
		return nil, fmt.Errorf("borrows: checkout book %d: %w", bookID, err)
	}
	return b, nil
}

// Return closes an open loan today.
func (s *Service) Return(ctx context.Context, id int64) (*Borrow, error) {
	b, err := s.repo.Return(ctx, id, s.today())
	if err != nil {
		return nil, fmt.Errorf("borrows: return %d: %w", id, err)
	}
	return b, nil
}

// GetBorrow returns one loan.
func (s *Service) GetBorrow(ctx context.Context, id int64) (*Borrow, error) {
	return s.repo.GetBorrow(ctx, id)
}

// UpdateDates changes the due date and optionally records a return. A recorded
// return cannot be cleared and no date may precede the borrow date.
func (s *Service) UpdateDates(ctx context.Context, id int64, input DatesInput) (*Borrow, error) {
	current, err := s.repo.GetBorrow(ctx, id)
	if err != nil {
		return nil, err
	}
	input.DueOn = Day(input.DueOn)
	if input.DueOn.Before(Day(current.BorrowedOn)) {
		return nil, fmt.Errorf("%w: due date before borrow date", ErrInvalidDates)
	}
	if input.ReturnedOn != nil {
		returned := Day(*input.ReturnedOn)
		if returned.Before(Day(current.BorrowedOn)) {
			return nil, fmt.Errorf("%w: return date before borrow date", ErrInvalidDates)
		}
		input.ReturnedOn = &returned
	} else if current.ReturnedOn != nil {
		return nil, fmt.Errorf("%w: return date cannot be cleared", ErrInvalidDates)
	}
	return s.repo.UpdateDates(ctx, id, input)
}

// List returns every loan, optionally filtered by status name, newest first,
// with counts over all loans.
func (s *Service) List(ctx context.Context, status string) ([]Entry, Counts, error) {
	all, err := s.repo.ListBorrows(ctx)
	if err != nil {
		return nil, Counts{}, fmt.Errorf("borrows: list: %w", err)
	}
	filter, err := statusFilter(status)
	if err != nil {
		return nil, Counts{}, err
	}
	entries := s.entries(all)
	sortEntries(entries, SortRecent)
	counts := countEntries(entries)
	return filterEntries(entries, filter), counts, nil
}

// History returns a member's loans filtered and sorted, plus stats over all of them.
func (s *Service) History(ctx context.Context, identity string, q HistoryQuery) (History, error) {
	entries, err := s.memberEntries(ctx, identity)
	if err != nil {
		return History{}, err
	}
	filter, err := statusFilter(q.Status)
	if err != nil {
		return History{}, err
	}
	if q.Sort == "" {
		q.Sort = SortRecent
	}
	sortEntries(entries, q.Sort)
	return History{Entries: filterEntries(entries, filter), Stats: stats(entries), Query: q}, nil
}

// Overview returns a member's open loans, soonest due first.
func (s *Service) Overview(ctx context.Context, identity string) (Overview, error) {
	entries, err := s.memberEntries(ctx, identity)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{Stats: stats(entries)}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DueOn.Before(entries[j].DueOn) })
	for _, e := range entries {
		if !e.Status.Open() {
			continue
		}
		out.Current = append(out.Current, e)
		if e.Status == StatusOverdue {
			out.Overdue = append(out.Overdue, e)
		}
	}
	return out, nil
}

// Dashboard summarises the library for the admin landing page.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return d, fmt.Errorf("borrows: dashboard books: %w", err)
	}
	for _, b := range books {
		d.Books++
		d.Copies += b.Copies
		d.Available += b.Available
	}
	accounts, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return d, fmt.Errorf("borrows: dashboard accounts: %w", err)
	}
	for _, acc := range accounts {
		if acc.Role == session.RoleUser {
			d.Members++
		}
	}
	all, err := s.repo.ListBorrows(ctx)
	if err != nil {
		return d, fmt.Errorf("borrows: dashboard loans: %w", err)
	}
	entries := s.entries(all)
	sortEntries(entries, SortRecent)
	d.Loans = countEntries(entries)
	d.OverdueLoans = filterEntries(entries, func(e Entry) bool { return e.Status == StatusOverdue })
	if len(entries) > 5 {
		entries = entries[:5]
	}
	d.RecentLoans = entries
	return d, nil
}

// Overdue returns every open loan past its due date, most overdue first.
func (s *Service) Overdue(ctx context.Context) ([]Entry, error) {
	all, err := s.repo.ListBorrows(ctx)
	if err != nil {
		return nil, fmt.Errorf("borrows: overdue: %w", err)
	}
	overdue := filterEntries(s.entries(all), func(e Entry) bool { return e.Status == StatusOverdue })
	sort.SliceStable(overdue, func(i, j int) bool { return overdue[i].DaysOverdue > overdue[j].DaysOverdue })
	return overdue, nil
}

// LoanCounts reports per-member totals for the admin user listing.
func (s *Service) LoanCounts(ctx context.Context) (map[int64]users.LoanCounts, error) {
	all, err := s.repo.ListBorrows(ctx)
	if err != nil {
		return nil, fmt.Errorf("borrows: loan counts: %w", err)
	}
	now := s.now()
	out := make(map[int64]users.LoanCounts)
	for _, b := range all {
		c := out[b.MemberID]
		c.Total++
		switch b.Status(now) {
		case StatusBorrowed:
			c.Active++
		case StatusOverdue:
			c.Active++
			c.Overdue++
		}
		out[b.MemberID] = c
	}
	return out, nil
}

func (s *Service) member(ctx context.Context, identity string) (*users.Account, error) {
	id, err := users.ParseIdentity(identity)
	if err != nil {
		return nil, err
	}
	return s.accounts.GetAccount(ctx, id)
}

func (s *Service) memberEntries(ctx context.Context, identity string) ([]Entry, error) {
	id, err := users.ParseIdentity(identity)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListByMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("borrows: member %d: %w", id, err)
	}
	return s.entries(list), nil
}

func (s *Service) entries(list []Borrow) []Entry {
	now := s.now()
	out := make([]Entry, 0, len(list))
	for _, b := range list {
		out = append(out, Entry{
			Borrow:      b,
			Status:      b.Status(now),
			DaysLeft:    b.DaysLeft(now),
			DaysOverdue: b.DaysOverdue(now),
		})
	}
	return out
}

func statusFilter(v string) (func(Entry) bool, error) {
	if v == "" || v == "all" {
		return nil, nil
	}
	status, err := ParseStatus(v)
	if err != nil {
		return nil, err
	}
	return func(e Entry) bool { return e.Status == status }, nil
}

func filterEntries(entries []Entry, keep func(Entry) bool) []Entry {
	if keep == nil {
		return entries
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func countEntries(entries []Entry) Counts {
	c := Counts{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusBorrowed:
			c.Borrowed++
		case StatusOverdue:
			c.Overdue++
		case StatusReturned, StatusReturnedLate:
			c.Returned++
		}
	}
	return c
}

func stats(entries []Entry) HistoryStats {
	st := HistoryStats{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusBorrowed:
			st.Borrowed++
		case StatusOverdue:
			st.Overdue++
		case StatusReturned:
			st.Returned++
		case StatusReturnedLate:
			st.ReturnedLate++
		}
	}
	return st
}

func sortEntries(entries []Entry, key string) {
	col := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch key {
		case SortOldest:
			if !a.BorrowedOn.Equal(b.BorrowedOn) {
				return a.BorrowedOn.Before(b.BorrowedOn)
			}
			return a.ID < b.ID
		case SortTitle:
			if c := col.CompareString(a.BookTitle, b.BookTitle); c != 0 {
				return c < 0
			}
		}
		if !a.BorrowedOn.Equal(b.BorrowedOn) {
			return a.BorrowedOn.After(b.BorrowedOn)
		}
		return a.ID > b.ID
	})
}

// IsUserError reports whether err should be shown to the person who caused it.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrNotFound, ErrAlreadyReturned, ErrAlreadyBorrowed, ErrInvalidDates, ErrUnknownStatus,
		catalog.ErrNotFound, catalog.ErrUnavailable, users.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
