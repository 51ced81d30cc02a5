package borrows

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a borrow record does not exist.
	ErrNotFound = errors.New("borrows: record not found")
	// ErrAlreadyReturned is returned when returning a closed loan.
	ErrAlreadyReturned = errors.New("borrows: already returned")
	// ErrAlreadyBorrowed is returned when a member holds an open loan of the same book.
	ErrAlreadyBorrowed = errors.New("borrows: book already on loan to member")
	// ErrInvalidDates is returned for inconsistent due or return dates.
	ErrInvalidDates = errors.New("borrows: invalid dates")
	// ErrUnknownStatus is returned by ParseStatus.
	ErrUnknownStatus = errors.New("borrows: unknown status")
)

// Status is derived from a borrow's dates; it is never stored.
type Status int

const (
	StatusBorrowed Status = iota
	StatusOverdue
	StatusReturned
	StatusReturnedLate
)

var statusNames = [...]string{"borrowed", "overdue", "returned", "returned_late"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Open reports whether the book is still out.
func (s Status) Open() bool {
	return s == StatusBorrowed || s == StatusOverdue
}

// ParseStatus parses a status name.
func ParseStatus(v string) (Status, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, v)
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Borrow is one loan of one copy.
type Borrow struct {
	ID         int64
	MemberID   int64
	MemberName string
	BookID     int64
	BookTitle  string
	BorrowedOn time.Time
	DueOn      time.Time
	ReturnedOn *time.Time
}

// Status derives the loan state on the day of now.
func (b Borrow) Status(now time.Time) Status {
	if b.ReturnedOn != nil {
		if Day(*b.ReturnedOn).After(Day(b.DueOn)) {
			return StatusReturnedLate
		}
		return StatusReturned
	}
	if Day(now).After(Day(b.DueOn)) {
		return StatusOverdue
	}
	return StatusBorrowed
}

// DaysLeft returns whole days until the due date; negative once overdue.
func (b Borrow) DaysLeft(now time.Time) int {
	return int(Day(b.DueOn).Sub(Day(now)).Hours() / 24)
}

// DaysOverdue returns whole days past the due date for open loans, else 0.
func (b Borrow) DaysOverdue(now time.Time) int {
	if b.ReturnedOn != nil {
		return 0
	}
	if left := b.DaysLeft(now); left < 0 {
		return -left
	}
	return 0
}

// NewBorrow describes a checkout. The repository fills in the book title.
type NewBorrow struct {
	MemberID   int64
	MemberName string
	BookID     int64
	BorrowedOn time.Time
	DueOn      time.Time
}

// DatesInput carries admin edits to a loan.
type DatesInput struct {
	DueOn      time.Time
	ReturnedOn *time.Time
}

// Entry pairs a borrow with its status for display.
type Entry struct {
	Borrow
	Status      Status
	DaysLeft    int
	DaysOverdue int
}

// Counts summarises loans by status for the admin pages.
type Counts struct {
	Total    int
	Borrowed int
	Overdue  int
	Returned int
}

// HistoryQuery filters and orders a member's history.
type HistoryQuery struct {
	Status string
	Sort   string
}

// History sort keys.
const (
	SortRecent = "recent"
	SortOldest = "oldest"
	SortTitle  = "title"
)

// HistoryStats summarises a member's history.
type HistoryStats struct {
	Total        int
	Borrowed     int
	Overdue      int
	Returned     int
	ReturnedLate int
}

// History is a member's filtered loan list plus stats over all their loans.
type History struct {
	Entries []Entry
	Stats   HistoryStats
	Query   HistoryQuery
}

// Overview is a member's current loans.
type Overview struct {
	Current []Entry
	Overdue []Entry
	Stats   HistoryStats
}

// Dashboard is the admin landing summary.
type Dashboard struct {
	Books        int
	Copies       int
	Available    int
	Members      int
	Loans        Counts
	RecentLoans  []Entry
	OverdueLoans []Entry
}
