package library

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqIDs hands out predictable borrow references.
type seqIDs struct{ n int }

func (s *seqIDs) New() (string, error) {
	s.n++
	return fmt.Sprintf("REF-%03d", s.n), nil
}

type failingIDs struct{}

func (failingIDs) New() (string, error) { return "", errors.New("entropy exhausted") }

func stock(t *testing.T, mgr *LibraryManager, bookID int64) int {
	t.Helper()
	b, err := mgr.Catalog.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, b.QuantityAvailable, 0)
	require.LessOrEqual(t, b.QuantityAvailable, b.QuantityTotal)
	return b.QuantityAvailable
}

func countBorrows(t *testing.T, mgr *LibraryManager) int {
	t.Helper()
	var n int
	require.NoError(t, mgr.db.Get(context.Background(), &n, `SELECT COUNT(*) FROM borrow`))
	return n
}

func TestComputeFine(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse(DateLayout, s)
		require.NoError(t, err)
		return d
	}
	tests := []struct {
		name     string
		due      string
		returned string
		want     float64
	}{
		{"three days late", "2024-01-01", "2024-01-04", 30},
		{"on due date", "2024-01-01", "2024-01-01", 0},
		{"early", "2024-01-10", "2024-01-03", 0},
		{"across month end", "2024-01-30", "2024-02-02", 30},
		{"across leap day", "2024-02-28", "2024-03-01", 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeFine(day(tt.due), day(tt.returned), DefaultFinePerDay))
		})
	}

	// Time of day never produces a partial day.
	late := day("2024-01-02").Add(23 * time.Hour)
	assert.Equal(t, 10.0, ComputeFine(day("2024-01-01"), late, DefaultFinePerDay))
}

func TestIssueAndReturnOnDueDate(t *testing.T) {
	clock := newClock("2024-05-01")
	mgr := newManager(t, WithClock(clock), WithIDGen(&seqIDs{}))
	ctx := context.Background()

	var member *Member
	for i := 1; i <= 7; i++ {
		member = addMember(t, mgr, fmt.Sprintf("Member %d", i), fmt.Sprintf("P-%d", i))
	}
	require.Equal(t, int64(7), member.ID)
	book := addBook(t, mgr, "Solo", "Author", "", 1)

	borrow, err := mgr.Circulation.IssueBook(ctx, 7, book.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, BorrowIssued, borrow.Status)
	assert.Equal(t, "REF-001", borrow.Ref)
	assert.Equal(t, "Solo", borrow.BookTitle)
	assert.Equal(t, "2024-05-01", borrow.BorrowDate)
	assert.Equal(t, "2024-05-15", borrow.DueDate)
	assert.Equal(t, 0, stock(t, mgr, book.ID))

	clock.Set(borrow.DueDate)
	returned, err := mgr.Circulation.ReturnBook(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, BorrowReturned, returned.Status)
	assert.Equal(t, 0.0, returned.FineAmount)
	assert.Equal(t, "2024-05-15", returned.ReturnDate.String)
	assert.Equal(t, 1, stock(t, mgr, book.ID))

	stored, err := mgr.Circulation.GetBorrow(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, *returned, *stored)
}

func TestIssueOutOfStockChangesNothing(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	none := addBook(t, mgr, "Rare", "Author", "", 0)

	_, err := mgr.Circulation.IssueBook(ctx, m.ID, none.ID, 0)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Contains(t, err.Error(), "'Rare' is out of stock")
	assert.Equal(t, 0, stock(t, mgr, none.ID))
	assert.Zero(t, countBorrows(t, mgr))

	one := addBook(t, mgr, "Single", "Author", "", 1)
	_, err = mgr.Circulation.IssueBook(ctx, m.ID, one.ID, 0)
	require.NoError(t, err)
	_, err = mgr.Circulation.IssueBook(ctx, m.ID, one.ID, 0)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 0, stock(t, mgr, one.ID))
	assert.Equal(t, 1, countBorrows(t, mgr))
}

func TestIssueRejectsUnknownOrInactiveParties(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	gone := addMember(t, mgr, "Bob", "S-2")
	require.NoError(t, mgr.Members.DeactivateMember(ctx, gone.ID))
	book := addBook(t, mgr, "Title", "Author", "", 2)

	tests := []struct {
		name     string
		memberID int64
		bookID   int64
		wantErr  error
	}{
		{"unknown book", m.ID, 999, ErrNotFound},
		{"unknown member", 999, book.ID, ErrNotFound},
		{"deactivated member", gone.ID, book.ID, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.Circulation.IssueBook(ctx, tt.memberID, tt.bookID, 0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 2, stock(t, mgr, book.ID))
	assert.Zero(t, countBorrows(t, mgr))
}

func TestIssueFailsWhenRefCannotBeGenerated(t *testing.T) {
	mgr := newManager(t, WithIDGen(failingIDs{}))
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	book := addBook(t, mgr, "Title", "Author", "", 1)

	_, err := mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 0)
	assert.Error(t, err)
	assert.Equal(t, 1, stock(t, mgr, book.ID))
}

func TestLateReturnChargesFine(t *testing.T) {
	clock := newClock("2023-12-18")
	mgr := newManager(t, WithClock(clock))
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	book := addBook(t, mgr, "Title", "Author", "", 1)

	borrow, err := mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 0)
	require.NoError(t, err)
	require.Equal(t, "2024-01-01", borrow.DueDate)

	clock.Set("2024-01-04")
	returned, err := mgr.Circulation.ReturnBook(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, returned.FineAmount)
}

func TestReturnTwiceIsNoOp(t *testing.T) {
	clock := newClock("2024-01-01")
	mgr := newManager(t, WithClock(clock), WithLoanPeriod(3))
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	book := addBook(t, mgr, "Title", "Author", "", 2)

	borrow, err := mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-04", borrow.DueDate)
	assert.Equal(t, 1, stock(t, mgr, book.ID))

	clock.Set("2024-01-06")
	first, err := mgr.Circulation.ReturnBook(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, first.FineAmount)
	assert.Equal(t, 2, stock(t, mgr, book.ID))

	clock.Set("2024-02-01")
	_, err = mgr.Circulation.ReturnBook(ctx, borrow.ID)
	assert.ErrorIs(t, err, ErrAlreadyReturned)

	again, err := mgr.Circulation.GetBorrow(ctx, borrow.ID)
	require.NoError(t, err)
	assert.Equal(t, first.FineAmount, again.FineAmount)
	assert.Equal(t, first.ReturnDate, again.ReturnDate)
	assert.Equal(t, 2, stock(t, mgr, book.ID))
}

func TestReturnUnknownBorrow(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.Circulation.ReturnBook(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExplicitLoanDays(t *testing.T) {
	mgr := newManager(t, WithClock(newClock("2024-01-01")))
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	book := addBook(t, mgr, "Title", "Author", "", 1)

	borrow, err := mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", borrow.DueDate)
}

func TestListActiveBorrows(t *testing.T) {
	mgr := newManager(t, WithClock(newClock("2024-01-01")))
	ctx := context.Background()
	alice := addMember(t, mgr, "Alice", "S-1")
	bob := addMember(t, mgr, "Bob", "S-2")
	dune := addBook(t, mgr, "Dune", "Herbert", "", 2)
	emma := addBook(t, mgr, "Emma", "Austen", "", 1)

	b1, err := mgr.Circulation.IssueBook(ctx, alice.ID, dune.ID, 0)
	require.NoError(t, err)
	_, err = mgr.Circulation.IssueBook(ctx, bob.ID, emma.ID, 0)
	require.NoError(t, err)
	_, err = mgr.Circulation.IssueBook(ctx, bob.ID, dune.ID, 0)
	require.NoError(t, err)
	_, err = mgr.Circulation.ReturnBook(ctx, b1.ID)
	require.NoError(t, err)

	active, err := mgr.Circulation.ListActiveBorrows(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, ActiveBorrow{BorrowID: 2, MemberName: "Bob", BookTitle: "Emma", BorrowDate: "2024-01-01", DueDate: "2024-01-15"}, active[0])
	assert.Equal(t, "Dune", active[1].BookTitle)
	assert.Equal(t, int64(3), active[1].BorrowID)
}

func TestULIDRefsAreUnique(t *testing.T) {
	gen := ulidGen{clock: newClock("2024-01-01")}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := gen.New()
		require.NoError(t, err)
		require.Len(t, id, 26)
		require.False(t, seen[id], "duplicate ref %s", id)
		seen[id] = true
	}
}

const failStockTrigger = `CREATE TRIGGER fail_stock BEFORE UPDATE OF quantity_available ON book
    BEGIN SELECT RAISE(ABORT, 'boom'); END`

func TestIssueRollsBackWhenStockUpdateFails(t *testing.T) {
	mgr := newManager(t, WithClock(newClock("2024-01-01")))
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")
	book := addBook(t, mgr, "Title", "Author", "", 2)

	_, err := mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 0)
	require.NoError(t, err)

	_, err = mgr.db.Exec(ctx, failStockTrigger)
	require.NoError(t, err)

	_, err = mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decrement stock")
	assert.Equal(t, 1, countBorrows(t, mgr))
	assert.Equal(t, 1, stock(t, mgr, book.ID))
}

func TestReturnRollsBackWhenStockRestoreFails(t *testing.T) {
	tests := []struct {
		name    string
		setup   string
		wantErr string
	}{
		{name: "update aborted", setup: failStockTrigger, wantErr: "restore stock"},
		{name: "stock already full", setup: `UPDATE book SET quantity_available = quantity_total`, wantErr: "stock already full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock("2024-01-01")
			mgr := newManager(t, WithClock(clock))
			ctx := context.Background()
			m := addMember(t, mgr, "Alice", "S-1")
			book := addBook(t, mgr, "Title", "Author", "", 1)

			borrow, err := mgr.Circulation.IssueBook(ctx, m.ID, book.ID, 0)
			require.NoError(t, err)

			_, err = mgr.db.Exec(ctx, tt.setup)
			require.NoError(t, err)
			before := stock(t, mgr, book.ID)

			// Late enough that a committed return would carry a fine.
			clock.Set("2024-02-01")
			_, err = mgr.Circulation.ReturnBook(ctx, borrow.ID)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			stored, err := mgr.Circulation.GetBorrow(ctx, borrow.ID)
			require.NoError(t, err)
			assert.Equal(t, BorrowIssued, stored.Status)
			assert.False(t, stored.ReturnDate.Valid)
			assert.Zero(t, stored.FineAmount)
			assert.Equal(t, before, stock(t, mgr, book.ID))
		})
	}
}
