package library

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultLoanPeriodDays = 14
	DefaultFinePerDay     = 10.0
)

// Clock supplies "today" to the circulation desk.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// IDGen generates borrow references.
type IDGen interface {
	New() (string, error)
}

type ulidGen struct {
	clock Clock
}

func (g ulidGen) New() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(g.clock.Now().UTC()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Circulation issues and returns books. Every state change of a Borrow and
// the matching stock adjustment of its Book are committed together.
type Circulation struct {
	db         *Database
	clock      Clock
	ids        IDGen
	loanPeriod int
	finePerDay float64
}

// today is the clock's calendar date at midnight UTC.
func (c *Circulation) today() time.Time {
	now := c.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// IssueBook lends one copy of bookID to memberID for loanDays days
// (loanDays <= 0 selects the configured period).
func (c *Circulation) IssueBook(ctx context.Context, memberID, bookID int64, loanDays int) (*Borrow, error) {
	if loanDays <= 0 {
		loanDays = c.loanPeriod
	}
	ref, err := c.ids.New()
	if err != nil {
		return nil, fmt.Errorf("generate borrow ref: %w", err)
	}

	today := c.today()
	borrow := &Borrow{
		Ref:        ref,
		MemberID:   memberID,
		BookID:     bookID,
		BorrowDate: today.Format(DateLayout),
		DueDate:    today.AddDate(0, 0, loanDays).Format(DateLayout),
		Status:     BorrowIssued,
	}

	err = c.db.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		book, err := getBook(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if book.QuantityAvailable <= 0 {
			return NewOutOfStockError(book.Title)
		}
		borrow.BookTitle = book.Title

		member, err := getMember(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if member.ActiveStatus != MemberActive {
			return NewInvalidInputError("member %d is deactivated", memberID)
		}

		res, err := tx.ExecContext(ctx, `INSERT INTO borrow(borrow_ref, member_id, book_id, borrow_date, due_date, borrow_status)
            VALUES(?, ?, ?, ?, ?, ?)`,
			borrow.Ref, borrow.MemberID, borrow.BookID, borrow.BorrowDate, borrow.DueDate, borrow.Status)
		if err != nil {
			return fmt.Errorf("insert borrow: %w", err)
		}
		if borrow.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `UPDATE book SET quantity_available = quantity_available - 1
            WHERE book_id=? AND quantity_available > 0`, bookID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		return mustAffectOne(res, NewOutOfStockError(book.Title))
	})
	if err != nil {
		return nil, err
	}

	c.db.logger.Info("book issued", "borrow_id", borrow.ID, "ref", borrow.Ref,
		"member_id", memberID, "book_id", bookID, "due", borrow.DueDate)
	return borrow, nil
}

// ReturnBook closes an Issued borrow, restores the copy and records the fine.
// A borrow that is already Returned is left untouched and ErrAlreadyReturned
// is reported.
func (c *Circulation) ReturnBook(ctx context.Context, borrowID int64) (*Borrow, error) {
	var borrow *Borrow
	err := c.db.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		b, err := getBorrow(ctx, tx, borrowID)
		if err != nil {
			return err
		}
		if b.Status == BorrowReturned {
			return NewAlreadyReturnedError(borrowID)
		}

		due, err := time.Parse(DateLayout, b.DueDate)
		if err != nil {
			return fmt.Errorf("borrow %d has malformed due date %q: %w", borrowID, b.DueDate, err)
		}
		today := c.today()
		b.FineAmount = ComputeFine(due, today, c.finePerDay)
		b.ReturnDate = sql.NullString{String: today.Format(DateLayout), Valid: true}
		b.Status = BorrowReturned

		res, err := tx.ExecContext(ctx, `UPDATE borrow SET return_date=?, borrow_status=?, fine_amount=?
            WHERE borrow_id=? AND borrow_status=?`,
			b.ReturnDate, b.Status, b.FineAmount, borrowID, BorrowIssued)
		if err != nil {
			return fmt.Errorf("close borrow: %w", err)
		}
		if err := mustAffectOne(res, NewAlreadyReturnedError(borrowID)); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `UPDATE book SET quantity_available = quantity_available + 1
            WHERE book_id=? AND quantity_available < quantity_total`, b.BookID)
		if err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
		if err := mustAffectOne(res, fmt.Errorf("book %d: stock already full, refusing to restore", b.BookID)); err != nil {
			return err
		}
		borrow = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.db.logger.Info("book returned", "borrow_id", borrow.ID, "book_id", borrow.BookID, "fine", borrow.FineAmount)
	return borrow, nil
}

// ComputeFine charges perDay for every whole calendar day returned is past
// due. Returning on or before the due date costs nothing.
func ComputeFine(due, returned time.Time, perDay float64) float64 {
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	r := time.Date(returned.Year(), returned.Month(), returned.Day(), 0, 0, 0, 0, time.UTC)
	daysLate := int(r.Sub(d).Hours() / 24)
	if daysLate <= 0 {
		return 0
	}
	return float64(daysLate) * perDay
}

const borrowColumns = `borrow_id, borrow_ref, member_id, book_id, borrow_date, due_date, return_date,
    fine_amount, borrow_status`

// GetBorrow fetches a single borrow record.
func (c *Circulation) GetBorrow(ctx context.Context, id int64) (*Borrow, error) {
	return getBorrow(ctx, c.db.db, id)
}

func getBorrow(ctx context.Context, q DBTX, id int64) (*Borrow, error) {
	var b Borrow
	err := q.GetContext(ctx, &b, `SELECT `+borrowColumns+` FROM borrow WHERE borrow_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("borrow %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListActiveBorrows returns every Issued borrow, oldest first.
func (c *Circulation) ListActiveBorrows(ctx context.Context) ([]ActiveBorrow, error) {
	var borrows []ActiveBorrow
	err := c.db.Select(ctx, &borrows, `
        SELECT br.borrow_id, m.name AS member_name, b.title AS book_title, br.borrow_date, br.due_date
        FROM borrow br
        JOIN member m ON br.member_id = m.member_id
        JOIN book b ON br.book_id = b.book_id
        WHERE br.borrow_status = ?
        ORDER BY br.borrow_id`, BorrowIssued)
	return borrows, err
}
