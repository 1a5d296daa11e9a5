package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Directory is the member register.
type Directory struct {
	db    *Database
	clock Clock
}

// MemberUpdate carries the complete new values for the editable member
// fields. Blank values are written as-is; callers that want "keep the old
// value" semantics substitute it before calling UpdateMember.
type MemberUpdate struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Status  MemberStatus
}

const memberColumns = `member_id, name, COALESCE(address,'') AS address, contact_number,
    COALESCE(email,'') AS email, COALESCE(id_proof_type,'') AS id_proof_type,
    COALESCE(id_proof_number,'') AS id_proof_number, COALESCE(membership_date,'') AS membership_date,
    active_status`

// AddMember registers m as Active and fills in its ID. An empty
// MembershipDate becomes today.
func (d *Directory) AddMember(ctx context.Context, m *Member) error {
	m.Name = strings.TrimSpace(m.Name)
	m.ContactNumber = strings.TrimSpace(m.ContactNumber)
	if m.Name == "" {
		return NewInvalidInputError("member name cannot be empty")
	}
	if m.ContactNumber == "" {
		return NewInvalidInputError("contact number cannot be empty")
	}
	if m.MembershipDate == "" {
		m.MembershipDate = d.clock.Now().Format(DateLayout)
	}
	m.ActiveStatus = MemberActive

	res, err := d.db.addMemberStmt.ExecContext(ctx, m.Name, m.Address, m.ContactNumber, m.Email,
		m.IDProofType, nullIfBlank(m.IDProofNumber), m.MembershipDate, m.ActiveStatus)
	if isUniqueViolation(err) {
		return NewConflictError("ID proof number %s is already registered", m.IDProofNumber)
	}
	if err != nil {
		return fmt.Errorf("register member %q: %w", m.Name, err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// GetMember fetches a single member.
func (d *Directory) GetMember(ctx context.Context, id int64) (*Member, error) {
	return getMember(ctx, d.db.db, id)
}

func getMember(ctx context.Context, q DBTX, id int64) (*Member, error) {
	var m Member
	err := q.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM member WHERE member_id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("member %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMembers returns all members.
func (d *Directory) ListMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	err := d.db.Select(ctx, &members, `SELECT `+memberColumns+` FROM member ORDER BY member_id`)
	return members, err
}

// UpdateMember overwrites the editable fields of member id. A Deactivated
// member cannot be set back to Active.
func (d *Directory) UpdateMember(ctx context.Context, id int64, u MemberUpdate) error {
	if strings.TrimSpace(u.Name) == "" {
		return NewInvalidInputError("member name cannot be empty")
	}
	if u.Status != MemberActive && u.Status != MemberDeactivated {
		return NewInvalidInputError("status must be %s or %s, got %q", MemberActive, MemberDeactivated, u.Status)
	}

	return d.db.RunInTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		current, err := getMember(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.ActiveStatus == MemberDeactivated && u.Status != MemberDeactivated {
			return NewTerminalStateError("member %d is deactivated and cannot be reactivated", id)
		}
		_, err = tx.ExecContext(ctx, `UPDATE member
            SET name=?, contact_number=?, email=?, address=?, active_status=?
            WHERE member_id=?`, u.Name, u.Phone, u.Email, u.Address, u.Status, id)
		return err
	})
}

// DeactivateMember flips member id to Deactivated. Deactivating twice is a
// no-op.
func (d *Directory) DeactivateMember(ctx context.Context, id int64) error {
	res, err := d.db.Exec(ctx, `UPDATE member SET active_status=? WHERE member_id=?`, MemberDeactivated, id)
	if err != nil {
		return err
	}
	return mustAffectOne(res, NewNotFoundError("member %d not found", id))
}
