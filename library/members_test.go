package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addMember(t *testing.T, mgr *LibraryManager, name, proof string) *Member {
	t.Helper()
	m := &Member{
		Name:          name,
		Address:       "1 Main St",
		ContactNumber: "555-0100",
		Email:         name + "@example.com",
		IDProofType:   "Student ID",
		IDProofNumber: proof,
	}
	require.NoError(t, mgr.Members.AddMember(context.Background(), m))
	return m
}

func TestAddMember(t *testing.T) {
	mgr := newManager(t, WithClock(newClock("2024-03-15")))
	ctx := context.Background()

	m := addMember(t, mgr, "Alice", "S-1")
	require.NotZero(t, m.ID)

	got, err := mgr.Members.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, "2024-03-15", got.MembershipDate)
	assert.Equal(t, MemberActive, got.ActiveStatus)
	assert.Equal(t, "S-1", got.IDProofNumber)
}

func TestAddMemberValidation(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	addMember(t, mgr, "Alice", "S-1")

	tests := []struct {
		name    string
		member  Member
		wantErr error
	}{
		{"no name", Member{ContactNumber: "1"}, ErrInvalidInput},
		{"no contact", Member{Name: "Bob"}, ErrInvalidInput},
		{"duplicate id proof", Member{Name: "Bob", ContactNumber: "1", IDProofNumber: "S-1"}, ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.member
			assert.ErrorIs(t, mgr.Members.AddMember(ctx, &m), tt.wantErr)
		})
	}

	// Members without an ID proof number never collide.
	addMember(t, mgr, "Carol", "")
	addMember(t, mgr, "Dave", "")
}

func TestUpdateMember(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")

	err := mgr.Members.UpdateMember(ctx, m.ID, MemberUpdate{
		Name:    "Alice Smith",
		Phone:   "555-0199",
		Email:   "alice@smith.example",
		Address: "2 High St",
		Status:  MemberActive,
	})
	require.NoError(t, err)

	got, err := mgr.Members.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", got.Name)
	assert.Equal(t, "555-0199", got.ContactNumber)
	assert.Equal(t, "alice@smith.example", got.Email)
	assert.Equal(t, "2 High St", got.Address)
	assert.Equal(t, "S-1", got.IDProofNumber, "id proof is not editable")

	t.Run("unknown member", func(t *testing.T) {
		err := mgr.Members.UpdateMember(ctx, 999, MemberUpdate{Name: "X", Status: MemberActive})
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("bad status", func(t *testing.T) {
		err := mgr.Members.UpdateMember(ctx, m.ID, MemberUpdate{Name: "X", Status: "Suspended"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
	t.Run("blank name", func(t *testing.T) {
		err := mgr.Members.UpdateMember(ctx, m.ID, MemberUpdate{Status: MemberActive})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestDeactivateMemberIsTerminal(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()
	m := addMember(t, mgr, "Alice", "S-1")

	require.NoError(t, mgr.Members.DeactivateMember(ctx, m.ID))
	require.NoError(t, mgr.Members.DeactivateMember(ctx, m.ID), "deactivating twice is a no-op")

	got, err := mgr.Members.GetMember(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, MemberDeactivated, got.ActiveStatus)

	err = mgr.Members.UpdateMember(ctx, m.ID, MemberUpdate{Name: "Alice", Status: MemberActive})
	assert.ErrorIs(t, err, ErrTerminalState)

	// Editing contact details while staying deactivated is allowed.
	err = mgr.Members.UpdateMember(ctx, m.ID, MemberUpdate{Name: "Alice", Phone: "1", Status: MemberDeactivated})
	assert.NoError(t, err)

	assert.ErrorIs(t, mgr.Members.DeactivateMember(ctx, 999), ErrNotFound)
}

func TestListMembers(t *testing.T) {
	mgr := newManager(t)
	addMember(t, mgr, "Alice", "S-1")
	addMember(t, mgr, "Bob", "S-2")

	members, err := mgr.Members.ListMembers(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Alice", members[0].Name)
	assert.Equal(t, "Bob", members[1].Name)
}
