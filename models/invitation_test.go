package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewInvitation(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	inv, err := NewInvitation(42, "  New@Example.COM ", "abc", StatusInvitedNewUser, 7, now)
	assert.NoError(t, err)
	assert.Equal(t, "new@example.com", inv.Email)
	assert.Equal(t, now.Unix(), inv.InvitedOn)
	assert.True(t, inv.Pending)
	assert.False(t, inv.ID.IsZero())

	_, err = NewInvitation(0, "a@example.com", "abc", StatusInvitedNewUser, 7, now)
	assert.ErrorIs(t, err, ErrInvalidInvitation)
	_, err = NewInvitation(42, "   ", "abc", StatusInvitedNewUser, 7, now)
	assert.ErrorIs(t, err, ErrInvalidInvitation)
	_, err = NewInvitation(42, "a@example.com", "", StatusInvitedNewUser, 7, now)
	assert.ErrorIs(t, err, ErrInvalidInvitation)
	_, err = NewInvitation(42, "a@example.com", "abc", StatusAccepted, 7, now)
	assert.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestInvitationIsExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := Invitation{InvitedOn: now.Add(-30 * 24 * time.Hour).Unix()}

	assert.False(t, inv.IsExpired(now, 30*24*time.Hour))
	assert.True(t, inv.IsExpired(now.Add(time.Second), 30*24*time.Hour))

	// fractions of a second do not count, InvitedOn has none
	assert.False(t, inv.IsExpired(now.Add(999*time.Millisecond), 30*24*time.Hour))
	assert.Equal(t, inv.InvitedOn, ExpiryCutoff(now.Add(999*time.Millisecond), 30*24*time.Hour))
}

func TestInvitationStatusPending(t *testing.T) {
	assert.True(t, StatusInvitedNewUser.Pending())
	assert.True(t, StatusInvitedExistingArtist.Pending())
	assert.False(t, StatusAccepted.Pending())
	assert.False(t, StatusExpired.Pending())
}

func TestUserDisplayName(t *testing.T) {
	assert.Equal(t, "Ada", User{Details: UserDetails{Name: "Ada", Username: "ada", Email: "a@example.com"}}.DisplayName())
	assert.Equal(t, "ada", User{Details: UserDetails{Username: "ada", Email: "a@example.com"}}.DisplayName())
	assert.Equal(t, "a@example.com", User{Details: UserDetails{Email: "a@example.com"}}.DisplayName())
}

func TestMembershipHas(t *testing.T) {
	m := Membership{ArtistID: 42, MemberUserIDs: []int64{7, 9}}
	assert.True(t, m.Has(9))
	assert.False(t, m.Has(8))
	assert.False(t, Membership{}.Has(7))
}
