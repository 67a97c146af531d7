package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InvitationStatus is the lifecycle state of a roster invitation
type InvitationStatus string

const (
	// StatusInvitedNewUser is a pending invitation to an email with no platform account
	StatusInvitedNewUser InvitationStatus = "invited_new_user"
	// StatusInvitedExistingArtist is a pending invitation to an existing platform account
	StatusInvitedExistingArtist InvitationStatus = "invited_existing_artist"
	// StatusAccepted is terminal: the invitee joined the roster
	StatusAccepted InvitationStatus = "accepted"
	// StatusExpired is terminal: the invitation aged past the expiry window
	StatusExpired InvitationStatus = "expired"
)

// Pending reports whether the status is one of the non-terminal invited_* states
func (s InvitationStatus) Pending() bool {
	return s == StatusInvitedNewUser || s == StatusInvitedExistingArtist
}

// Invitation holds the structure for the invitations collection in mongo
type Invitation struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ArtistID   int64              `json:"artist_id" bson:"artistId"`
	Email      string             `json:"email" bson:"email"`
	Token      string             `json:"token" bson:"token"`
	Status     InvitationStatus   `json:"status" bson:"status"`
	InvitedOn  int64              `json:"invited_on" bson:"invitedOn"`
	InvitedBy  int64              `json:"invited_by" bson:"invitedBy"`
	AcceptedBy int64              `json:"accepted_by,omitempty" bson:"acceptedBy,omitempty"`
	AcceptedOn int64              `json:"accepted_on,omitempty" bson:"acceptedOn,omitempty"`
	ExpiredOn  int64              `json:"expired_on,omitempty" bson:"expiredOn,omitempty"`
	LastSentOn int64              `json:"last_sent_on,omitempty" bson:"lastSentOn,omitempty"`
	// Pending mirrors Status.Pending() and is the key of the partial unique index on
	// (artistId, email), so only one open invitation can exist per pair.
	Pending bool `json:"-" bson:"pending,omitempty"`
}

// ErrInvalidInvitation is returned by NewInvitation when a required field is missing
var ErrInvalidInvitation = errors.New("invalid invitation")

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewInvitation builds a pending invitation, normalizing the email address
func NewInvitation(artistID int64, email, token string, status InvitationStatus, invitedBy int64, now time.Time) (Invitation, error) {
	email = NormalizeEmail(email)
	if artistID <= 0 || email == "" || token == "" || !status.Pending() {
		return Invitation{}, ErrInvalidInvitation
	}
	return Invitation{
		ID:        primitive.NewObjectID(),
		ArtistID:  artistID,
		Email:     email,
		Token:     token,
		Status:    status,
		InvitedOn: now.Unix(),
		InvitedBy: invitedBy,
		Pending:   true,
	}, nil
}

// InvitedAt returns InvitedOn as a time.Time
func (i Invitation) InvitedAt() time.Time {
	return time.Unix(i.InvitedOn, 0)
}

// ExpiryCutoff returns the invitedOn value below which an invitation is expired at now.
// Both sides are whole seconds, matching how InvitedOn is stored.
func ExpiryCutoff(now time.Time, expiry time.Duration) int64 {
	return now.Unix() - int64(expiry/time.Second)
}

// IsExpired reports whether the invitation is older than the expiry window at now
func (i Invitation) IsExpired(now time.Time, expiry time.Duration) bool {
	return i.InvitedOn < ExpiryCutoff(now, expiry)
}
