// Package roster runs the artist roster invitation workflow: inviting an email address,
// accepting an invitation into the artist's membership set, and the operator actions
// around them.
package roster

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/artist-platform-api/databases"
	"github.com/linesmerrill/artist-platform-api/models"
	templates "github.com/linesmerrill/artist-platform-api/templates/html"
)

// DefaultExpiry is used when a Workflow is built with a zero expiry
const DefaultExpiry = 30 * 24 * time.Hour

var validate = validator.New()

// Workflow holds the stores and collaborators of the roster workflow
type Workflow struct {
	IDB    databases.InvitationDatabase
	MDB    databases.MembershipDatabase
	UDB    databases.UserDatabase
	ADB    databases.ArtistDatabase
	Auth   Authorizer
	Mailer Mailer
	Events *Events
	Expiry time.Duration

	now      func() time.Time
	newToken func() string
}

// InviteResult is returned by InviteMember
type InviteResult struct {
	Invitation  models.Invitation
	SummaryHTML string
	EmailSent   bool
}

// AcceptResult is returned by AcceptInvitation
type AcceptResult struct {
	Invitation      models.Invitation
	AlreadyAccepted bool
}

// NewWorkflow wires a workflow over the given stores. Roster management is granted to
// the artist owner and confirmed members.
func NewWorkflow(idb databases.InvitationDatabase, mdb databases.MembershipDatabase, udb databases.UserDatabase, adb databases.ArtistDatabase, mailer Mailer, events *Events, expiry time.Duration) *Workflow {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Workflow{
		IDB:      idb,
		MDB:      mdb,
		UDB:      udb,
		ADB:      adb,
		Auth:     ArtistAuthorizer{ADB: adb, MDB: mdb},
		Mailer:   mailer,
		Events:   events,
		Expiry:   expiry,
		now:      time.Now,
		newToken: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// InviteMember creates a pending invitation for email on artistID and sends the
// invitation email. Email delivery failures are logged and do not undo the invitation.
func (w *Workflow) InviteMember(ctx context.Context, artistID int64, email string, requesterUserID int64) (*InviteResult, error) {
	email = models.NormalizeEmail(email)
	if artistID <= 0 {
		return nil, newError(KindInvalidArgument, "artist id is required")
	}
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, newError(KindInvalidArgument, "a valid email address is required")
	}

	if err := w.authorize(ctx, requesterUserID, artistID); err != nil {
		return nil, err
	}

	artist, err := w.ADB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		return nil, w.persistenceError("failed to load artist", err, "artistId", artistID)
	}

	isMember, err := w.isMemberEmail(ctx, artistID, email)
	if err != nil {
		return nil, w.persistenceError("failed to load artist members", err, "artistId", artistID)
	}
	if isMember {
		return nil, newError(KindAlreadyMember, "this person is already a member of the roster")
	}

	if err := w.checkNoPending(ctx, artistID, email); err != nil {
		return nil, err
	}

	status := models.StatusInvitedNewUser
	if _, err := w.UDB.FindByEmail(ctx, email); err == nil {
		status = models.StatusInvitedExistingArtist
	} else if err != mongo.ErrNoDocuments {
		return nil, w.persistenceError("failed to look up user by email", err, "artistId", artistID)
	}

	now := w.now()
	invitation, err := models.NewInvitation(artistID, email, w.newToken(), status, requesterUserID, now)
	if err != nil {
		return nil, newError(KindInvalidArgument, "invitation is missing required fields")
	}

	if _, err := w.IDB.InsertOne(ctx, invitation); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, newError(KindAlreadyPending, "an invitation is already pending for this email")
		}
		return nil, w.persistenceError("failed to create invitation", err, "artistId", artistID)
	}

	sent := w.send(ctx, &invitation, artist.Details.Name)

	w.Events.Publish(Event{
		Type:         EventInvitationCreated,
		ArtistID:     artistID,
		InvitationID: invitation.ID.Hex(),
		Email:        invitation.Email,
		UserID:       requesterUserID,
		At:           now,
	})

	return &InviteResult{
		Invitation:  invitation,
		SummaryHTML: Summary(invitation),
		EmailSent:   sent,
	}, nil
}

// AcceptInvitation adds acceptingUserID to the artist's membership and marks the
// invitation accepted. Accepting an invitation the same user already accepted succeeds
// again with AlreadyAccepted set.
func (w *Workflow) AcceptInvitation(ctx context.Context, token string, acceptingUserID int64) (*AcceptResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newError(KindInvalidToken, "invitation token is invalid")
	}
	if acceptingUserID <= 0 {
		return nil, newError(KindInvalidArgument, "user id is required")
	}

	// two passes: the second one only runs when a concurrent request changed the
	// invitation between our read and our conditional update
	for attempt := 0; attempt < 2; attempt++ {
		invitation, err := w.IDB.FindOne(ctx, bson.M{"token": token})
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, newError(KindInvalidToken, "invitation token is invalid")
			}
			return nil, w.persistenceError("failed to load invitation", err)
		}

		switch {
		case invitation.Status == models.StatusAccepted:
			if invitation.AcceptedBy != acceptingUserID {
				return nil, newError(KindInvalidToken, "invitation token is invalid")
			}
			// re-apply the set add in case the first acceptance stopped half way
			if err := w.addMember(ctx, invitation.ArtistID, acceptingUserID); err != nil {
				return nil, err
			}
			return &AcceptResult{Invitation: *invitation, AlreadyAccepted: true}, nil

		case invitation.Status == models.StatusExpired:
			return nil, newError(KindExpired, "this invitation has expired")

		case invitation.IsExpired(w.now(), w.Expiry):
			if err := w.expire(ctx, invitation); err != nil {
				return nil, err
			}
			return nil, newError(KindExpired, "this invitation has expired")
		}

		now := w.now()
		res, err := w.IDB.UpdateOne(ctx,
			bson.M{"_id": invitation.ID, "pending": true},
			bson.M{
				"$set": bson.M{
					"status":     models.StatusAccepted,
					"acceptedBy": acceptingUserID,
					"acceptedOn": now.Unix(),
				},
				"$unset": bson.M{"pending": ""},
			},
		)
		if err != nil {
			return nil, w.persistenceError("failed to accept invitation", err, "invitationId", invitation.ID.Hex())
		}
		if res.MatchedCount == 0 {
			continue
		}

		if err := w.addMember(ctx, invitation.ArtistID, acceptingUserID); err != nil {
			return nil, err
		}

		invitation.Status = models.StatusAccepted
		invitation.AcceptedBy = acceptingUserID
		invitation.AcceptedOn = now.Unix()
		invitation.Pending = false

		w.Events.Publish(Event{
			Type:         EventInvitationAccepted,
			ArtistID:     invitation.ArtistID,
			InvitationID: invitation.ID.Hex(),
			Email:        invitation.Email,
			UserID:       acceptingUserID,
			At:           now,
		})
		return &AcceptResult{Invitation: *invitation}, nil
	}

	return nil, newError(KindInvalidToken, "invitation token is invalid")
}

// Summary renders the roster card for an invitation
func Summary(invitation models.Invitation) string {
	return templates.RenderInvitationSummary(templates.InvitationSummary{
		Email:     invitation.Email,
		Status:    string(invitation.Status),
		InvitedOn: invitation.InvitedAt(),
	})
}

func (w *Workflow) authorize(ctx context.Context, userID, artistID int64) error {
	ok, err := w.Auth.CanManageRoster(ctx, userID, artistID)
	if err != nil {
		return w.persistenceError("failed to check roster permissions", err, "artistId", artistID, "userId", userID)
	}
	if !ok {
		return newError(KindPermissionDenied, "you do not have permission to manage this roster")
	}
	return nil
}

// isMemberEmail compares email against the registered email of every current member
func (w *Workflow) isMemberEmail(ctx context.Context, artistID int64, email string) (bool, error) {
	membership, err := w.MDB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	if len(membership.MemberUserIDs) == 0 {
		return false, nil
	}
	users, err := w.UDB.Find(ctx, bson.M{"_id": bson.M{"$in": membership.MemberUserIDs}})
	if err != nil {
		return false, err
	}
	for _, u := range users {
		if strings.EqualFold(strings.TrimSpace(u.Details.Email), email) {
			return true, nil
		}
	}
	return false, nil
}

// checkNoPending rejects a second open invitation. An open invitation that has already
// aged out is expired here so the new one can take its place.
func (w *Workflow) checkNoPending(ctx context.Context, artistID int64, email string) error {
	existing, err := w.IDB.FindOne(ctx, bson.M{"artistId": artistID, "email": email, "pending": true})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil
		}
		return w.persistenceError("failed to look up pending invitations", err, "artistId", artistID)
	}
	if !existing.IsExpired(w.now(), w.Expiry) {
		return newError(KindAlreadyPending, "an invitation is already pending for this email")
	}
	return w.expire(ctx, existing)
}

// expire moves a pending invitation to expired. Losing a race to another writer is fine.
func (w *Workflow) expire(ctx context.Context, invitation *models.Invitation) error {
	now := w.now()
	res, err := w.IDB.UpdateOne(ctx,
		bson.M{"_id": invitation.ID, "pending": true},
		expireUpdate(now),
	)
	if err != nil {
		return w.persistenceError("failed to expire invitation", err, "invitationId", invitation.ID.Hex())
	}
	if res.ModifiedCount > 0 {
		w.Events.Publish(Event{
			Type:         EventInvitationExpired,
			ArtistID:     invitation.ArtistID,
			InvitationID: invitation.ID.Hex(),
			Email:        invitation.Email,
			Count:        1,
			At:           now,
		})
	}
	return nil
}

func expireUpdate(now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"status":    models.StatusExpired,
			"expiredOn": now.Unix(),
		},
		"$unset": bson.M{"pending": ""},
	}
}

// addMember is an atomic set add, safe against concurrent acceptances on one artist
func (w *Workflow) addMember(ctx context.Context, artistID, userID int64) error {
	_, err := w.MDB.UpdateOne(ctx,
		bson.M{"_id": artistID},
		bson.M{
			"$addToSet": bson.M{"memberUserIds": userID},
			"$set":      bson.M{"updatedAt": w.now()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return w.persistenceError("failed to add roster member", err, "artistId", artistID, "userId", userID)
	}
	return nil
}

// send delivers the invitation email and records the send time. Failures are logged only.
func (w *Workflow) send(ctx context.Context, invitation *models.Invitation, artistName string) bool {
	if w.Mailer == nil {
		zap.S().Warnw("no mailer configured, invitation email not sent", "invitationId", invitation.ID.Hex())
		return false
	}
	err := w.Mailer.SendInvitationEmail(ctx, invitation.Email, artistName, invitation.Token, invitation.Status)
	if err != nil {
		zap.S().Errorw("invitation email delivery failed",
			"kind", KindEmailDelivery,
			"invitationId", invitation.ID.Hex(),
			"artistId", invitation.ArtistID,
			"error", err,
		)
		return false
	}

	sentOn := w.now().Unix()
	if _, err := w.IDB.UpdateOne(ctx, bson.M{"_id": invitation.ID}, bson.M{"$set": bson.M{"lastSentOn": sentOn}}); err != nil {
		zap.S().Warnw("failed to record invitation send time", "invitationId", invitation.ID.Hex(), "error", err)
	} else {
		invitation.LastSentOn = sentOn
	}
	return true
}

// persistenceError logs the underlying failure with context and returns a generic error
func (w *Workflow) persistenceError(message string, err error, keysAndValues ...interface{}) error {
	zap.S().Errorw(message, append(keysAndValues, "error", err)...)
	return &Error{Kind: KindPersistence, Message: "something went wrong, please try again", Err: err}
}
