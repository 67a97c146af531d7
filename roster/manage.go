package roster

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/artist-platform-api/models"
)

// ResendInvitation re-sends the email of a pending invitation. It is the retry path for
// a failed delivery; calling InviteMember again would be rejected as already pending.
func (w *Workflow) ResendInvitation(ctx context.Context, artistID int64, invitationID string, requesterUserID int64) (*InviteResult, error) {
	if artistID <= 0 {
		return nil, newError(KindInvalidArgument, "artist id is required")
	}
	id, err := primitive.ObjectIDFromHex(invitationID)
	if err != nil {
		return nil, newError(KindInvalidArgument, "invitation id is invalid")
	}

	if err := w.authorize(ctx, requesterUserID, artistID); err != nil {
		return nil, err
	}

	invitation, err := w.IDB.FindOne(ctx, bson.M{"_id": id, "artistId": artistID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, newError(KindNotFound, "invitation not found")
		}
		return nil, w.persistenceError("failed to load invitation", err, "invitationId", invitationID)
	}

	switch {
	case invitation.Status == models.StatusAccepted:
		return nil, newError(KindInvalidArgument, "this invitation has already been accepted")
	case invitation.Status == models.StatusExpired:
		return nil, newError(KindExpired, "this invitation has expired")
	case invitation.IsExpired(w.now(), w.Expiry):
		if err := w.expire(ctx, invitation); err != nil {
			return nil, err
		}
		return nil, newError(KindExpired, "this invitation has expired")
	}

	artist, err := w.ADB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		return nil, w.persistenceError("failed to load artist", err, "artistId", artistID)
	}

	if !w.send(ctx, invitation, artist.Details.Name) {
		return nil, newError(KindEmailDelivery, "failed to deliver the invitation email, please try again later")
	}

	w.Events.Publish(Event{
		Type:         EventInvitationResent,
		ArtistID:     artistID,
		InvitationID: invitation.ID.Hex(),
		Email:        invitation.Email,
		UserID:       requesterUserID,
		At:           w.now(),
	})

	return &InviteResult{
		Invitation:  *invitation,
		SummaryHTML: Summary(*invitation),
		EmailSent:   true,
	}, nil
}

// ListRoster returns the owner, the confirmed members and the open invitations of an artist
func (w *Workflow) ListRoster(ctx context.Context, artistID int64, requesterUserID int64) (*models.Roster, error) {
	if artistID <= 0 {
		return nil, newError(KindInvalidArgument, "artist id is required")
	}
	if err := w.authorize(ctx, requesterUserID, artistID); err != nil {
		return nil, err
	}

	artist, err := w.ADB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		return nil, w.persistenceError("failed to load artist", err, "artistId", artistID)
	}

	ids := []int64{artist.Details.OwnerID}
	membership, err := w.MDB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, w.persistenceError("failed to load artist members", err, "artistId", artistID)
	}
	if membership != nil {
		for _, id := range membership.MemberUserIDs {
			if id != artist.Details.OwnerID {
				ids = append(ids, id)
			}
		}
	}

	users, err := w.UDB.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, w.persistenceError("failed to load member accounts", err, "artistId", artistID)
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	roster := &models.Roster{
		ArtistID:    artistID,
		Members:     make([]models.RosterMember, 0, len(ids)),
		Invitations: []models.InvitationResponse{},
	}
	for _, id := range ids {
		member := models.RosterMember{UserID: id, Owner: id == artist.Details.OwnerID}
		if u, ok := byID[id]; ok {
			member.Name = u.DisplayName()
			member.Email = u.Details.Email
		}
		roster.Members = append(roster.Members, member)
	}

	pending, err := w.IDB.Find(ctx,
		bson.M{"artistId": artistID, "pending": true},
		options.Find().SetSort(bson.D{{Key: "invitedOn", Value: 1}}),
	)
	if err != nil {
		return nil, w.persistenceError("failed to load pending invitations", err, "artistId", artistID)
	}
	now := w.now()
	for _, inv := range pending {
		if inv.IsExpired(now, w.Expiry) {
			continue
		}
		roster.Invitations = append(roster.Invitations, models.InvitationResponse{
			ID:                  inv.ID.Hex(),
			Email:               inv.Email,
			Status:              inv.Status,
			InvitedOn:           inv.InvitedOn,
			RenderedSummaryHTML: Summary(inv),
		})
	}

	return roster, nil
}

// RemoveMember takes a user off the roster. Only the artist owner may do this, and the
// owner cannot remove themselves.
func (w *Workflow) RemoveMember(ctx context.Context, artistID, memberUserID, requesterUserID int64) error {
	if artistID <= 0 || memberUserID <= 0 {
		return newError(KindInvalidArgument, "artist id and user id are required")
	}

	artist, err := w.ADB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return newError(KindPermissionDenied, "you do not have permission to manage this roster")
		}
		return w.persistenceError("failed to load artist", err, "artistId", artistID)
	}
	if artist.Details.OwnerID != requesterUserID {
		return newError(KindPermissionDenied, "only the artist owner can remove members")
	}
	if memberUserID == artist.Details.OwnerID {
		return newError(KindInvalidArgument, "the artist owner cannot be removed from the roster")
	}

	res, err := w.MDB.UpdateOne(ctx,
		bson.M{"_id": artistID},
		bson.M{
			"$pull": bson.M{"memberUserIds": memberUserID},
			"$set":  bson.M{"updatedAt": w.now()},
		},
	)
	if err != nil {
		return w.persistenceError("failed to remove roster member", err, "artistId", artistID, "userId", memberUserID)
	}
	if res.ModifiedCount == 0 {
		return newError(KindNotFound, "user is not a member of this roster")
	}

	w.Events.Publish(Event{
		Type:     EventMemberRemoved,
		ArtistID: artistID,
		UserID:   memberUserID,
		At:       w.now(),
	})
	return nil
}

// ExpireStale marks every pending invitation older than the expiry window as expired and
// returns how many were changed
func (w *Workflow) ExpireStale(ctx context.Context) (int64, error) {
	now := w.now()
	cutoff := models.ExpiryCutoff(now, w.Expiry)
	res, err := w.IDB.UpdateMany(ctx,
		bson.M{"pending": true, "invitedOn": bson.M{"$lt": cutoff}},
		expireUpdate(now),
	)
	if err != nil {
		return 0, w.persistenceError("failed to expire stale invitations", err, "cutoff", cutoff)
	}
	if res.ModifiedCount > 0 {
		w.Events.Publish(Event{
			Type:  EventInvitationExpired,
			Count: res.ModifiedCount,
			At:    now,
		})
	}
	return res.ModifiedCount, nil
}
