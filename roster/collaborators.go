package roster

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linesmerrill/artist-platform-api/databases"
	"github.com/linesmerrill/artist-platform-api/models"
)

// Mailer delivers invitation emails
type Mailer interface {
	SendInvitationEmail(ctx context.Context, toEmail, artistName, token string, status models.InvitationStatus) error
}

// Authorizer decides whether a user may manage an artist's roster
type Authorizer interface {
	CanManageRoster(ctx context.Context, userID, artistID int64) (bool, error)
}

// ArtistAuthorizer grants roster management to the artist owner and confirmed members
type ArtistAuthorizer struct {
	ADB databases.ArtistDatabase
	MDB databases.MembershipDatabase
}

// CanManageRoster returns false for unknown artists
func (a ArtistAuthorizer) CanManageRoster(ctx context.Context, userID, artistID int64) (bool, error) {
	if userID <= 0 || artistID <= 0 {
		return false, nil
	}
	artist, err := a.ADB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	if artist.Details.OwnerID == userID {
		return true, nil
	}
	membership, err := a.MDB.FindOne(ctx, bson.M{"_id": artistID})
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	return membership.Has(userID), nil
}
