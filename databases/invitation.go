package databases

// go generate: mockery --name InvitationDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/artist-platform-api/models"
)

const invitationName = "invitations"

// InvitationDatabase contains the methods to use with the invitation database
type InvitationDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Invitation, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Invitation, error)
	InsertOne(ctx context.Context, invitation models.Invitation) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	EnsureIndexes(ctx context.Context) error
}

type invitationDatabase struct {
	db DatabaseHelper
}

// NewInvitationDatabase initializes a new instance of invitation database with the provided db connection
func NewInvitationDatabase(db DatabaseHelper) InvitationDatabase {
	return &invitationDatabase{
		db: db,
	}
}

func (i *invitationDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Invitation, error) {
	invitation := &models.Invitation{}
	err := i.db.Collection(invitationName).FindOne(ctx, filter).Decode(&invitation)
	if err != nil {
		return nil, err
	}
	return invitation, nil
}

func (i *invitationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Invitation, error) {
	var invitations []models.Invitation
	cur, err := i.db.Collection(invitationName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cur.Decode(&invitations)
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// InsertOne writes a new invitation. A second open invitation for the same artist and
// email is rejected by the pending index and surfaces as a duplicate key error.
func (i *invitationDatabase) InsertOne(ctx context.Context, invitation models.Invitation) (InsertOneResultHelper, error) {
	return i.db.Collection(invitationName).InsertOne(ctx, invitation)
}

func (i *invitationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return i.db.Collection(invitationName).UpdateOne(ctx, filter, update)
}

func (i *invitationDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return i.db.Collection(invitationName).UpdateMany(ctx, filter, update)
}

// EnsureIndexes creates the invitation indexes. The partial unique index on
// (artistId, email) only covers documents with pending=true, which is what lets
// expired and accepted invitations stay as history next to a fresh one.
func (i *invitationDatabase) EnsureIndexes(ctx context.Context) error {
	return i.db.Collection(invitationName).CreateIndexes(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "artistId", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().
				SetName("uniq_pending_artist_email").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"pending": true}),
		},
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("uniq_token").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "pending", Value: 1}, {Key: "invitedOn", Value: 1}},
			Options: options.Index().SetName("pending_invited_on"),
		},
	})
}
