package databases

// go generate: mockery --name MembershipDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/artist-platform-api/models"
)

const membershipName = "memberships"

// MembershipDatabase contains the methods to use with the membership database
type MembershipDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Membership, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type membershipDatabase struct {
	db DatabaseHelper
}

// NewMembershipDatabase initializes a new instance of membership database with the provided db connection
func NewMembershipDatabase(db DatabaseHelper) MembershipDatabase {
	return &membershipDatabase{
		db: db,
	}
}

func (m *membershipDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Membership, error) {
	membership := &models.Membership{}
	err := m.db.Collection(membershipName).FindOne(ctx, filter).Decode(&membership)
	if err != nil {
		return nil, err
	}
	return membership, nil
}

func (m *membershipDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return m.db.Collection(membershipName).UpdateOne(ctx, filter, update, opts...)
}
