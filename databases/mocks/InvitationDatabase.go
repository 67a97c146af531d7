package mocks

import (
	context "context"

	databases "github.com/linesmerrill/artist-platform-api/databases"
	mock "github.com/stretchr/testify/mock"
	mongo "go.mongodb.org/mongo-driver/mongo"
	options "go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/linesmerrill/artist-platform-api/models"
)

// InvitationDatabase is an autogenerated mock type for the InvitationDatabase type
type InvitationDatabase struct {
	mock.Mock
}

// FindOne provides a mock function with given fields: ctx, filter
func (_m *InvitationDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Invitation, error) {
	ret := _m.Called(ctx, filter)

	var r0 *models.Invitation
	if rf, ok := ret.Get(0).(func(context.Context, interface{}) *models.Invitation); ok {
		r0 = rf(ctx, filter)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Invitation)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, interface{}) error); ok {
		r1 = rf(ctx, filter)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// Find provides a mock function with given fields: ctx, filter, opts
func (_m *InvitationDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Invitation, error) {
	_va := make([]interface{}, len(opts))
	for _i := range opts {
		_va[_i] = opts[_i]
	}
	ret := _m.Called(variadicArgs([]interface{}{ctx, filter}, _va...)...)

	var r0 []models.Invitation
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]models.Invitation)
	}

	return r0, ret.Error(1)
}

// InsertOne provides a mock function with given fields: ctx, invitation
func (_m *InvitationDatabase) InsertOne(ctx context.Context, invitation models.Invitation) (databases.InsertOneResultHelper, error) {
	ret := _m.Called(ctx, invitation)

	var r0 databases.InsertOneResultHelper
	if rf, ok := ret.Get(0).(func(context.Context, models.Invitation) databases.InsertOneResultHelper); ok {
		r0 = rf(ctx, invitation)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(databases.InsertOneResultHelper)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, models.Invitation) error); ok {
		r1 = rf(ctx, invitation)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// UpdateOne provides a mock function with given fields: ctx, filter, update
func (_m *InvitationDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	ret := _m.Called(ctx, filter, update)

	var r0 *mongo.UpdateResult
	if rf, ok := ret.Get(0).(func(context.Context, interface{}, interface{}) *mongo.UpdateResult); ok {
		r0 = rf(ctx, filter, update)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*mongo.UpdateResult)
	}

	return r0, ret.Error(1)
}

// UpdateMany provides a mock function with given fields: ctx, filter, update
func (_m *InvitationDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	ret := _m.Called(ctx, filter, update)

	var r0 *mongo.UpdateResult
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*mongo.UpdateResult)
	}

	return r0, ret.Error(1)
}

// EnsureIndexes provides a mock function with given fields: ctx
func (_m *InvitationDatabase) EnsureIndexes(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}
