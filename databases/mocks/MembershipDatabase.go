package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"
	mongo "go.mongodb.org/mongo-driver/mongo"
	options "go.mongodb.org/mongo-driver/mongo/options"

	models "github.com/linesmerrill/artist-platform-api/models"
)

// MembershipDatabase is an autogenerated mock type for the MembershipDatabase type
type MembershipDatabase struct {
	mock.Mock
}

// FindOne provides a mock function with given fields: ctx, filter
func (_m *MembershipDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Membership, error) {
	ret := _m.Called(ctx, filter)

	var r0 *models.Membership
	if rf, ok := ret.Get(0).(func(context.Context, interface{}) *models.Membership); ok {
		r0 = rf(ctx, filter)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Membership)
	}

	return r0, ret.Error(1)
}

// UpdateOne provides a mock function with given fields: ctx, filter, update, opts
func (_m *MembershipDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	_va := make([]interface{}, len(opts))
	for _i := range opts {
		_va[_i] = opts[_i]
	}
	ret := _m.Called(variadicArgs([]interface{}{ctx, filter, update}, _va...)...)

	var r0 *mongo.UpdateResult
	if rf, ok := ret.Get(0).(func(context.Context, interface{}, interface{}) *mongo.UpdateResult); ok {
		r0 = rf(ctx, filter, update)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*mongo.UpdateResult)
	}

	return r0, ret.Error(1)
}
