package mocks

import (
	context "context"

	mock "github.com/stretchr/testify/mock"

	models "github.com/linesmerrill/artist-platform-api/models"
)

// ArtistDatabase is an autogenerated mock type for the ArtistDatabase type
type ArtistDatabase struct {
	mock.Mock
}

// FindOne provides a mock function with given fields: ctx, filter
func (_m *ArtistDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Artist, error) {
	ret := _m.Called(ctx, filter)

	var r0 *models.Artist
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.Artist)
	}

	return r0, ret.Error(1)
}
