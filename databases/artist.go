package databases

// go generate: mockery --name ArtistDatabase

import (
	"context"

	"github.com/linesmerrill/artist-platform-api/models"
)

const artistName = "artists"

// ArtistDatabase contains the methods to use with the artist database
type ArtistDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Artist, error)
}

type artistDatabase struct {
	db DatabaseHelper
}

// NewArtistDatabase initializes a new instance of artist database with the provided db connection
func NewArtistDatabase(db DatabaseHelper) ArtistDatabase {
	return &artistDatabase{
		db: db,
	}
}

func (a *artistDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Artist, error) {
	artist := &models.Artist{}
	err := a.db.Collection(artistName).FindOne(ctx, filter).Decode(&artist)
	if err != nil {
		return nil, err
	}
	return artist, nil
}
