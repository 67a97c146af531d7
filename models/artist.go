package models

// Artist holds the structure for the artists collection in mongo
type Artist struct {
	ID      int64         `json:"_id" bson:"_id"`
	Details ArtistDetails `json:"artist" bson:"artist"`
}

// ArtistDetails holds the structure for the inner artist structure
type ArtistDetails struct {
	Name    string `json:"name" bson:"name"`
	Slug    string `json:"slug" bson:"slug"`
	OwnerID int64  `json:"ownerID" bson:"ownerID"`
}
