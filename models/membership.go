package models

import "time"

// Membership holds the structure for the memberships collection in mongo. There is one
// document per artist, keyed by the artist ID.
type Membership struct {
	ArtistID      int64     `json:"artist_id" bson:"_id"`
	MemberUserIDs []int64   `json:"member_user_ids" bson:"memberUserIds"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updatedAt"`
}

// Has reports whether userID is a confirmed member
func (m Membership) Has(userID int64) bool {
	for _, id := range m.MemberUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
