package models

// User holds the structure for the user collection in mongo
type User struct {
	ID      int64       `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Email     string      `json:"email" bson:"email"`
	Name      string      `json:"name" bson:"name"`
	Username  string      `json:"username" bson:"username"`
	Password  string      `json:"-" bson:"password"`
	CreatedAt interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt interface{} `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName returns the best human readable name for the user
func (u User) DisplayName() string {
	if u.Details.Name != "" {
		return u.Details.Name
	}
	if u.Details.Username != "" {
		return u.Details.Username
	}
	return u.Details.Email
}
