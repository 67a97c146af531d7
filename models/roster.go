package models

// RosterMember is a confirmed member as shown in a roster listing
type RosterMember struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Owner  bool   `json:"owner"`
}

// InvitationResponse is the boundary contract returned after an invite succeeds
type InvitationResponse struct {
	ID                  string           `json:"id"`
	Email               string           `json:"email"`
	Token               string           `json:"token,omitempty"`
	Status              InvitationStatus `json:"status"`
	InvitedOn           int64            `json:"invited_on"`
	RenderedSummaryHTML string           `json:"rendered_summary_html"`
}

// Roster lists the confirmed members and open invitations of an artist
type Roster struct {
	ArtistID    int64                `json:"artist_id"`
	Members     []RosterMember       `json:"members"`
	Invitations []InvitationResponse `json:"invitations"`
}

// AcceptResponse is returned after an invitation is accepted
type AcceptResponse struct {
	InvitationID    string           `json:"invitation_id"`
	ArtistID        int64            `json:"artist_id"`
	Status          InvitationStatus `json:"status"`
	AlreadyAccepted bool             `json:"already_accepted"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}
