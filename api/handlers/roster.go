package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/linesmerrill/artist-platform-api/api"
	"github.com/linesmerrill/artist-platform-api/config"
	"github.com/linesmerrill/artist-platform-api/models"
	"github.com/linesmerrill/artist-platform-api/roster"
)

var validate = validator.New()

// Roster exported for testing purposes
type Roster struct {
	WF  *roster.Workflow
	Hub *RosterHub
	// BaseURL is the only browser origin allowed on the events stream
	BaseURL string
}

type inviteRequest struct {
	ArtistID *int64 `json:"artist_id"`
	Email    string `json:"email" validate:"required"`
}

type acceptRequest struct {
	Token string `json:"token" validate:"required"`
}

// kindStatus maps a workflow error kind to its HTTP status
var kindStatus = map[roster.Kind]int{
	roster.KindInvalidArgument:  http.StatusBadRequest,
	roster.KindPermissionDenied: http.StatusForbidden,
	roster.KindAlreadyMember:    http.StatusConflict,
	roster.KindAlreadyPending:   http.StatusConflict,
	roster.KindInvalidToken:     http.StatusNotFound,
	roster.KindExpired:          http.StatusGone,
	roster.KindNotFound:         http.StatusNotFound,
	roster.KindPersistence:      http.StatusInternalServerError,
	roster.KindEmailDelivery:    http.StatusBadGateway,
}

// StatusForError returns the HTTP status for an error returned by the roster workflow
func StatusForError(err error) int {
	if status, ok := kindStatus[roster.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	message := "something went wrong, please try again"
	var e *roster.Error
	if errors.As(err, &e) {
		message = e.Message
	}
	config.ErrorStatus(message, StatusForError(err), w, err)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathInt64(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func invitationResponse(res *roster.InviteResult, withToken bool) models.InvitationResponse {
	out := models.InvitationResponse{
		ID:                  res.Invitation.ID.Hex(),
		Email:               res.Invitation.Email,
		Status:              res.Invitation.Status,
		InvitedOn:           res.Invitation.InvitedOn,
		RenderedSummaryHTML: res.SummaryHTML,
	}
	if withToken {
		out.Token = res.Invitation.Token
	}
	return out
}

// InviteMemberHandler creates a roster invitation for an email address
func (ro Roster) InviteMemberHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := api.RequesterID(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	artistID, ok := pathInt64(r, "artistId")
	if !ok {
		config.ErrorStatus("artist id is invalid", http.StatusBadRequest, w, nil)
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, err)
		return
	}
	if req.ArtistID != nil && *req.ArtistID != artistID {
		config.ErrorStatus("artist_id does not match the artist in the path", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := ro.WF.InviteMember(ctx, artistID, req.Email, requesterID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, invitationResponse(res, true))
}

// ResendInvitationHandler sends the email of a pending invitation again
func (ro Roster) ResendInvitationHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := api.RequesterID(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	artistID, ok := pathInt64(r, "artistId")
	if !ok {
		config.ErrorStatus("artist id is invalid", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := ro.WF.ResendInvitation(ctx, artistID, mux.Vars(r)["invitationId"], requesterID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, invitationResponse(res, false))
}

// AcceptInvitationHandler adds the authenticated user to the roster of the invitation
func (ro Roster) AcceptInvitationHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := api.RequesterID(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}

	var req acceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		config.ErrorStatus("token is required", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := ro.WF.AcceptInvitation(ctx, req.Token, requesterID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.AcceptResponse{
		InvitationID:    res.Invitation.ID.Hex(),
		ArtistID:        res.Invitation.ArtistID,
		Status:          res.Invitation.Status,
		AlreadyAccepted: res.AlreadyAccepted,
	})
}

// RosterHandler lists the members and open invitations of an artist
func (ro Roster) RosterHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := api.RequesterID(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	artistID, ok := pathInt64(r, "artistId")
	if !ok {
		config.ErrorStatus("artist id is invalid", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := ro.WF.ListRoster(ctx, artistID, requesterID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// RemoveMemberHandler takes a user off an artist's roster
func (ro Roster) RemoveMemberHandler(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := api.RequesterID(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	artistID, ok := pathInt64(r, "artistId")
	if !ok {
		config.ErrorStatus("artist id is invalid", http.StatusBadRequest, w, nil)
		return
	}
	userID, ok := pathInt64(r, "userId")
	if !ok {
		config.ErrorStatus("user id is invalid", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if err := ro.WF.RemoveMember(ctx, artistID, userID, requesterID); err != nil {
		writeWorkflowError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "member removed"})
}
