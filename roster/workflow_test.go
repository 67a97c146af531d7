package roster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/artist-platform-api/models"
)

const (
	testArtistID = int64(42)
	ownerID      = int64(7)
	existingID   = int64(8)
	memberID     = int64(9)
	strangerID   = int64(99)
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	w        *Workflow
	idb      *memInvitations
	mdb      *memMemberships
	mailer   *fakeMailer
	recorder *eventRecorder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newFixture() *fixture {
	idb := &memInvitations{}
	mdb := newMemMemberships()
	mdb.members[testArtistID] = []int64{memberID}
	udb := &memUsers{users: []models.User{
		{ID: ownerID, Details: models.UserDetails{Email: "owner@example.com", Name: "Olive Owner"}},
		{ID: existingID, Details: models.UserDetails{Email: "existing@example.com", Username: "existing"}},
		{ID: memberID, Details: models.UserDetails{Email: "Member@Example.com", Name: "Max Member"}},
	}}
	adb := &memArtists{artists: []models.Artist{
		{ID: testArtistID, Details: models.ArtistDetails{Name: "The Lanterns", Slug: "the-lanterns", OwnerID: ownerID}},
	}}
	mailer := &fakeMailer{}
	recorder := &eventRecorder{}

	w := NewWorkflow(idb, mdb, udb, adb, mailer, NewEvents(recorder.record), 0)
	w.now = func() time.Time { return testNow }

	return &fixture{w: w, idb: idb, mdb: mdb, mailer: mailer, recorder: recorder}
}

// seed stores a pending invitation created age ago
func (f *fixture) seed(t *testing.T, email, token string, age time.Duration) models.Invitation {
	inv, err := models.NewInvitation(testArtistID, email, token, models.StatusInvitedNewUser, ownerID, testNow.Add(-age))
	require.NoError(t, err)
	_, err = f.idb.InsertOne(context.Background(), inv)
	require.NoError(t, err)
	return inv
}

func TestNewWorkflowDefaults(t *testing.T) {
	w := NewWorkflow(&memInvitations{}, newMemMemberships(), &memUsers{}, &memArtists{}, nil, nil, 0)

	assert.Equal(t, DefaultExpiry, w.Expiry)
	assert.NotNil(t, w.Auth)

	token := w.newToken()
	assert.Len(t, token, 32)
	assert.False(t, strings.Contains(token, "-"))
	assert.NotEqual(t, token, w.newToken())
}

func TestInviteMemberNewUser(t *testing.T) {
	f := newFixture()

	res, err := f.w.InviteMember(context.Background(), testArtistID, "new@example.com", ownerID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInvitedNewUser, res.Invitation.Status)
	assert.Equal(t, "new@example.com", res.Invitation.Email)
	assert.Equal(t, testArtistID, res.Invitation.ArtistID)
	assert.Equal(t, testNow.Unix(), res.Invitation.InvitedOn)
	assert.True(t, res.Invitation.Pending)
	assert.NotEmpty(t, res.Invitation.Token)
	assert.True(t, res.EmailSent)
	assert.Equal(t, testNow.Unix(), res.Invitation.LastSentOn)
	assert.Contains(t, res.SummaryHTML, "new@example.com")

	require.Equal(t, 1, f.mailer.count())
	assert.Equal(t, sentEmail{
		To:         "new@example.com",
		ArtistName: "The Lanterns",
		Token:      res.Invitation.Token,
		Status:     models.StatusInvitedNewUser,
	}, f.mailer.sent[0])

	created := f.recorder.ofType(EventInvitationCreated)
	require.Len(t, created, 1)
	assert.Equal(t, testArtistID, created[0].ArtistID)
	assert.Equal(t, ownerID, created[0].UserID)
}

func TestInviteMemberExistingUser(t *testing.T) {
	f := newFixture()

	res, err := f.w.InviteMember(context.Background(), testArtistID, "  EXISTING@example.com ", ownerID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInvitedExistingArtist, res.Invitation.Status)
	assert.Equal(t, "existing@example.com", res.Invitation.Email)
}

func TestInviteMemberByConfirmedMember(t *testing.T) {
	f := newFixture()

	_, err := f.w.InviteMember(context.Background(), testArtistID, "friend@example.com", memberID)
	assert.NoError(t, err)
}

func TestInviteMemberInvalidArguments(t *testing.T) {
	tests := []struct {
		name     string
		artistID int64
		email    string
	}{
		{name: "missing artist", artistID: 0, email: "new@example.com"},
		{name: "empty email", artistID: testArtistID, email: "   "},
		{name: "malformed email", artistID: testArtistID, email: "not-an-email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.w.InviteMember(context.Background(), tt.artistID, tt.email, ownerID)
			assert.Equal(t, KindInvalidArgument, KindOf(err))
			assert.True(t, errors.Is(err, ErrInvalidArgument))
			assert.Empty(t, f.idb.docs)
		})
	}
}

func TestInviteMemberPermissionDenied(t *testing.T) {
	f := newFixture()

	_, err := f.w.InviteMember(context.Background(), testArtistID, "new@example.com", strangerID)
	assert.Equal(t, KindPermissionDenied, KindOf(err))

	_, err = f.w.InviteMember(context.Background(), 77, "new@example.com", ownerID)
	assert.Equal(t, KindPermissionDenied, KindOf(err))

	assert.Empty(t, f.idb.docs)
	assert.Equal(t, 0, f.mailer.count())
}

func TestInviteMemberAlreadyMemberIgnoresCase(t *testing.T) {
	f := newFixture()

	_, err := f.w.InviteMember(context.Background(), testArtistID, "  member@EXAMPLE.com", ownerID)
	assert.Equal(t, KindAlreadyMember, KindOf(err))
	assert.Empty(t, f.idb.docs)
}

func TestInviteMemberAlreadyPending(t *testing.T) {
	f := newFixture()

	_, err := f.w.InviteMember(context.Background(), testArtistID, "new@example.com", ownerID)
	require.NoError(t, err)

	_, err = f.w.InviteMember(context.Background(), testArtistID, "NEW@example.com", ownerID)
	assert.Equal(t, KindAlreadyPending, KindOf(err))
	assert.Equal(t, 1, f.idb.pendingFor(testArtistID, "new@example.com"))
	assert.Equal(t, 1, f.mailer.count())
}

func TestInviteMemberConcurrentSameEmail(t *testing.T) {
	f := newFixture()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.w.InviteMember(context.Background(), testArtistID, "race@example.com", ownerID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, KindAlreadyPending, KindOf(err))
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.idb.pendingFor(testArtistID, "race@example.com"))
}

func TestInviteMemberEmailFailureKeepsInvitation(t *testing.T) {
	f := newFixture()
	f.mailer.err = errSMTPDown

	res, err := f.w.InviteMember(context.Background(), testArtistID, "new@example.com", ownerID)
	require.NoError(t, err)

	assert.False(t, res.EmailSent)
	assert.Zero(t, res.Invitation.LastSentOn)
	assert.Equal(t, 1, f.idb.pendingFor(testArtistID, "new@example.com"))
}

func TestInviteMemberWithoutMailer(t *testing.T) {
	f := newFixture()
	f.w.Mailer = nil

	res, err := f.w.InviteMember(context.Background(), testArtistID, "new@example.com", ownerID)
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
}

func TestInviteMemberReplacesStalePending(t *testing.T) {
	f := newFixture()
	stale := f.seed(t, "new@example.com", "staletoken", 31*24*time.Hour)

	res, err := f.w.InviteMember(context.Background(), testArtistID, "new@example.com", ownerID)
	require.NoError(t, err)
	assert.NotEqual(t, stale.Token, res.Invitation.Token)

	prior := f.idb.docs[0]
	assert.Equal(t, models.StatusExpired, prior.Status)
	assert.False(t, prior.Pending)
	assert.Equal(t, testNow.Unix(), prior.ExpiredOn)
	assert.Equal(t, 1, f.idb.pendingFor(testArtistID, "new@example.com"))
	assert.Len(t, f.recorder.ofType(EventInvitationExpired), 1)
}

func TestAcceptInvitation(t *testing.T) {
	f := newFixture()
	invite, err := f.w.InviteMember(context.Background(), testArtistID, "existing@example.com", ownerID)
	require.NoError(t, err)

	res, err := f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, existingID)
	require.NoError(t, err)

	assert.False(t, res.AlreadyAccepted)
	assert.Equal(t, models.StatusAccepted, res.Invitation.Status)
	assert.Equal(t, existingID, res.Invitation.AcceptedBy)
	assert.Equal(t, testNow.Unix(), res.Invitation.AcceptedOn)
	assert.Equal(t, 1, f.mdb.count(testArtistID, existingID))
	assert.Equal(t, 0, f.idb.pendingFor(testArtistID, "existing@example.com"))

	accepted := f.recorder.ofType(EventInvitationAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, existingID, accepted[0].UserID)
}

func TestAcceptInvitationIsIdempotent(t *testing.T) {
	f := newFixture()
	invite, err := f.w.InviteMember(context.Background(), testArtistID, "existing@example.com", ownerID)
	require.NoError(t, err)

	_, err = f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, existingID)
	require.NoError(t, err)

	res, err := f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, existingID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyAccepted)
	assert.Equal(t, 1, f.mdb.count(testArtistID, existingID))
	assert.Len(t, f.recorder.ofType(EventInvitationAccepted), 1)
}

func TestAcceptInvitationHealsMissingMembership(t *testing.T) {
	f := newFixture()
	inv := f.seed(t, "existing@example.com", "halfdone", time.Hour)
	f.idb.docs[0].Status = models.StatusAccepted
	f.idb.docs[0].AcceptedBy = existingID
	f.idb.docs[0].Pending = false

	res, err := f.w.AcceptInvitation(context.Background(), inv.Token, existingID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyAccepted)
	assert.Equal(t, 1, f.mdb.count(testArtistID, existingID))
}

func TestAcceptInvitationByAnotherUser(t *testing.T) {
	f := newFixture()
	invite, err := f.w.InviteMember(context.Background(), testArtistID, "existing@example.com", ownerID)
	require.NoError(t, err)

	_, err = f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, existingID)
	require.NoError(t, err)

	_, err = f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, strangerID)
	assert.Equal(t, KindInvalidToken, KindOf(err))
	assert.Equal(t, 0, f.mdb.count(testArtistID, strangerID))
}

func TestAcceptInvitationInvalidInput(t *testing.T) {
	f := newFixture()

	_, err := f.w.AcceptInvitation(context.Background(), "", existingID)
	assert.Equal(t, KindInvalidToken, KindOf(err))

	_, err = f.w.AcceptInvitation(context.Background(), "doesnotexist", existingID)
	assert.Equal(t, KindInvalidToken, KindOf(err))

	_, err = f.w.AcceptInvitation(context.Background(), "sometoken", 0)
	assert.Equal(t, KindInvalidArgument, KindOf(err))
}

func TestAcceptInvitationExpired(t *testing.T) {
	f := newFixture()
	inv := f.seed(t, "new@example.com", "oldtoken", 31*24*time.Hour)

	_, err := f.w.AcceptInvitation(context.Background(), inv.Token, existingID)
	assert.Equal(t, KindExpired, KindOf(err))
	assert.Equal(t, models.StatusExpired, f.idb.docs[0].Status)
	assert.Equal(t, 0, f.mdb.count(testArtistID, existingID))

	_, err = f.w.AcceptInvitation(context.Background(), inv.Token, existingID)
	assert.Equal(t, KindExpired, KindOf(err))
	assert.Len(t, f.recorder.ofType(EventInvitationExpired), 1)
}

func TestAcceptInvitationJustInsideWindow(t *testing.T) {
	f := newFixture()
	inv := f.seed(t, "new@example.com", "freshtoken", 30*24*time.Hour)

	_, err := f.w.AcceptInvitation(context.Background(), inv.Token, existingID)
	assert.NoError(t, err)
}

func TestAcceptInvitationConcurrentSameToken(t *testing.T) {
	f := newFixture()
	invite, err := f.w.InviteMember(context.Background(), testArtistID, "existing@example.com", ownerID)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*AcceptResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, existingID)
		}(i)
	}
	wg.Wait()

	firstTime := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		if !results[i].AlreadyAccepted {
			firstTime++
		}
	}
	assert.Equal(t, 1, firstTime)
	assert.Equal(t, 1, f.mdb.count(testArtistID, existingID))
}

func TestAcceptInvitationConcurrentDifferentUsers(t *testing.T) {
	f := newFixture()
	a := f.seed(t, "a@example.com", "tokena", time.Hour)
	b := f.seed(t, "b@example.com", "tokenb", time.Hour)

	var wg sync.WaitGroup
	for _, tc := range []struct {
		token  string
		userID int64
	}{{a.Token, 101}, {b.Token, 102}} {
		wg.Add(1)
		go func(token string, userID int64) {
			defer wg.Done()
			_, err := f.w.AcceptInvitation(context.Background(), token, userID)
			assert.NoError(t, err)
		}(tc.token, tc.userID)
	}
	wg.Wait()

	assert.Equal(t, 1, f.mdb.count(testArtistID, 101))
	assert.Equal(t, 1, f.mdb.count(testArtistID, 102))
	assert.Equal(t, 1, f.mdb.count(testArtistID, memberID))
}

func TestAcceptInvitationNewUserScenario(t *testing.T) {
	f := newFixture()

	invite, err := f.w.InviteMember(context.Background(), testArtistID, "fresh@example.com", ownerID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInvitedNewUser, invite.Invitation.Status)

	// the invitee signs up as user 500 and then accepts
	res, err := f.w.AcceptInvitation(context.Background(), invite.Invitation.Token, 500)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, res.Invitation.Status)
	assert.Equal(t, 1, f.mdb.count(testArtistID, 500))

	_, err = f.w.InviteMember(context.Background(), testArtistID, "fresh@example.com", ownerID)
	assert.NoError(t, err)
}
