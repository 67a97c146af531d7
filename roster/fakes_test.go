package roster

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/artist-platform-api/databases"
	"github.com/linesmerrill/artist-platform-api/models"
)

// memInvitations is an in-memory InvitationDatabase that enforces the same unique
// constraints as the mongo indexes. It understands the filters the workflow sends.
type memInvitations struct {
	mu   sync.Mutex
	docs []*models.Invitation
}

var duplicateKey = mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}

func invitationField(inv *models.Invitation, key string) interface{} {
	switch key {
	case "_id":
		return inv.ID
	case "token":
		return inv.Token
	case "artistId":
		return inv.ArtistID
	case "email":
		return inv.Email
	case "pending":
		return inv.Pending
	case "invitedOn":
		return inv.InvitedOn
	case "status":
		return inv.Status
	}
	return nil
}

func matches(inv *models.Invitation, filter interface{}) bool {
	f, ok := filter.(bson.M)
	if !ok {
		return false
	}
	for k, want := range f {
		got := invitationField(inv, k)
		if cond, ok := want.(bson.M); ok {
			if lt, ok := cond["$lt"]; ok {
				if got.(int64) >= lt.(int64) {
					return false
				}
			}
			continue
		}
		if got != want {
			return false
		}
	}
	return true
}

func applyInvitationUpdate(inv *models.Invitation, update interface{}) {
	u := update.(bson.M)
	if set, ok := u["$set"].(bson.M); ok {
		for k, v := range set {
			switch k {
			case "status":
				inv.Status = v.(models.InvitationStatus)
			case "acceptedBy":
				inv.AcceptedBy = v.(int64)
			case "acceptedOn":
				inv.AcceptedOn = v.(int64)
			case "expiredOn":
				inv.ExpiredOn = v.(int64)
			case "lastSentOn":
				inv.LastSentOn = v.(int64)
			}
		}
	}
	if unset, ok := u["$unset"].(bson.M); ok {
		if _, ok := unset["pending"]; ok {
			inv.Pending = false
		}
	}
}

func (m *memInvitations) FindOne(ctx context.Context, filter interface{}) (*models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.docs {
		if matches(inv, filter) {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memInvitations) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invitation
	for _, inv := range m.docs {
		if matches(inv, filter) {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedOn < out[j].InvitedOn })
	return out, nil
}

func (m *memInvitations) InsertOne(ctx context.Context, invitation models.Invitation) (databases.InsertOneResultHelper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.docs {
		if inv.Token == invitation.Token {
			return nil, duplicateKey
		}
		if invitation.Pending && inv.Pending && inv.ArtistID == invitation.ArtistID && inv.Email == invitation.Email {
			return nil, duplicateKey
		}
	}
	cp := invitation
	m.docs = append(m.docs, &cp)
	return nil, nil
}

func (m *memInvitations) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.docs {
		if matches(inv, filter) {
			applyInvitationUpdate(inv, update)
			return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
		}
	}
	return &mongo.UpdateResult{}, nil
}

func (m *memInvitations) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &mongo.UpdateResult{}
	for _, inv := range m.docs {
		if matches(inv, filter) {
			applyInvitationUpdate(inv, update)
			res.MatchedCount++
			res.ModifiedCount++
		}
	}
	return res, nil
}

func (m *memInvitations) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (m *memInvitations) pendingFor(artistID int64, email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, inv := range m.docs {
		if inv.Pending && inv.ArtistID == artistID && inv.Email == email {
			n++
		}
	}
	return n
}

// memMemberships is an in-memory MembershipDatabase with $addToSet / $pull semantics
type memMemberships struct {
	mu      sync.Mutex
	members map[int64][]int64
}

func newMemMemberships() *memMemberships {
	return &memMemberships{members: map[int64][]int64{}}
}

func (m *memMemberships) FindOne(ctx context.Context, filter interface{}) (*models.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := filter.(bson.M)["_id"].(int64)
	ids, ok := m.members[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &models.Membership{ArtistID: id, MemberUserIDs: append([]int64(nil), ids...)}, nil
}

func (m *memMemberships) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := filter.(bson.M)["_id"].(int64)
	ids, exists := m.members[id]
	upsert := len(opts) > 0 && opts[0].Upsert != nil && *opts[0].Upsert
	if !exists && !upsert {
		return &mongo.UpdateResult{}, nil
	}
	u := update.(bson.M)
	res := &mongo.UpdateResult{MatchedCount: 1}
	if add, ok := u["$addToSet"].(bson.M); ok {
		userID := add["memberUserIds"].(int64)
		found := false
		for _, existing := range ids {
			if existing == userID {
				found = true
			}
		}
		if !found {
			ids = append(ids, userID)
			res.ModifiedCount = 1
		}
	}
	if pull, ok := u["$pull"].(bson.M); ok {
		userID := pull["memberUserIds"].(int64)
		kept := ids[:0:0]
		for _, existing := range ids {
			if existing != userID {
				kept = append(kept, existing)
			}
		}
		if len(kept) != len(ids) {
			res.ModifiedCount = 1
		}
		ids = kept
	}
	m.members[id] = ids
	return res, nil
}

func (m *memMemberships) count(artistID, userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range m.members[artistID] {
		if id == userID {
			n++
		}
	}
	return n
}

type memUsers struct {
	users []models.User
}

func (m *memUsers) FindOne(ctx context.Context, filter interface{}) (*models.User, error) {
	id := filter.(bson.M)["_id"].(int64)
	for _, u := range m.users {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Details.Email, strings.TrimSpace(email)) {
			cp := u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memUsers) Find(ctx context.Context, filter interface{}) ([]models.User, error) {
	ids := filter.(bson.M)["_id"].(bson.M)["$in"].([]int64)
	var out []models.User
	for _, u := range m.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type memArtists struct {
	artists []models.Artist
}

func (m *memArtists) FindOne(ctx context.Context, filter interface{}) (*models.Artist, error) {
	id := filter.(bson.M)["_id"].(int64)
	for _, a := range m.artists {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

type sentEmail struct {
	To, ArtistName, Token string
	Status                models.InvitationStatus
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeMailer) SendInvitationEmail(ctx context.Context, toEmail, artistName, token string, status models.InvitationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{To: toEmail, ArtistName: artistName, Token: token, Status: status})
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

var errSMTPDown = errors.New("smtp down")
