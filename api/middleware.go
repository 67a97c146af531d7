package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linesmerrill/artist-platform-api/databases"
)

// TokenTTL is how long an issued bearer token stays in the cache
const TokenTTL = 30 * 24 * time.Hour

// Authenticator wraps go-guardian with a basic strategy backed by the users collection
// and a cached bearer strategy for issued tokens
type Authenticator struct {
	DB databases.UserDatabase

	authenticator auth.Authenticator
	cache         store.Cache
}

// NewAuthenticator sets up the go-guardian strategies
func NewAuthenticator(ctx context.Context, db databases.UserDatabase) *Authenticator {
	a := &Authenticator{DB: db}
	a.authenticator = auth.New()
	a.cache = store.NewFIFO(ctx, TokenTTL)
	basicStrategy := basic.New(a.ValidateUser, a.cache)
	tokenStrategy := bearer.New(bearer.NoOpAuthenticate, a.cache)

	a.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
	return a
}

// Middleware authenticates the request and stores the requester ID on its context
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Errorw("unauthorized",
				"url", r.URL)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "unauthorized"}`))
			return
		}
		userID, err := strconv.ParseInt(user.ID(), 10, 64)
		if err != nil || userID <= 0 {
			zap.S().Errorw("authenticated user has no numeric id", "user", user.UserName(), "id", user.ID())
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message": "unauthorized"}`))
			return
		}
		zap.S().Debugw("user authenticated", "user", user.UserName(), "userId", userID)
		next.ServeHTTP(w, r.WithContext(WithRequester(r.Context(), userID)))
	})
}

// CreateToken exchanges basic credentials for a bearer token
func (a *Authenticator) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	email, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}

	info, err := a.ValidateUser(r.Context(), r, email, password)
	if err != nil {
		zap.S().Warnw("token request rejected", "email", email, "error", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	tokenStrategy := a.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Append(tokenStrategy, token, info, r); err != nil {
		zap.S().Errorw("failed to cache bearer token", "error", err)
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}

	response := map[string]string{
		"token": token,
		"_id":   info.ID(),
	}

	responseBody, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Write(responseBody)
}

// ValidateUser checks an email and password against the users collection
func (a *Authenticator) ValidateUser(ctx context.Context, r *http.Request, email, password string) (auth.Info, error) {
	usernameHash := sha256.Sum256([]byte(strings.ToLower(email)))

	ctx, cancel := WithQueryTimeout(ctx)
	defer cancel()

	user, err := a.DB.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no matching email found")
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	expectedUsernameHash := sha256.Sum256([]byte(strings.ToLower(user.Details.Email)))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	err = bcrypt.CompareHashAndPassword([]byte(user.Details.Password), []byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}

	if usernameMatch {
		return auth.NewDefaultUser(user.Details.Email, strconv.FormatInt(user.ID, 10), nil, nil), nil
	}
	return nil, fmt.Errorf("invalid credentials")
}

// RevokeToken revokes the bearer token of the request
func (a *Authenticator) RevokeToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	reqToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if reqToken == "" || reqToken == r.Header.Get("Authorization") {
		http.Error(w, "bearer token required", http.StatusBadRequest)
		return
	}

	tokenStrategy := a.authenticator.Strategy(bearer.CachedStrategyKey)
	if err := auth.Revoke(tokenStrategy, reqToken, r); err != nil {
		zap.S().Errorw("failed to revoke token", "error", err)
		http.Error(w, "failed to revoke token", http.StatusInternalServerError)
		return
	}
	body, _ := json.Marshal(map[string]string{"revoked token": reqToken})
	w.Write(body)
}
