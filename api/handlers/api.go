package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/artist-platform-api/api"
	"github.com/linesmerrill/artist-platform-api/config"
	"github.com/linesmerrill/artist-platform-api/databases"
	"github.com/linesmerrill/artist-platform-api/mailer"
	"github.com/linesmerrill/artist-platform-api/models"
	"github.com/linesmerrill/artist-platform-api/roster"
)

const defaultRequestTimeout = 30 * time.Second

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Workflow *roster.Workflow
	Hub      *RosterHub
	Auth     *api.Authenticator
	dbHelper databases.DatabaseHelper
	client   databases.ClientHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Hub == nil {
		a.Hub = NewRosterHub()
	}
	if a.Auth == nil {
		a.Auth = api.NewAuthenticator(context.Background(), databases.NewUserDatabase(a.dbHelper))
	}
	if a.Workflow == nil {
		a.Workflow = a.newWorkflow()
	}

	timeout := a.Config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	withTimeout := api.TimeoutMiddleware(timeout)
	authed := func(h http.HandlerFunc) http.Handler {
		return withTimeout(a.Auth.Middleware(h))
	}

	ro := Roster{WF: a.Workflow, Hub: a.Hub, BaseURL: a.Config.BaseURL}

	r := mux.NewRouter()
	r.Use(api.LoggingMiddleware)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", withTimeout(http.HandlerFunc(a.Auth.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", authed(a.Auth.RevokeToken)).Methods("DELETE")

	apiCreate.Handle("/artist/{artistId}/roster", authed(ro.RosterHandler)).Methods("GET")
	apiCreate.Handle("/artist/{artistId}/roster/invitations", authed(ro.InviteMemberHandler)).Methods("POST")
	apiCreate.Handle("/artist/{artistId}/roster/invitations/{invitationId}/resend", authed(ro.ResendInvitationHandler)).Methods("POST")
	apiCreate.Handle("/artist/{artistId}/roster/members/{userId}", authed(ro.RemoveMemberHandler)).Methods("DELETE")
	apiCreate.Handle("/roster/accept", authed(ro.AcceptInvitationHandler)).Methods("POST")

	// websocket connections outlive the request timeout
	apiCreate.Handle("/artist/{artistId}/roster/events", a.Auth.Middleware(http.HandlerFunc(ro.RosterEventsHandler))).Methods("GET")

	return r
}

func (a *App) newWorkflow() *roster.Workflow {
	events := roster.NewEvents(roster.LogSubscriber, a.Hub.Publish)
	return roster.NewWorkflow(
		databases.NewInvitationDatabase(a.dbHelper),
		databases.NewMembershipDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
		databases.NewArtistDatabase(a.dbHelper),
		mailer.New(&a.Config),
		events,
		a.Config.InvitationExpiry,
	)
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect(ctx)
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("artist-platform-api has connected to the database")

	indexCtx, cancel := api.WithQueryTimeout(ctx)
	defer cancel()
	if err := databases.NewInvitationDatabase(a.dbHelper).EnsureIndexes(indexCtx); err != nil {
		zap.S().Errorw("failed to create invitation indexes", "error", err)
		return err
	}

	// initialize api router
	a.initializeRoutes()
	return nil
}

// DB returns the database handle set up by Initialize
func (a *App) DB() databases.DatabaseHelper {
	return a.dbHelper
}

// Close disconnects from the database
func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
