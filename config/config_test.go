package config

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	defer os.Unsetenv("DB_URI")
	defer os.Unsetenv("DB_NAME")
	conf := New()

	assert.NotEmpty(t, conf)
	assert.Equal(t, "test", conf.DatabaseName)
	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
}

func TestNewDefaults(t *testing.T) {
	conf := New()

	assert.Equal(t, 30*24*time.Hour, conf.InvitationExpiry)
	assert.Equal(t, 30*time.Second, conf.RequestTimeout)
	assert.Equal(t, "0 * * * *", conf.SweepSchedule)
}

func TestNewInvitationExpiryOverride(t *testing.T) {
	os.Setenv("INVITATION_EXPIRY", "48h")
	defer os.Unsetenv("INVITATION_EXPIRY")

	conf := New()
	assert.Equal(t, 48*time.Hour, conf.InvitationExpiry)
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"message": "error it borked"}`, rr.Body.String())
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(2))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}
