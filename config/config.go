package config

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL          string `env:"DB_URI" envDefault:"mongodb://127.0.0.1:27017"`
	DatabaseName string `env:"DB_NAME" envDefault:"artist-platform"`
	BaseURL      string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Port         string `env:"PORT" envDefault:"8080"`
	Env          string `env:"ENV" envDefault:"production"`

	SendgridAPIKey   string `env:"SENDGRID_API_KEY"`
	EmailFromAddress string `env:"EMAIL_FROM_ADDRESS" envDefault:"no-reply@artistplatform.app"`
	EmailFromName    string `env:"EMAIL_FROM_NAME" envDefault:"Artist Platform"`

	// InvitationExpiry is how long a pending roster invitation stays acceptable.
	InvitationExpiry time.Duration `env:"INVITATION_EXPIRY" envDefault:"720h"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	SweepSchedule    string        `env:"SWEEP_SCHEDULE" envDefault:"0 * * * *"`
}

// New sets up all config related services
func New() *Config {
	// a missing .env file is the normal case outside local development
	_ = godotenv.Load()

	conf := &Config{}
	parseErr := env.Parse(conf)

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Env)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	if parseErr != nil {
		zap.S().Warnw("failed to parse env config, using defaults for invalid values", "error", parseErr)
	}

	return conf
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
