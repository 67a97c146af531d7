// Package mailer delivers roster invitation emails through SendGrid
package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/linesmerrill/artist-platform-api/config"
	"github.com/linesmerrill/artist-platform-api/models"
	templates "github.com/linesmerrill/artist-platform-api/templates/html"
)

const defaultHost = "https://api.sendgrid.com"

// ErrMissingAPIKey is returned when no SendGrid key is configured
var ErrMissingAPIKey = errors.New("SENDGRID_API_KEY not set")

// SendGrid implements roster.Mailer
type SendGrid struct {
	APIKey    string
	FromEmail string
	FromName  string
	// BaseURL is the public address of the web app the accept link points at
	BaseURL string
	Expiry  time.Duration
	// Host defaults to the SendGrid API
	Host string
}

// New builds a SendGrid mailer from the config
func New(conf *config.Config) *SendGrid {
	return &SendGrid{
		APIKey:    conf.SendgridAPIKey,
		FromEmail: conf.EmailFromAddress,
		FromName:  conf.EmailFromName,
		BaseURL:   conf.BaseURL,
		Expiry:    conf.InvitationExpiry,
	}
}

// AcceptURL returns the link an invitee follows to accept an invitation
func (s *SendGrid) AcceptURL(token string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/roster/accept?token=" + url.QueryEscape(token)
}

// SendInvitationEmail sends the invitation for token to toEmail
func (s *SendGrid) SendInvitationEmail(ctx context.Context, toEmail, artistName, token string, status models.InvitationStatus) error {
	if s.APIKey == "" {
		zap.S().Errorw("SENDGRID_API_KEY not set, cannot send email", "email", toEmail)
		return ErrMissingAPIKey
	}

	data := templates.InvitationEmailData{
		ArtistName:    artistName,
		ActionURL:     s.AcceptURL(token),
		NewUser:       status == models.StatusInvitedNewUser,
		ExpiresInDays: int(s.Expiry / (24 * time.Hour)),
	}

	from := mail.NewEmail(s.FromName, s.FromEmail)
	to := mail.NewEmail("", toEmail)
	subject := templates.InvitationEmailSubject(artistName)
	message := mail.NewSingleEmail(from, subject, to, templates.RenderInvitationEmailText(data), templates.RenderInvitationEmail(data))

	host := s.Host
	if host == "" {
		host = defaultHost
	}
	request := sendgrid.GetRequest(s.APIKey, "/v3/mail/send", host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	if err := ctx.Err(); err != nil {
		return err
	}
	response, err := sendgrid.MakeRequest(request)
	if err != nil {
		zap.S().Errorw("failed to send email", "error", err, "to", toEmail)
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "to", toEmail)
		return fmt.Errorf("sendgrid error: status %d", response.StatusCode)
	}

	zap.S().Infow("invitation email sent", "to", toEmail, "statusCode", response.StatusCode)
	return nil
}
