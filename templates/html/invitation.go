package templates

import (
	"fmt"
	"html"
	"time"
)

// InvitationSummary is the data shown on a roster invitation card
type InvitationSummary struct {
	Email     string
	Status    string
	InvitedOn time.Time
}

// statusLabel turns an invitation status into a label for the card
func statusLabel(status string) string {
	switch status {
	case "invited_new_user":
		return "Invited · awaiting sign up"
	case "invited_existing_artist":
		return "Invited · awaiting acceptance"
	case "accepted":
		return "Accepted"
	case "expired":
		return "Expired"
	}
	return status
}

// RenderInvitationSummary renders the placeholder person card shown in the roster for a
// pending invitation
func RenderInvitationSummary(s InvitationSummary) string {
	initial := "?"
	if s.Email != "" {
		initial = html.EscapeString(string([]rune(s.Email)[0:1]))
	}
	return fmt.Sprintf(`<div class="roster-member roster-member--invited" data-status="%s">
  <span class="roster-member__avatar roster-member__avatar--placeholder">%s</span>
  <div class="roster-member__details">
    <span class="roster-member__email">%s</span>
    <span class="roster-member__status">%s</span>
    <time class="roster-member__invited-on" datetime="%s">Invited %s</time>
  </div>
</div>`,
		html.EscapeString(s.Status),
		initial,
		html.EscapeString(s.Email),
		html.EscapeString(statusLabel(s.Status)),
		s.InvitedOn.UTC().Format(time.RFC3339),
		s.InvitedOn.UTC().Format("Jan 2, 2006"),
	)
}

// InvitationEmailData holds the values rendered into a roster invitation email
type InvitationEmailData struct {
	ArtistName string
	ActionURL  string
	// NewUser switches the call to action from "log in" to "create your account"
	NewUser bool
	// ExpiresInDays is omitted from the email when zero
	ExpiresInDays int
}

// InvitationEmailSubject returns the subject line for a roster invitation
func InvitationEmailSubject(artistName string) string {
	return fmt.Sprintf("You've been invited to join %s", artistName)
}

// RenderInvitationEmailText is the plain text alternative of RenderInvitationEmail
func RenderInvitationEmailText(d InvitationEmailData) string {
	action := "Log in to accept the invitation"
	if d.NewUser {
		action = "Create your account to accept the invitation"
	}
	text := fmt.Sprintf("You've been invited to join the roster of %s. %s: %s", d.ArtistName, action, d.ActionURL)
	if d.ExpiresInDays > 0 {
		text += fmt.Sprintf(" This invitation expires in %d days.", d.ExpiresInDays)
	}
	return text
}

// RenderInvitationEmail generates the HTML for a roster invitation email. The call to
// action depends on whether the invitee already has an account.
func RenderInvitationEmail(d InvitationEmailData) string {
	artist := html.EscapeString(d.ArtistName)
	actionURL := html.EscapeString(d.ActionURL)

	cta := "Log in &amp; accept"
	intro := "Log in with your existing account to join the roster."
	if d.NewUser {
		cta = "Create your account"
		intro = "Create your free account to join the roster. It only takes a minute."
	}

	expiry := ""
	if d.ExpiresInDays > 0 {
		expiry = fmt.Sprintf(`<p class="muted">This invitation expires in %d days.</p>`, d.ExpiresInDays)
	}

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>Join %s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #0a0a0f; }
    .container { max-width: 600px; margin: 0 auto; background-color: #12121f; }
    .header { background: linear-gradient(135deg, #ec4899 0%%, #8b5cf6 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #e5e7eb; line-height: 1.6; font-size: 15px; }
    .cta-button { display: inline-block; background: linear-gradient(135deg, #ec4899 0%%, #8b5cf6 100%%); color: #fff; padding: 14px 28px; border-radius: 8px; text-decoration: none; font-weight: 700; margin-top: 20px; }
    .muted { color: #9ca3af; font-size: 13px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid rgba(255,255,255,0.1); }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>You're invited to join %s</h1>
    </div>
    <div class="content">
      <p>%s</p>
      <p><a class="cta-button" href="%s">%s</a></p>
      <p class="muted">If the button does not work, copy this link into your browser:<br>%s</p>
      %s
    </div>
    <div class="footer">
      <p>If you were not expecting this invitation you can ignore this email.</p>
    </div>
  </div>
</body>
</html>`, artist, artist, intro, actionURL, cta, actionURL, expiry)
}
