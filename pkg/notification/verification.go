package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

const verificationSubject = "Email verification"

var verificationTmpl = template.Must(template.New("verify_email").Parse(
	`<p>You requested for email verification, kindly use this <a href="{{.Link}}">link</a> to verify your email address</p>`))

// VerificationMessage builds the verification email for the given recipient.
// The link points at the web frontend, which calls back into the API with the
// one-time code.
func VerificationMessage(to, webURL, code string) (Message, error) {
	link := fmt.Sprintf("%s/verify-email?token=%s", webURL, code)

	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, map[string]string{"Link": link}); err != nil {
		return Message{}, fmt.Errorf("failed to render verification email: %w", err)
	}

	return Message{
		To:       to,
		Subject:  verificationSubject,
		HTMLBody: buf.String(),
	}, nil
}
