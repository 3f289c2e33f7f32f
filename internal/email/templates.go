package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// VerificationMessage arma el correo con el link de confirmacion.
func VerificationMessage(to, link string, validFor time.Duration) (Message, error) {
	html, err := render("verify_email.html", map[string]string{
		"Link":     link,
		"ValidFor": validFor.String(),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Verify your email",
		Text:    fmt.Sprintf("Welcome to Mentora! Confirm your email: %s", link),
		HTML:    html,
	}, nil
}

// ResetCodeMessage arma el correo con el codigo de reseteo.
func ResetCodeMessage(to, code string, validFor time.Duration) (Message, error) {
	html, err := render("reset_code.html", map[string]string{
		"Code":     code,
		"ValidFor": validFor.String(),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Password Reset Request",
		Text:    fmt.Sprintf("Here is your password reset code: %s", code),
		HTML:    html,
	}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
