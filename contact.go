package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"regexp"
	"strings"
	"time"
)

var (
	ErrMailerNotConfigured = errors.New("contact mailer not configured")

	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
)

// ContactForm is a submission from the contact section. It binds from both
// form posts (HTMX) and JSON.
type ContactForm struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Company string `form:"company" json:"company"`
	Message string `form:"message" json:"message"`
}

// ValidationErrors maps a form field to its message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for field, msg := range v {
		parts = append(parts, field+": "+msg)
	}
	return "invalid contact form: " + strings.Join(parts, ", ")
}

// Validate trims the form in place and reports every failing field.
func (f *ContactForm) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Company = strings.TrimSpace(f.Company)
	f.Message = strings.TrimSpace(f.Message)

	errs := ValidationErrors{}
	if f.Name == "" {
		errs["name"] = MsgNameRequired
	}
	switch {
	case f.Email == "":
		errs["email"] = MsgEmailRequired
	case !emailPattern.MatchString(f.Email):
		errs["email"] = MsgEmailInvalid
	}
	if f.Message == "" {
		errs["message"] = MsgMessageRequired
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (f ContactForm) company() string {
	if f.Company == "" {
		return MsgCompanyFallback
	}
	return f.Company
}

// Mailer delivers a validated contact form to the site owner.
type Mailer interface {
	Send(ctx context.Context, form ContactForm) error
}

// NewMailer picks the delivery backend. With no explicit provider, EmailJS
// wins when its IDs are set, then SMTP when credentials are set.
func NewMailer(cfg ContactConfig, ownerName string) (Mailer, error) {
	provider := cfg.Provider
	if provider == "" {
		switch {
		case cfg.EmailJSServiceID != "":
			provider = "emailjs"
		case cfg.SMTPUser != "":
			provider = "smtp"
		default:
			return nil, ErrMailerNotConfigured
		}
	}

	toName := cfg.ToName
	if toName == "" {
		toName = ownerName
	}

	switch provider {
	case "emailjs":
		if cfg.EmailJSServiceID == "" || cfg.EmailJSTemplateID == "" || cfg.EmailJSPublicKey == "" {
			return nil, fmt.Errorf("%w: EmailJS service, template and public key are required", ErrMailerNotConfigured)
		}
		return &EmailJSMailer{
			Endpoint:   cfg.EmailJSEndpoint,
			ServiceID:  cfg.EmailJSServiceID,
			TemplateID: cfg.EmailJSTemplateID,
			PublicKey:  cfg.EmailJSPublicKey,
			PrivateKey: cfg.EmailJSPrivateKey,
			ToName:     toName,
			Client:     &http.Client{Timeout: 15 * time.Second},
		}, nil
	case "smtp":
		if cfg.SMTPUser == "" || cfg.SMTPPass == "" || cfg.ToEmail == "" {
			return nil, fmt.Errorf("%w: SMTP credentials and TO_EMAIL are required", ErrMailerNotConfigured)
		}
		return &SMTPMailer{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			To:   cfg.ToEmail,
		}, nil
	default:
		return nil, fmt.Errorf("unknown contact provider %q", provider)
	}
}

// EmailJSMailer sends through the EmailJS REST API.
type EmailJSMailer struct {
	Endpoint   string
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	ToName     string
	Client     *http.Client
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

func (m *EmailJSMailer) Send(ctx context.Context, form ContactForm) error {
	body, err := json.Marshal(emailJSRequest{
		ServiceID:   m.ServiceID,
		TemplateID:  m.TemplateID,
		UserID:      m.PublicKey,
		AccessToken: m.PrivateKey,
		TemplateParams: map[string]string{
			"from_name":  form.Name,
			"from_email": form.Email,
			"company":    form.company(),
			"message":    form.Message,
			"to_name":    m.ToName,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal emailjs request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create emailjs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return fmt.Errorf("emailjs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("emailjs returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	return nil
}

// SMTPMailer sends a plain-text mail with the visitor as Reply-To.
type SMTPMailer struct {
	Host string
	Port string
	User string
	Pass string
	To   string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func (m *SMTPMailer) Send(ctx context.Context, form ContactForm) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := fmt.Sprintf("Portfolio Contact: %s", form.Name)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Company: %s
Message:
%s

---
Sent from your portfolio contact form
`, form.Name, form.Email, form.company(), form.Message)

	msg := []byte("To: " + m.To + "\r\n" +
		"Subject: " + headerSafe(subject) + "\r\n" +
		"From: " + m.User + "\r\n" +
		"Reply-To: " + headerSafe(form.Email) + "\r\n" +
		"\r\n" +
		body + "\r\n")

	send := m.send
	if send == nil {
		send = smtp.SendMail
	}
	auth := smtp.PlainAuth("", m.User, m.Pass, m.Host)
	if err := send(m.Host+":"+m.Port, auth, m.User, []string{m.To}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// headerSafe strips CR/LF so visitor input cannot inject headers.
func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
