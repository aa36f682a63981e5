// Package notification delivers appointment emails and WhatsApp messages.
// Delivery is fire-and-forget from the scheduling layer's point of view:
// channel failures are logged and reported through DispatchResult, never
// propagated as the scheduling operation's error.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Sender interfaces
// ---------------------------------------------------------------------------

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// WhatsAppSender is the interface for sending WhatsApp messages.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, phone, body string) error
}

// ---------------------------------------------------------------------------
// Templates
// ---------------------------------------------------------------------------

// Template defines a reusable notification template.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// Built-in template ids.
const (
	TemplateCreated   = "appointment-created"
	TemplateConfirmed = "appointment-confirmed"
)

// NewTemplateEngine creates a TemplateEngine with the built-in appointment
// templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	builtIn := []Template{
		{
			ID:      TemplateCreated,
			Subject: "Cita agendada para {{patient_name}}",
			Body:    "Hola {{patient_name}}, su cita de {{specialty}} con {{doctor_name}} quedó agendada para el {{date}} a las {{time}}.",
		},
		{
			ID:      TemplateConfirmed,
			Subject: "Cita confirmada para {{patient_name}}",
			Body:    "Hola {{patient_name}}, su cita con {{doctor_name}} el {{date}} a las {{time}} fue confirmada.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
	return e
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not registered", templateID)
	}
	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

// Recipient carries the appointment fields the templates need. The scheduling
// layer fills it from the appointment record so this package does not import
// the domain.
type Recipient struct {
	PatientName  string
	PatientEmail string
	PatientPhone string
	DoctorName   string
	Specialty    string
	Date         string
	Time         string
}

// DispatchResult reports each channel's outcome independently. A nil error
// means the channel either succeeded or was not configured.
type DispatchResult struct {
	EmailErr    error
	WhatsAppErr error
}

// Failed reports whether any configured channel failed.
func (r DispatchResult) Failed() bool {
	return r.EmailErr != nil || r.WhatsAppErr != nil
}

// Dispatcher renders a template and fans the message out to the configured
// channels. Either sender may be nil, in which case that channel is skipped.
type Dispatcher struct {
	email     EmailSender
	whatsapp  WhatsAppSender
	templates *TemplateEngine
	logger    zerolog.Logger
}

// NewDispatcher creates a Dispatcher with the built-in templates.
func NewDispatcher(email EmailSender, whatsapp WhatsAppSender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		email:     email,
		whatsapp:  whatsapp,
		templates: NewTemplateEngine(),
		logger:    logger,
	}
}

// Notify renders templateID for the recipient and sends it over both
// channels. Channel errors are logged and returned in the result, never as an
// error value.
func (d *Dispatcher) Notify(ctx context.Context, templateID string, rcpt Recipient) DispatchResult {
	data := map[string]string{
		"patient_name": rcpt.PatientName,
		"doctor_name":  rcpt.DoctorName,
		"specialty":    rcpt.Specialty,
		"date":         rcpt.Date,
		"time":         rcpt.Time,
	}

	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		d.logger.Error().Err(err).Str("template", templateID).Msg("notification template render failed")
		return DispatchResult{EmailErr: err, WhatsAppErr: err}
	}

	var result DispatchResult
	if d.email != nil && rcpt.PatientEmail != "" {
		if err := d.email.SendEmail(ctx, rcpt.PatientEmail, subject, body); err != nil {
			d.logger.Error().Err(err).Str("recipient", rcpt.PatientEmail).Msg("email notification failed")
			result.EmailErr = err
		}
	}
	if d.whatsapp != nil && rcpt.PatientPhone != "" {
		if err := d.whatsapp.SendWhatsApp(ctx, rcpt.PatientPhone, body); err != nil {
			d.logger.Error().Err(err).Str("recipient", rcpt.PatientPhone).Msg("whatsapp notification failed")
			result.WhatsAppErr = err
		}
	}
	return result
}
