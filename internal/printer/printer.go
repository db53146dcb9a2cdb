// Package printer renders structured documents on an ESC/POS receipt
// printer. The physical device is a capability, not a dependency: callers
// probe availability and treat an unavailable device as a skip, never as a
// reason to retry or abort scheduling.
package printer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"printdesk/internal/model"
)

// ErrUnavailable means the device probe failed (unplugged, powered off,
// or the device node is missing). Expected and non-fatal.
var ErrUnavailable = errors.New("printer: device unavailable")

// Document is the abstract receipt layout.
type Document struct {
	Title    string
	Subtitle string
	Body     string
	// QR is the payload of the scannable code at the top (URL or ID).
	// Empty means no code is printed.
	QR     string
	Footer []string
}

// Gateway abstracts the physical output device.
type Gateway interface {
	// Available reports whether the device probe succeeds right now.
	Available() bool
	// Render prints one document. It returns ErrUnavailable when the
	// device probe fails and only genuine I/O errors otherwise; it never
	// fails for business reasons.
	Render(ctx context.Context, doc Document) error
}

// Disabled returns a gateway with no device behind it. Every render
// reports ErrUnavailable, which callers already treat as a skip.
func Disabled() Gateway { return disabled{} }

type disabled struct{}

func (disabled) Available() bool                        { return false }
func (disabled) Render(context.Context, Document) error { return ErrUnavailable }

// footerTimeFormat matches the receipt's "Printed at" line.
const footerTimeFormat = "03:04 PM, 01/02/2006"

// TaskDocument lays out a fired reminder.
//
// When the task has no URL the QR falls back to a deep link into the
// appliance's own task page, so scanning any receipt leads somewhere.
func TaskDocument(t model.Task, baseURL string, at time.Time) Document {
	qr := t.URL
	if qr == "" && baseURL != "" {
		qr = baseURL + "/tasks#" + t.ID
	}
	kind := "Non-recurring"
	if t.Recur.Recurring() {
		kind = "Recurring (" + string(t.Recur) + ")"
	}
	return Document{
		Title:    t.Title,
		Subtitle: t.Note,
		QR:       qr,
		Footer: []string{
			"Printed at " + at.Format(footerTimeFormat),
			"Task Type: " + kind,
			"Task ID: " + t.ID,
		},
	}
}

// IssueDocument lays out one external issue report.
func IssueDocument(is model.Issue, at time.Time) Document {
	return Document{
		Title:    is.Type,
		Subtitle: is.Address,
		Body:     is.Description,
		QR:       is.URL,
		Footer: []string{
			fmt.Sprintf("Reported %s (%s)", is.CreatedAt.UTC().Format(model.TimeLayoutUTC), is.Status),
			"Printed at " + at.Format(footerTimeFormat),
			"Report ID: " + is.ID,
		},
	}
}
