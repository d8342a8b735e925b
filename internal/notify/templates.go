package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// Kind names an appointment email.
type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindReminder     Kind = "reminder"
	KindWaitlist     Kind = "waitlist"
)

// DisplayLayout is how appointment times appear in subjects and bodies.
const DisplayLayout = "January 02, 2006 at 03:04 PM"

// AppointmentNotice is everything an appointment email needs. Times are
// rendered in Location.
type AppointmentNotice struct {
	AppointmentID   string
	TenantID        string
	ClinicName      string
	OwnerFirstName  string
	OwnerFullName   string
	OwnerEmail      string
	PetName         string
	Start           time.Time
	DurationMinutes int
	Notes           string
	Location        *time.Location
}

func (n AppointmentNotice) when() string {
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	return n.Start.In(loc).Format(DisplayLayout)
}

func (n AppointmentNotice) clinic() string {
	if strings.TrimSpace(n.ClinicName) == "" {
		return "Clinic Team"
	}
	return n.ClinicName
}

type emailView struct {
	Heading  string
	Greeting string
	Intro    string
	PetName  string
	When     string
	Duration int
	Closing  string
	Clinic   string
}

var emailTemplate = template.Must(template.New("appointment").Parse(`<html>
<body>
  <h2>{{.Heading}}</h2>
  <p>Dear {{.Greeting}},</p>
  <p>{{.Intro}}</p>
  <ul>
    <li><strong>Pet:</strong> {{.PetName}}</li>
    <li><strong>Date &amp; Time:</strong> {{.When}}</li>
    {{- if .Duration}}
    <li><strong>Duration:</strong> {{.Duration}} minutes</li>
    {{- end}}
  </ul>
  <p>{{.Closing}}</p>
  <p>Best regards,<br>{{.Clinic}}</p>
</body>
</html>`))

// Render builds the email for kind.
func Render(kind Kind, n AppointmentNotice) (EmailMessage, error) {
	view := emailView{
		Greeting: n.OwnerFirstName,
		PetName:  n.PetName,
		When:     n.when(),
		Duration: n.DurationMinutes,
		Clinic:   n.clinic(),
	}
	if view.Greeting == "" {
		view.Greeting = "pet owner"
	}

	var subject string
	switch kind {
	case KindConfirmation:
		subject = "Appointment Confirmed: " + view.When
		view.Heading = "Appointment Confirmed"
		view.Intro = "Your appointment has been confirmed:"
		view.Closing = "We look forward to seeing you!"
	case KindCancellation:
		subject = "Appointment Cancelled: " + view.When
		view.Heading = "Appointment Cancelled"
		view.Intro = "Your appointment has been cancelled:"
		view.Closing = "If you would like to reschedule, please contact us."
	case KindReminder:
		subject = "Appointment Reminder: " + view.When
		view.Heading = "Appointment Reminder"
		view.Intro = "This is a reminder that you have an appointment scheduled:"
		view.Closing = "Please arrive 10 minutes early. If you need to reschedule or cancel, please contact us."
	case KindWaitlist:
		subject = "A Slot Has Opened: " + view.When
		view.Heading = "Good News"
		view.Intro = "A time slot opened up on the day you asked for:"
		view.Duration = 0
		view.Closing = "Contact us soon to book it before it is taken."
	default:
		return EmailMessage{}, fmt.Errorf("notify: unknown email kind %q", kind)
	}

	var html bytes.Buffer
	if err := emailTemplate.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render %s: %w", kind, err)
	}

	text := fmt.Sprintf("%s\n\nDear %s,\n%s\nPet: %s\nDate & Time: %s\n", view.Heading, view.Greeting, view.Intro, view.PetName, view.When)
	if view.Duration > 0 {
		text += fmt.Sprintf("Duration: %d minutes\n", view.Duration)
	}
	text += "\n" + view.Closing + "\n\nBest regards,\n" + view.Clinic + "\n"

	tags := map[string]string{}
	if n.TenantID != "" {
		tags["tenant_id"] = n.TenantID
	}
	if n.AppointmentID != "" {
		tags["appointment_id"] = n.AppointmentID
	}
	return EmailMessage{
		To:      n.OwnerEmail,
		ToName:  n.OwnerFullName,
		Subject: subject,
		Body:    text,
		HTML:    html.String(),
		Kind:    kind,
		Tags:    tags,
	}, nil
}
