package notify

import (
	"bytes"
	"html/template"
	"strings"

	"crewhub.dev/internal/employee"
)

var templates = template.Must(template.New("mail").Parse(`
{{define "welcome"}}<p>Hello {{.Name}},</p>
<p>thanks for registering with {{.Site}}. An administrator will review your profile shortly. You can sign in once it has been approved.</p>{{end}}
{{define "admin_new"}}<p>A new employee registered with {{.Site}} and is waiting for approval.</p>
<ul><li>Name: {{.Name}}</li><li>Email: {{.Email}}</li>{{if .Position}}<li>Position: {{.Position}}</li>{{end}}<li>ID: {{.ID}}</li></ul>
{{if .Link}}<p><a href="{{.Link}}">Review registration</a></p>{{end}}{{end}}
{{define "approval"}}<p>Hello {{.Name}},</p>
<p>your {{.Site}} profile has been approved. You can now sign in.</p>
{{if .Link}}<p>Your public profile: <a href="{{.Link}}">{{.Link}}</a></p>{{end}}{{end}}
{{define "rejection"}}<p>Hello {{.Name}},</p>
<p>unfortunately your registration with {{.Site}} was not approved. Please contact an administrator if you think this is a mistake.</p>{{end}}
`))

// Site carries the values shared by every message.
type Site struct {
	Name    string
	BaseURL string
}

type view struct {
	Site     string
	Name     string
	Email    string
	Position string
	ID       string
	Link     string
}

func (s Site) view(rec employee.Record) view {
	return view{
		Site:     s.name(),
		Name:     rec.DisplayName(),
		Email:    rec.Email,
		Position: rec.Position,
		ID:       rec.ID,
	}
}

func (s Site) name() string {
	if s.Name == "" {
		return "crewhub"
	}
	return s.Name
}

func (s Site) link(path string) string {
	if s.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.BaseURL, "/") + path
}

// Welcome greets a new registrant.
func (s Site) Welcome(rec employee.Record) (Message, error) {
	return s.build("welcome", rec.Email, "Welcome to "+s.name(), s.view(rec))
}

// AdminNewRegistration tells one admin about a pending registration.
func (s Site) AdminNewRegistration(adminEmail string, rec employee.Record) (Message, error) {
	v := s.view(rec)
	v.Link = s.link("/admin/employees/" + rec.ID)
	return s.build("admin_new", adminEmail, "New registration: "+rec.DisplayName(), v)
}

// Approval tells the employee their profile is live. slug is the published slug.
func (s Site) Approval(rec employee.Record, slug string) (Message, error) {
	v := s.view(rec)
	if slug != "" {
		v.Link = s.link("/team/" + slug)
	}
	return s.build("approval", rec.Email, "Your "+s.name()+" profile was approved", v)
}

// Rejection tells the registrant the registration was declined.
func (s Site) Rejection(rec employee.Record) (Message, error) {
	return s.build("rejection", rec.Email, "Your "+s.name()+" registration", s.view(rec))
}

func (s Site) build(name, to, subject string, v view) (Message, error) {
	var b bytes.Buffer
	if err := templates.ExecuteTemplate(&b, name, v); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: strings.TrimSpace(b.String())}, nil
}
