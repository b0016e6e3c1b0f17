// Package render fills the venue notification template for one record.
//
// Substitution is literal: every occurrence of a bracketed token is replaced
// with the record's raw field value. There is no escaping, looping or
// conditional logic; the dated template variant is chosen up front when the
// record carries a date.
package render

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"venuemail/internal/record"
)

// Placeholder tokens recognised in a template.
const (
	TokenEventName    = "[event_name]"
	TokenVenue        = "[venue]"
	TokenTime         = "[Time]"
	TokenDate         = "[Date]"
	TokenInchargeName = "[event_incharge_name]"
)

// Tokens lists every placeholder token.
var Tokens = []string{TokenEventName, TokenVenue, TokenTime, TokenDate, TokenInchargeName}

var (
	// ErrMissingField means the template needs a value the record does not have.
	ErrMissingField = errors.New("template field missing from record")
	// ErrUnresolved means a placeholder token survived substitution.
	ErrUnresolved = errors.New("unresolved placeholder in rendered body")
)

//go:embed templates/*.html
var builtin embed.FS

// Message is the rendered subject and HTML body for one record.
type Message struct {
	Subject string
	HTML    string
}

// Renderer renders records against a fixed template pair.
type Renderer struct {
	plain string
	dated string
}

// New returns a Renderer using the built-in venue templates.
func New() *Renderer {
	return &Renderer{
		plain: mustBuiltin("templates/venue.html"),
		dated: mustBuiltin("templates/venue_dated.html"),
	}
}

// FromFile returns a Renderer whose body is read from path. The same body is
// used whether or not a record has a date.
func FromFile(path string) (*Renderer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	body := string(b)
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("template %s is empty", path)
	}
	return &Renderer{plain: body, dated: body}, nil
}

// FromString returns a Renderer for an in-memory body.
func FromString(body string) *Renderer {
	return &Renderer{plain: body, dated: body}
}

func mustBuiltin(name string) string {
	b, err := builtin.ReadFile(name)
	if err != nil {
		panic("render: missing embedded template " + name)
	}
	return string(b)
}

// Subject returns the subject line for rec.
func Subject(rec record.NotificationRecord) string {
	if rec.HasDate() {
		return fmt.Sprintf("Venue Update for %s on %s", rec.EventName, rec.Date)
	}
	return "Venue Update for " + rec.EventName
}

// Render substitutes rec into the template. It is deterministic and has no
// side effects.
func (r *Renderer) Render(rec record.NotificationRecord) (Message, error) {
	body := r.plain
	if rec.HasDate() {
		body = r.dated
	}

	values := map[string]string{
		TokenEventName:    rec.EventName,
		TokenVenue:        rec.Venue,
		TokenTime:         rec.Time,
		TokenDate:         rec.Date,
		TokenInchargeName: rec.InchargeName,
	}
	pairs := make([]string, 0, 2*len(Tokens))
	for _, tok := range Tokens {
		if !strings.Contains(body, tok) {
			continue
		}
		v := values[tok]
		if v == "" {
			return Message{}, fmt.Errorf("%w: %s", ErrMissingField, tok)
		}
		pairs = append(pairs, tok, v)
	}

	html := strings.NewReplacer(pairs...).Replace(body)
	if left := Unresolved(html); len(left) > 0 {
		return Message{}, fmt.Errorf("%w: %s", ErrUnresolved, strings.Join(left, ", "))
	}
	return Message{Subject: Subject(rec), HTML: html}, nil
}

// Unresolved returns the placeholder tokens still present in s.
func Unresolved(s string) []string {
	var out []string
	for _, tok := range Tokens {
		if strings.Contains(s, tok) {
			out = append(out, tok)
		}
	}
	return out
}
