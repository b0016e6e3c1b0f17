package dispatch

import (
	mail "gopkg.in/mail.v2"
)

// Outgoing is one rendered notification ready for dispatch.
//
// Err carries a failure from building the message (e.g. rendering); such a
// message is reported as failed without opening a session.
type Outgoing struct {
	Line    int
	To      string
	Subject string
	HTML    string
	Err     error
}

// Identity is the sender shown in From.
type Identity struct {
	Address string
	Name    string
}

// Envelope builds the MIME message for out: HTML body, fixed CC, high
// priority headers and the shared attachments.
func Envelope(from Identity, cc string, out Outgoing, atts []*Attachment) *mail.Message {
	m := mail.NewMessage()
	m.SetAddressHeader("From", from.Address, from.Name)
	m.SetHeader("To", out.To)
	if cc != "" {
		m.SetHeader("Cc", cc)
	}
	m.SetHeader("Subject", out.Subject)
	m.SetHeader("X-Priority", "1")
	m.SetHeader("X-MSMail-Priority", "High")
	m.SetHeader("Importance", "High")
	m.SetBody("text/html", out.HTML)
	for _, a := range atts {
		m.AttachReader(a.Name(), a.Reader())
	}
	return m
}
