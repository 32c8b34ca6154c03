package mailer

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"strings"

	"golang.org/x/text/language"

	"drawtica/internal/i18n"
)

// Mailer sends the account lifecycle emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// Message is one outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

var layout = template.Must(template.New("mail").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #667eea; padding: 20px; text-align: center;"><h1 style="color: white; margin: 0;">Drawtica</h1></div>
  <div style="padding: 30px; background: #f9f9f9;">
    <h2 style="color: #333;">{{.Heading}}</h2>
    <p style="color: #666; line-height: 1.6;">{{.Body}}</p>
    <p style="text-align: center; margin: 30px 0;"><a href="{{.Link}}" style="background: #667eea; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px;">{{.Action}}</a></p>
    <p style="color: #999; font-size: 14px;">{{.Footer}}<br><a href="{{.Link}}" style="color: #667eea;">{{.Link}}</a></p>
  </div>
</div>`))

// composer builds localized messages with links under the public base URL.
type composer struct {
	baseURL string
	from    string
	lang    language.Tag
}

func newComposer(baseURL, from, locale string) composer {
	return composer{
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		lang:    i18n.Parse(locale),
	}
}

func (c composer) link(path, token string) string {
	return c.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (c composer) verification(to, token string) (Message, error) {
	return c.render(to, c.link("/verify-email", token), i18n.VerifySubject, i18n.VerifyHeading, i18n.VerifyBody, i18n.VerifyAction)
}

func (c composer) passwordReset(to, token string) (Message, error) {
	return c.render(to, c.link("/reset-password", token), i18n.ResetSubject, i18n.ResetHeading, i18n.ResetBody, i18n.ResetAction)
}

func (c composer) render(to, link string, subject, heading, body, action i18n.Key) (Message, error) {
	p := i18n.Printer(c.lang)
	var buf bytes.Buffer
	err := layout.Execute(&buf, map[string]string{
		"Heading": p.Sprintf(string(heading)),
		"Body":    p.Sprintf(string(body)),
		"Action":  p.Sprintf(string(action)),
		"Footer":  p.Sprintf(string(i18n.MailFooter)),
		"Link":    link,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{From: c.from, To: to, Subject: p.Sprintf(string(subject)), HTML: buf.String()}, nil
}
