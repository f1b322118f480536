// Package mail delivers verification and opt-out links. Delivery is a
// collaborator of the lead lifecycle: a failed send is recorded on the lead
// but never blocks submission.
package mail

import (
	"bytes"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/gomail.v2"
)

// Sender delivers the verification mail for a freshly submitted lead.
type Sender interface {
	SendVerification(to, contactName, verifyURL, optOutURL string) error
}

var verificationTmpl = template.Must(template.New("verification").Parse(`Hallo{{if .ContactName}} {{.ContactName}}{{end}},

vielen Dank für Ihre Anfrage. Bitte bestätigen Sie Ihre E-Mail-Adresse,
um Ihren persönlichen VPN-Vergleichsreport zu erhalten:

{{.VerifyURL}}

Der Link ist 7 Tage gültig.

Falls Sie keine weiteren E-Mails von uns erhalten möchten:
{{.OptOutURL}}
`))

type verificationData struct {
	ContactName string
	VerifyURL   string
	OptOutURL   string
}

// renderVerification renders the verification mail body.
func renderVerification(contactName, verifyURL, optOutURL string) (string, error) {
	var body bytes.Buffer
	err := verificationTmpl.Execute(&body, verificationData{
		ContactName: contactName,
		VerifyURL:   verifyURL,
		OptOutURL:   optOutURL,
	})
	if err != nil {
		return "", eris.Wrap(err, "mail: render verification")
	}
	return body.String(), nil
}

// SMTPSender sends mail over SMTP.
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

// NewSMTPSender creates an SMTP-backed Sender.
func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, password: password, from: from}
}

func (s *SMTPSender) SendVerification(to, contactName, verifyURL, optOutURL string) error {
	body, err := renderVerification(contactName, verifyURL, optOutURL)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Bitte bestätigen Sie Ihre E-Mail-Adresse")
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.host, s.port, s.user, s.password)
	if err := d.DialAndSend(m); err != nil {
		return eris.Wrap(err, "mail: smtp send")
	}
	return nil
}

// NopSender discards mail. Used when no SMTP host is configured and in tests.
type NopSender struct{}

func (NopSender) SendVerification(string, string, string, string) error { return nil }
