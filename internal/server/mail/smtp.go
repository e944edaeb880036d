package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dmitrijs2005/workflow/internal/logging"
)

const productName = "WorkFlow"

// DefaultSendTimeout bounds a delivery whose context carries no deadline.
const DefaultSendTimeout = 10 * time.Second

// SMTPConfig holds the relay settings. Auth is skipped when User is empty.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

func (c SMTPConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers plain-text messages through an SMTP relay. STARTTLS is
// used whenever the relay advertises it.
type SMTPSender struct {
	cfg    SMTPConfig
	logger logging.Logger
	send   sendFunc
	now    func() time.Time
}

func NewSMTPSender(cfg SMTPConfig, logger logging.Logger) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSendTimeout
	}
	s := &SMTPSender{
		cfg:    cfg,
		logger: logger.With("module", "mail"),
		now:    time.Now,
	}
	s.send = s.sendMail
	return s
}

var (
	resetTemplate = template.Must(template.New("reset").Parse(`Hello {{.Name}},

We received a request to reset the password of your {{.Product}} account.

Your reset token is:

    {{.Token}}

The token expires in 1 hour and can be used once. If you did not request a
reset, you can ignore this message; your password stays unchanged.

{{.Product}} Team
`))

	confirmationTemplate = template.Must(template.New("confirmation").Parse(`Hello {{.Name}},

The password of your {{.Product}} account was changed on {{.When}}.

If you did not make this change, contact your administrator immediately.

{{.Product}} Team
`))
)

type messageData struct {
	Name    string
	Product string
	Token   string
	When    string
}

func (s *SMTPSender) SendResetEmail(ctx context.Context, to, userName, token string) bool {
	data := messageData{Name: displayName(userName), Product: productName, Token: token}
	return s.deliver(ctx, to, "Password Reset - "+productName, resetTemplate, data)
}

func (s *SMTPSender) SendResetConfirmation(ctx context.Context, to, userName string) bool {
	data := messageData{
		Name:    displayName(userName),
		Product: productName,
		When:    s.now().UTC().Format("2006-01-02 15:04 MST"),
	}
	return s.deliver(ctx, to, "Password Changed Successfully - "+productName, confirmationTemplate, data)
}

func (s *SMTPSender) deliver(ctx context.Context, to, subject string, tmpl *template.Template, data messageData) bool {
	msg, err := s.compose(to, subject, tmpl, data)
	if err != nil {
		s.logger.Error(ctx, "compose email", "to", to, "error", err)
		return false
	}

	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := s.send(ctx, s.cfg.addr(), auth, s.cfg.From, []string{to}, msg); err != nil {
		s.logger.Error(ctx, "send email", "to", to, "subject", subject, "error", err)
		return false
	}
	s.logger.Info(ctx, "email sent", "to", to, "subject", subject)
	return true
}

// sendMail runs the SMTP exchange of smtp.SendMail over a connection whose
// deadline follows ctx, so a silent relay cannot hold the caller forever.
func (s *SMTPSender) sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	// cancellation before the deadline also unblocks pending reads
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (s *SMTPSender) compose(to, subject string, tmpl *template.Template, data messageData) ([]byte, error) {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(s.cfg.From, "\r\n") {
		return nil, fmt.Errorf("invalid address")
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&msg, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))
	return msg.Bytes(), nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "User"
	}
	return name
}
