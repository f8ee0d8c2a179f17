package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"talk-chat/config"
	"talk-chat/pkg/metrics"
)

const (
	codeSubject = "Talk Chat - Код подтверждения"
	codeBody    = "Ваш код подтверждения для Talk Chat: %s\n\nКод действителен 10 минут."
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender delivers verification codes directly. smtp.SendMail upgrades to
// STARTTLS whenever the server offers it.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	send sendFunc
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPSender{
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		from: from,
		send: smtp.SendMail,
	}
}

// SendCode mails code to email. The context only bounds the wait; net/smtp
// itself cannot be cancelled mid-dialogue.
func (s *SMTPSender) SendCode(ctx context.Context, email, code string) error {
	msg := composeCodeMail(s.from, email, code, time.Now())

	errc := make(chan error, 1)
	go func() { errc <- s.send(s.addr, s.auth, s.from, []string{email}, msg) }()

	select {
	case err := <-errc:
		if err != nil {
			metrics.MailQueued.WithLabelValues("smtp", "error").Inc()
			return fmt.Errorf("smtp send: %w", err)
		}
		metrics.MailQueued.WithLabelValues("smtp", "ok").Inc()
		return nil
	case <-ctx.Done():
		metrics.MailQueued.WithLabelValues("smtp", "error").Inc()
		return ctx.Err()
	}
}

func composeCodeMail(from, to, code string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", codeSubject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, codeBody, code)
	b.WriteString("\r\n")
	return b.Bytes()
}
