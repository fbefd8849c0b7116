package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// Relay hands a rendered message to the next hop. write streams the
// message body.
type Relay interface {
	Deliver(ctx context.Context, from string, to []string, write func(io.Writer) error) error
}

// SMTPRelay submits through one SMTP server, upgrading to TLS when the
// server offers STARTTLS and authenticating with PLAIN when a user is set.
type SMTPRelay struct {
	addr     string
	user     string
	password string
	helo     string
	dialer   net.Dialer
}

func NewSMTPRelay(addr, user, password string) *SMTPRelay {
	return &SMTPRelay{addr: addr, user: user, password: password, helo: "localhost"}
}

func (r *SMTPRelay) Deliver(ctx context.Context, from string, to []string, write func(io.Writer) error) error {
	conn, err := r.dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", r.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	host, _, err := net.SplitHostPort(r.addr)
	if err != nil {
		host = r.addr
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp.NewClient: %w", err)
	}
	defer client.Close()

	if err := client.Hello(r.helo); err != nil {
		return fmt.Errorf("client.Hello: %w", err)
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return fmt.Errorf("client.StartTLS: %w", err)
		}
	}
	if r.user != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("relay does not support AUTH")
		}
		if err := client.Auth(sasl.NewPlainClient("", r.user, r.password)); err != nil {
			return fmt.Errorf("client.Auth: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("client.Mail: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("client.Rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("client.Data: %w", err)
	}
	if err := write(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish data: %w", err)
	}
	return client.Quit()
}
