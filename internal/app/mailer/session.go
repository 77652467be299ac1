package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/mboxwell/bulkmailer/internal/app/config"
)

// Dialer opens SMTP sessions according to the configured transport
// security mode. Each session is meant to serve one batch of recipients
// and must be closed at the batch boundary.
type Dialer struct {
	cfg    config.SMTP
	logger *slog.Logger
}

func NewDialer(cfg config.SMTP, logger *slog.Logger) *Dialer {
	return &Dialer{
		cfg:    cfg,
		logger: logger,
	}
}

// Open establishes the transport connection, negotiates encryption
// (implicit TLS on use_ssl, otherwise plaintext connect optionally
// upgraded via STARTTLS on use_tls) and authenticates when both
// credentials are non-empty. Any failure surfaces as *ConnectError.
func (d *Dialer) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	tlsConfig := &tls.Config{ServerName: d.cfg.Host}

	var (
		client *smtp.Client
		err    error
	)
	switch {
	case d.cfg.UseSSL:
		client, err = smtp.DialTLS(addr, tlsConfig)
	case d.cfg.UseTLS:
		client, err = smtp.DialStartTLS(addr, tlsConfig)
	default:
		client, err = smtp.Dial(addr)
	}
	if err != nil {
		return nil, &ConnectError{Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	client.CommandTimeout = d.cfg.Timeout
	client.SubmissionTimeout = d.cfg.Timeout

	if d.cfg.Username != "" && d.cfg.Password != "" {
		if err = client.Auth(sasl.NewPlainClient("", d.cfg.Username, d.cfg.Password)); err != nil {
			_ = client.Close()
			return nil, &ConnectError{Err: fmt.Errorf("authenticate as %q: %w", d.cfg.Username, err)}
		}
	}

	d.logger.Debug("smtp session established", slog.String("address", addr))

	return &Session{
		client: client,
		from:   d.cfg.FromAddress,
		logger: d.logger,
	}, nil
}

// Session is an authenticated SMTP connection exclusively owned by the
// batch currently being processed.
type Session struct {
	client *smtp.Client
	from   string
	logger *slog.Logger
}

// Send builds the MIME message and transmits it to its single recipient.
// Protocol rejections are reported as *SendError carrying the SMTP
// status code; network-level failures carry no code.
func (s *Session) Send(msg *Message) error {
	raw, err := msg.Build(s.from)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	envelope := parseAddress(s.from).Address
	if err = s.client.SendMail(envelope, []string{msg.To}, bytes.NewReader(raw)); err != nil {
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return &SendError{Code: smtpErr.Code, Err: err}
		}
		return &SendError{Err: err}
	}

	return nil
}

// Close quits the session gracefully. Shutdown-phase errors are
// swallowed: by the time close runs every message outcome is already
// decided, so a failed QUIT must not disturb the run.
func (s *Session) Close() error {
	if err := s.client.Quit(); err != nil {
		s.logger.Debug("smtp quit failed", slog.Any("error", err))
		_ = s.client.Close()
	}
	return nil
}
