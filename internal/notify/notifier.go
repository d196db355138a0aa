// Package notify delivers generated eligibility reports to intake staff.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/util"
	"github.com/ppiankov/intake/internal/worker"
)

const (
	ModeSMTP = "smtp"
	ModeLog  = "log"

	implicitTLSPort = 465
)

// ErrNotConfigured is returned when sender, credential or recipient is missing
var ErrNotConfigured = errors.New("notifier not configured: sender, password and recipient are required")

// Notifier delivers a generated report. A nil error means it was sent.
type Notifier interface {
	Notify(ctx context.Context, handle model.ReportHandle, rec model.IntakeRecord) error
}

// DialFunc opens the transport connection to the SMTP server
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// SMTPNotifier emails the report to staff over SMTP
type SMTPNotifier struct {
	host      string
	port      int
	sender    string
	password  string
	recipient string
	limiter   *worker.Limiter
	dial      DialFunc
	tlsConfig *tls.Config
	now       func() time.Time
	logger    *zap.Logger
}

// NewSMTPNotifier creates an SMTP notifier. A nil limiter disables throttling.
func NewSMTPNotifier(cfg model.NotifyConfig, limiter *worker.Limiter, logger *zap.Logger) *SMTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	host := cfg.SMTPHost
	if host == "" {
		host = "smtp.gmail.com"
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = implicitTLSPort
	}
	return &SMTPNotifier{
		host:      host,
		port:      port,
		sender:    cfg.Sender,
		password:  cfg.Password,
		recipient: cfg.Recipient,
		limiter:   limiter,
		dial:      util.DialContext,
		tlsConfig: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		now:       time.Now,
		logger:    logger,
	}
}

// Configured reports whether all required settings are present
func (n *SMTPNotifier) Configured() bool {
	return n.sender != "" && n.password != "" && n.recipient != ""
}

// Notify sends one email with the report attached. The context deadline
// bounds the throttle wait and the whole SMTP exchange.
func (n *SMTPNotifier) Notify(ctx context.Context, handle model.ReportHandle, rec model.IntakeRecord) error {
	if !n.Configured() {
		n.logger.Warn("email not sent", zap.Error(ErrNotConfigured))
		return ErrNotConfigured
	}

	msg, err := BuildMessage(n.sender, n.recipient, handle, rec, n.now())
	if err != nil {
		return err
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx, n.recipient); err != nil {
			return fmt.Errorf("wait for send slot: %w", err)
		}
	}

	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("report emailed", zap.String("to", n.recipient), zap.String("report_id", handle.ID))
	return nil
}

func (n *SMTPNotifier) send(ctx context.Context, msg []byte) error {
	addr := net.JoinHostPort(n.host, strconv.Itoa(n.port))

	conn, err := n.dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock any pending read or write if the context is canceled early
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if n.port == implicitTLSPort {
		conn = tls.Client(conn, n.tlsConfig)
	}

	c, err := smtp.NewClient(conn, n.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if n.port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(n.tlsConfig); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if err := c.Auth(smtp.PlainAuth("", n.sender, n.password, n.host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(n.sender); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(n.recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}

	return c.Quit()
}

// LogNotifier records the notification in the log instead of sending it
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the subject and report location
func (n *LogNotifier) Notify(ctx context.Context, handle model.ReportHandle, rec model.IntakeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Info("report notification",
		zap.String("subject", Subject(rec)),
		zap.String("report_id", handle.ID),
		zap.String("path", handle.Path),
		zap.Strings("artifacts", handle.Artifacts))
	return nil
}

// New builds the notifier selected by cfg.Mode
func New(cfg model.NotifyConfig, logger *zap.Logger) (Notifier, error) {
	switch cfg.Mode {
	case "", ModeSMTP:
		limiter := worker.NewLimiter(cfg.RatePerSecond, cfg.Burst)
		for _, dr := range cfg.DomainRates {
			if strings.TrimSpace(dr.Domain) == "" {
				return nil, errors.New("notify.domain_rates: entry without domain")
			}
			limiter.SetDomainRate(dr.Domain, dr.RatePerSecond, dr.Burst)
		}
		return NewSMTPNotifier(cfg, limiter, logger), nil
	case ModeLog:
		return NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notify mode: %q", cfg.Mode)
	}
}
