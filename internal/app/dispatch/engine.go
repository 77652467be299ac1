package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mboxwell/bulkmailer/internal/app/config"
	"github.com/mboxwell/bulkmailer/internal/app/mailer"
	"github.com/mboxwell/bulkmailer/internal/pkg/logger"
)

// Session is one open connection serving a single batch of recipients.
type Session interface {
	Send(*mailer.Message) error
	Close() error
}

// Dialer opens a fresh Session for each batch.
type Dialer interface {
	Open(ctx context.Context) (Session, error)
}

// Renderer substitutes the recipient's field mapping into a template.
type Renderer interface {
	Render(templateContent string, ctx map[string]string) (string, error)
}

// Observer is notified after each recipient is resolved. It drives
// whatever presentation layer sits on top of the engine.
type Observer interface {
	OnProgress(done, total int)
	OnOutcome(Outcome)
}

type noopObserver struct{}

func (noopObserver) OnProgress(int, int) {}
func (noopObserver) OnOutcome(Outcome)   {}

// MessageSpec describes the message rendered for every recipient of a
// run. Attachments are loaded once up front and shared read-only.
type MessageSpec struct {
	SubjectTemplate string
	TextTemplate    string
	HTMLTemplate    string
	ReplyTo         string
	ListUnsubscribe string
	Attachments     []mailer.Attachment
}

// Engine processes recipients strictly in input order on a single
// worker: one session per batch-sized window, paced sends, bounded
// retries with exponential backoff, and one ledger entry per recipient.
type Engine struct {
	cfg      config.Sending
	dialer   Dialer
	renderer Renderer
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	rng      *rand.Rand
}

type Option func(*Engine)

// WithObserver installs a progress/outcome observer.
func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observer = observer }
}

// WithJitterSource replaces the backoff jitter source, making retry
// timing reproducible under a fixed seed.
func WithJitterSource(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithClock replaces the wall clock and the blocking sleep used for
// pacing and backoff.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(e *Engine) {
		e.now = now
		e.sleep = sleep
	}
}

func New(cfg config.Sending, dialer Dialer, renderer Renderer, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg,
		dialer:   dialer,
		renderer: renderer,
		observer: noopObserver{},
		logger:   log,
		now:      time.Now,
		sleep:    sleepContext,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run dispatches the message to every recipient and returns the
// completed ledger. Recipient-scoped failures never abort the run;
// session open failures doom only the current window. On context
// cancellation the active session is closed and every unprocessed
// recipient is recorded as skipped.
func (e *Engine) Run(ctx context.Context, recipients []Recipient, spec MessageSpec) *Ledger {
	total := len(recipients)
	ledger := NewLedger(total)
	limiter := newRateLimiter(e.cfg.RatePerMinute, e.now, e.sleep)

	for start := 0; start < total; start += e.cfg.BatchSize {
		end := min(start+e.cfg.BatchSize, total)
		wctx := logger.WithAttrs(ctx, slog.Int("batch", start/e.cfg.BatchSize))
		e.runWindow(wctx, recipients[start:end], start, total, spec, limiter, ledger)
	}

	e.logger.InfoContext(ctx, "dispatch run finished",
		slog.Int("sent", ledger.Sent()),
		slog.Int("failed", ledger.Failed()),
		slog.Int("skipped", ledger.Skipped()),
	)

	return ledger
}

func (e *Engine) runWindow(ctx context.Context, window []Recipient, offset, total int, spec MessageSpec, limiter *rateLimiter, ledger *Ledger) {
	var session Session

	if !e.cfg.DryRun && ctx.Err() == nil {
		opened, err := e.dialer.Open(ctx)
		if err != nil {
			e.logger.ErrorContext(ctx, "session open failed", slog.Any("error", err))
			for i, recipient := range window {
				e.record(ctx, ledger, Outcome{
					Email:  recipient.Email(),
					Status: StatusBatchFailure,
					Err:    err.Error(),
				}, offset+i, total)
			}
			return
		}
		session = opened
		defer func() { _ = session.Close() }()
		limiter.reset()
	}

	for i, recipient := range window {
		outcome := e.processRecipient(ctx, session, recipient, spec, limiter)
		e.record(ctx, ledger, outcome, offset+i, total)
	}
}

func (e *Engine) processRecipient(ctx context.Context, session Session, recipient Recipient, spec MessageSpec, limiter *rateLimiter) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Email: recipient.Email(), Status: StatusSkipped, Err: err.Error()}
	}

	email := recipient.Email()
	if email == "" {
		return Outcome{Status: StatusPermanentFailure, Err: "missing recipient email"}
	}

	msg, err := e.renderMessage(recipient, spec)
	if err != nil {
		return Outcome{Email: email, Status: StatusTemplateFailure, Err: err.Error()}
	}

	if e.cfg.DryRun {
		// No network call and no pacing bookkeeping: dry runs are unpaced.
		return Outcome{Email: email, Status: StatusSent}
	}

	if err = limiter.wait(ctx); err != nil {
		return Outcome{Email: email, Status: StatusSkipped, Err: err.Error()}
	}

	return e.sendWithRetries(ctx, session, msg, limiter)
}

func (e *Engine) renderMessage(recipient Recipient, spec MessageSpec) (*mailer.Message, error) {
	subject, err := e.renderer.Render(spec.SubjectTemplate, recipient)
	if err != nil {
		return nil, fmt.Errorf("render subject: %w", err)
	}

	var textBody, htmlBody string
	if spec.TextTemplate != "" {
		if textBody, err = e.renderer.Render(spec.TextTemplate, recipient); err != nil {
			return nil, fmt.Errorf("render text body: %w", err)
		}
	}
	if spec.HTMLTemplate != "" {
		if htmlBody, err = e.renderer.Render(spec.HTMLTemplate, recipient); err != nil {
			return nil, fmt.Errorf("render html body: %w", err)
		}
	}

	return &mailer.Message{
		To:          recipient.Email(),
		Subject:     subject,
		TextBody:    textBody,
		HTMLBody:    htmlBody,
		Headers:     messageHeaders(recipient, spec),
		Attachments: spec.Attachments,
	}, nil
}

// messageHeaders applies the static Reply-To/List-Unsubscribe pair from
// configuration. A per-recipient unsubscribe URL is used only when no
// static List-Unsubscribe is configured, and then together with the
// one-click List-Unsubscribe-Post marker.
func messageHeaders(recipient Recipient, spec MessageSpec) map[string]string {
	headers := make(map[string]string, 3)

	if spec.ReplyTo != "" {
		headers["Reply-To"] = spec.ReplyTo
	}

	switch {
	case spec.ListUnsubscribe != "":
		headers["List-Unsubscribe"] = spec.ListUnsubscribe
	case recipient.UnsubscribeURL() != "":
		headers["List-Unsubscribe"] = "<" + recipient.UnsubscribeURL() + ">"
		headers["List-Unsubscribe-Post"] = "List-Unsubscribe=One-Click"
	}

	return headers
}

func (e *Engine) sendWithRetries(ctx context.Context, session Session, msg *mailer.Message, limiter *rateLimiter) Outcome {
	for attempt := 1; ; attempt++ {
		err := session.Send(msg)
		if err == nil {
			limiter.mark()
			return Outcome{Email: msg.To, Status: StatusSent}
		}

		code, permanent := classifySendError(err)
		if permanent {
			return Outcome{Email: msg.To, Status: StatusPermanentFailure, Code: code, Err: err.Error()}
		}
		if attempt >= e.cfg.MaxRetries+1 {
			return Outcome{Email: msg.To, Status: StatusTransientFailure, Code: code, Err: err.Error()}
		}

		delay := jitteredBackoff(attempt, e.rng)
		e.logger.DebugContext(ctx, "transient send failure, backing off",
			slog.String("email", msg.To),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		if err = e.sleep(ctx, delay); err != nil {
			return Outcome{Email: msg.To, Status: StatusSkipped, Err: err.Error()}
		}
	}
}

func (e *Engine) record(ctx context.Context, ledger *Ledger, outcome Outcome, index, total int) {
	ledger.Append(outcome)
	e.observer.OnOutcome(outcome)
	e.observer.OnProgress(index+1, total)

	if outcome.Failed() {
		e.logger.WarnContext(ctx, "recipient failed",
			slog.String("email", outcome.Email),
			slog.String("status", string(outcome.Status)),
			slog.String("error", outcome.Err),
		)
	}
}
