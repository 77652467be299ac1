package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mboxwell/bulkmailer/internal/app/config"
	"github.com/mboxwell/bulkmailer/internal/app/dispatch"
	"github.com/mboxwell/bulkmailer/internal/app/mailer"
	"github.com/mboxwell/bulkmailer/internal/app/render"
	"github.com/mboxwell/bulkmailer/internal/app/source"
	"github.com/mboxwell/bulkmailer/internal/pkg/logger"
)

var (
	configFilepath = flag.String("config", "./config.yaml", "Filepath to configuration file. Default is './config.yaml'")
	envFilepath    = flag.String("env-file", "./.env", "Filepath to environment variables file. Default is './.env'")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFilepath, *envFilepath)
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}
	if err = cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %s", err)
	}

	slogger := logger.New(os.Stdout, slog.Level(cfg.LogLevel))

	recipients, err := source.LoadCSVFile(cfg.RecipientsFile)
	if err != nil {
		log.Fatalf("failed to load recipients: %s", err)
	}

	spec, err := buildMessageSpec(cfg.Message)
	if err != nil {
		log.Fatalf("failed to prepare message: %s", err)
	}

	dialer := mailer.NewDialer(cfg.SMTP, slogger.With(slog.String("module", "mailer")))

	engine := dispatch.New(
		cfg.Sending,
		sessionDialer{dialer},
		render.NewRenderer(),
		slogger.With(slog.String("module", "dispatch")),
		dispatch.WithObserver(&progressReporter{logger: slogger, total: len(recipients)}),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ledger := engine.Run(ctx, recipients, spec)

	if len(ledger.Failures()) > 0 && cfg.FailureLogFile != "" {
		if err = writeFailureLog(cfg.FailureLogFile, ledger); err != nil {
			slogger.Error("failed to write failure log", slog.Any("error", err))
			os.Exit(1)
		}
		slogger.Info("failure log written", slog.String("path", cfg.FailureLogFile))
	}
}

// buildMessageSpec resolves body template files and loads attachments
// once, before any dispatching starts.
func buildMessageSpec(cfg config.Message) (dispatch.MessageSpec, error) {
	spec := dispatch.MessageSpec{
		SubjectTemplate: cfg.Subject,
		ReplyTo:         cfg.ReplyTo,
		ListUnsubscribe: cfg.ListUnsubscribe,
	}

	if cfg.TextFile != "" {
		content, err := os.ReadFile(cfg.TextFile)
		if err != nil {
			return spec, fmt.Errorf("read text template: %w", err)
		}
		spec.TextTemplate = string(content)
	}
	if cfg.HTMLFile != "" {
		content, err := os.ReadFile(cfg.HTMLFile)
		if err != nil {
			return spec, fmt.Errorf("read html template: %w", err)
		}
		spec.HTMLTemplate = string(content)
	}
	if spec.TextTemplate == "" && spec.HTMLTemplate == "" {
		return spec, fmt.Errorf("at least one of text_file/html_file must be configured")
	}

	attachments, err := mailer.LoadAttachments(cfg.Attachments)
	if err != nil {
		return spec, err
	}
	spec.Attachments = attachments

	return spec, nil
}

func writeFailureLog(path string, ledger *dispatch.Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failure log: %w", err)
	}
	defer f.Close()

	return ledger.WriteFailures(f)
}

// sessionDialer adapts the concrete SMTP dialer to the engine's
// Session-returning interface.
type sessionDialer struct {
	dialer *mailer.Dialer
}

func (d sessionDialer) Open(ctx context.Context) (dispatch.Session, error) {
	session, err := d.dialer.Open(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// progressReporter logs dispatch progress as recipients are resolved.
type progressReporter struct {
	logger *slog.Logger
	total  int
}

func (p *progressReporter) OnProgress(done, total int) {
	p.logger.Info("progress", slog.Int("done", done), slog.Int("total", total))
}

func (p *progressReporter) OnOutcome(outcome dispatch.Outcome) {
	if outcome.Failed() {
		p.logger.Warn("delivery failed",
			slog.String("email", outcome.Email),
			slog.String("status", string(outcome.Status)),
			slog.String("error", outcome.Err),
		)
	}
}
