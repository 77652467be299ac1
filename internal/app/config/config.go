package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	SMTP           SMTP    `yaml:"smtp"`             // Outbound SMTP server settings.
	Sending        Sending `yaml:"sending"`          // Throughput and reliability controls.
	Message        Message `yaml:"message"`          // Templates, headers and attachments.
	RecipientsFile string  `yaml:"recipients_file"`  // Path to the recipient CSV file.
	FailureLogFile string  `yaml:"failure_log_file"` // Path the failure CSV is written to at run end.
	LogLevel       int     `yaml:"log_level"`        // Logging level (e.g. 0: info, -4: debug).
}

type SMTP struct {
	Host        string        `yaml:"host"`         // SMTP server hostname.
	Port        int           `yaml:"port"`         // SMTP server port (1-65535).
	Username    string        `yaml:"username"`     // Account username; empty disables authentication.
	Password    string        `yaml:"password"`     // Account password; empty disables authentication.
	UseSSL      bool          `yaml:"use_ssl"`      // Implicit TLS on connect (typically port 465).
	UseTLS      bool          `yaml:"use_tls"`      // Plaintext connect upgraded via STARTTLS (typically port 587).
	FromAddress string        `yaml:"from_address"` // Sender, either a bare address or 'Name <addr>'.
	Timeout     time.Duration `yaml:"timeout"`      // Per-command network timeout.
}

type Sending struct {
	RatePerMinute int  `yaml:"rate_per_min"` // Minimum spacing between sends is 60s divided by this.
	BatchSize     int  `yaml:"batch_size"`   // Recipients served per connection before reconnecting.
	MaxRetries    int  `yaml:"max_retries"`  // Additional attempts after a transient send failure.
	DryRun        bool `yaml:"dry_run"`      // Render and record outcomes without any network activity.
}

type Message struct {
	Subject         string   `yaml:"subject"`          // Subject template.
	TextFile        string   `yaml:"text_file"`        // Path to the plain-text body template.
	HTMLFile        string   `yaml:"html_file"`        // Path to the HTML body template.
	ReplyTo         string   `yaml:"reply_to"`         // Optional static Reply-To header.
	ListUnsubscribe string   `yaml:"list_unsubscribe"` // Optional static List-Unsubscribe header.
	Attachments     []string `yaml:"attachments"`      // Paths of files attached to every message.
}

// DefaultTimeout is applied when the smtp.timeout key is absent.
const DefaultTimeout = 30 * time.Second

// Load reads the YAML configuration file, expanding ${VAR} references
// from the process environment. Variables from envFilepath are loaded
// first, if the file exists, so secrets can be kept out of the config.
func Load(cfgFilepath, envFilepath string) (Config, error) {
	var cfg Config

	if _, err := os.Stat(envFilepath); err == nil {
		if err = godotenv.Load(envFilepath); err != nil {
			return cfg, fmt.Errorf("unable to load environment variables from file: %w", err)
		}
	}

	fileBytes, err := os.ReadFile(cfgFilepath)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return cfg, fmt.Errorf("configuration file at this path doesn't exist: %w", err)
		case errors.Is(err, os.ErrPermission):
			return cfg, fmt.Errorf("permission denied for accessing configuration file: %w", err)
		default:
			return cfg, fmt.Errorf("unexpected error during reading configuration file: %w", err)
		}
	}

	envExpanded := os.ExpandEnv(string(fileBytes))
	if err = yaml.Unmarshal([]byte(envExpanded), &cfg); err != nil {
		return cfg, fmt.Errorf("unable to unmarshal configuration file: %w", err)
	}

	if cfg.SMTP.Timeout <= 0 {
		cfg.SMTP.Timeout = DefaultTimeout
	}

	return cfg, nil
}

// Validate checks the configuration before any network activity.
// The returned error is fatal to the whole run.
func (c Config) Validate() error {
	if c.SMTP.Host == "" {
		return errors.New("smtp host must be specified")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("smtp port must be within 1-65535, got %d", c.SMTP.Port)
	}
	if c.SMTP.FromAddress == "" {
		return errors.New("from address must be specified")
	}
	if c.Sending.RatePerMinute < 1 {
		return fmt.Errorf("rate per minute must be at least 1, got %d", c.Sending.RatePerMinute)
	}
	if c.Sending.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.Sending.BatchSize)
	}
	if c.Sending.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.Sending.MaxRetries)
	}
	return nil
}
