package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SMTP_PASSWORD", "s3cret")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
smtp:
  host: smtp.gmail.com
  port: 587
  username: sender@gmail.com
  password: ${SMTP_PASSWORD}
  use_tls: true
  from_address: "Sender <sender@gmail.com>"
sending:
  rate_per_min: 10
  batch_size: 100
  max_retries: 3
  dry_run: true
message:
  subject: "Hello {{.first_name}}"
recipients_file: recipients.csv
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))

	cfg, err := Load(cfgPath, filepath.Join(t.TempDir(), "nonexistent.env"))
	require.NoError(t, err)

	assert.Equal(t, "smtp.gmail.com", cfg.SMTP.Host)
	assert.Equal(t, 587, cfg.SMTP.Port)
	assert.Equal(t, "s3cret", cfg.SMTP.Password)
	assert.True(t, cfg.SMTP.UseTLS)
	assert.False(t, cfg.SMTP.UseSSL)
	assert.Equal(t, DefaultTimeout, cfg.SMTP.Timeout)
	assert.Equal(t, 10, cfg.Sending.RatePerMinute)
	assert.Equal(t, 100, cfg.Sending.BatchSize)
	assert.Equal(t, 3, cfg.Sending.MaxRetries)
	assert.True(t, cfg.Sending.DryRun)
	assert.Equal(t, "recipients.csv", cfg.RecipientsFile)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{
		SMTP: SMTP{
			Host:        "smtp.example.com",
			Port:        587,
			FromAddress: "sender@example.com",
			Timeout:     30 * time.Second,
		},
		Sending: Sending{
			RatePerMinute: 60,
			BatchSize:     100,
			MaxRetries:    3,
		},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.SMTP.Host = "" }},
		{"port zero", func(c *Config) { c.SMTP.Port = 0 }},
		{"port too large", func(c *Config) { c.SMTP.Port = 65536 }},
		{"empty from address", func(c *Config) { c.SMTP.FromAddress = "" }},
		{"rate zero", func(c *Config) { c.Sending.RatePerMinute = 0 }},
		{"batch size zero", func(c *Config) { c.Sending.BatchSize = 0 }},
		{"negative retries", func(c *Config) { c.Sending.MaxRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
