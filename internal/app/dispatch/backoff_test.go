package dispatch

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mboxwell/bulkmailer/internal/app/mailer"
)

func TestBackoffDelayNonDecreasingAndCapped(t *testing.T) {
	prev := 0.0
	for attempt := 1; attempt <= 100; attempt++ {
		wait := backoffDelay(attempt)
		assert.GreaterOrEqual(t, wait, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, wait, backoffCapSeconds, "attempt %d", attempt)
		prev = wait
	}

	assert.Equal(t, 1.0, backoffDelay(1))
	assert.Equal(t, 1.5, backoffDelay(2))
	assert.Equal(t, backoffCapSeconds, backoffDelay(50))
}

func TestJitteredBackoffStaysWithinBand(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for attempt := 1; attempt <= 20; attempt++ {
		base := backoffDelay(attempt)
		lo := time.Duration((1 - backoffJitterFraction) * base * float64(time.Second))
		hi := time.Duration((1 + backoffJitterFraction) * base * float64(time.Second))

		for i := 0; i < 50; i++ {
			got := jitteredBackoff(attempt, rng)
			assert.GreaterOrEqual(t, got, lo)
			assert.LessOrEqual(t, got, hi)
		}
	}
}

func TestJitteredBackoffReproducibleWithSeed(t *testing.T) {
	first := jitteredBackoff(3, rand.New(rand.NewSource(7)))
	second := jitteredBackoff(3, rand.New(rand.NewSource(7)))
	assert.Equal(t, first, second)
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      int
		wantPermanent bool
	}{
		{"4xx rejection is transient", &mailer.SendError{Code: 421, Err: errors.New("try later")}, 421, false},
		{"rate limited is transient", &mailer.SendError{Code: 450, Err: errors.New("slow down")}, 450, false},
		{"5xx rejection is permanent", &mailer.SendError{Code: 550, Err: errors.New("no such user")}, 550, true},
		{"no status code is transient", &mailer.SendError{Err: errors.New("connection reset")}, 0, false},
		{"plain error is transient", errors.New("i/o timeout"), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, permanent := classifySendError(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantPermanent, permanent)
		})
	}
}
