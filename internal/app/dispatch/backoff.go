package dispatch

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/mboxwell/bulkmailer/internal/app/mailer"
)

const (
	backoffBase           = 1.5
	backoffCapSeconds     = 60.0
	backoffJitterFraction = 0.2
)

// backoffDelay computes the pre-jitter exponential wait in seconds for
// the given attempt (1-based). The sequence is non-decreasing and
// bounded by backoffCapSeconds.
func backoffDelay(attempt int) float64 {
	return math.Min(backoffCapSeconds, math.Pow(backoffBase, float64(attempt-1)))
}

// jitteredBackoff applies ±20% symmetric jitter from the provided
// uniform source and floors the result at zero. The source is injected
// so backoff timing is reproducible under a fixed seed.
func jitteredBackoff(attempt int, rng *rand.Rand) time.Duration {
	wait := backoffDelay(attempt)
	wait += backoffJitterFraction * wait * (2*rng.Float64() - 1)
	wait = math.Max(0, wait)
	return time.Duration(wait * float64(time.Second))
}

// classifySendError splits send failures into transient and permanent.
// Only 5xx-class protocol rejections are permanent; 4xx rejections and
// failures with no status code (timeouts, resets) are transient.
func classifySendError(err error) (code int, permanent bool) {
	var sendErr *mailer.SendError
	if errors.As(err, &sendErr) {
		return sendErr.Code, sendErr.Permanent()
	}
	return 0, false
}
