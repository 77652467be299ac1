package mailer

import "fmt"

// ConnectError reports a failure during session open or authentication.
// It dooms the current batch, not the whole run.
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a failed send attempt. Code holds the SMTP status
// code of a protocol rejection, or 0 for network-level failures such as
// timeouts and resets.
type SendError struct {
	Code int
	Err  error
}

func (e *SendError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("send rejected with status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Permanent reports whether the failure is a 5xx-class rejection,
// which must never be retried.
func (e *SendError) Permanent() bool {
	return e.Code >= 500 && e.Code < 600
}
