package chargepoint

import (
	"errors"
	"fmt"
)

// Operation names used in CommError.Op.
const (
	OpLogin        = "login"
	OpListChargers = "list_chargers"
	OpGetStatus    = "get_status"
	OpStartSession = "start_session"
	OpActivityPage = "activity_page"
	OpSessionData  = "session_activity"
)

// ConfigError reports a missing account setting. It is fatal: nothing can be
// retried until the configuration is fixed.
type ConfigError struct {
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Field)
}

// AuthError reports rejected credentials. Fatal, never retried.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication rejected"
	}
	return fmt.Sprintf("authentication rejected: %s", e.Reason)
}

// CommError reports a failed exchange with the vendor API. Timeout marks the
// ambiguous case where the command was delivered but its confirmation never
// arrived, so the requested action may still have taken effect. All other
// communication failures are fatal to the calling operation.
type CommError struct {
	Op      string
	Timeout bool
	Reason  string
	Err     error
}

func (e *CommError) Error() string {
	msg := fmt.Sprintf("chargepoint %s failed", e.Op)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CommError) Unwrap() error {
	return e.Err
}

// IsStartTimeout reports whether err is the ambiguous start-session timeout:
// the vendor accepted the command but charging did not confirm within the
// allotted time, so the session may have started anyway. The charge
// controller re-polls and retries on this class; every other communication
// error propagates as fatal.
func IsStartTimeout(err error) bool {
	var ce *CommError
	return errors.As(err, &ce) && ce.Op == OpStartSession && ce.Timeout
}

// IsAuthError reports whether err is (or wraps) a credential rejection.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
