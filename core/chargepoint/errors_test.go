package chargepoint

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsStartTimeout(t *testing.T) {
	timeout := &CommError{Op: OpStartSession, Timeout: true, Reason: "failed to start in time allotted"}
	if !IsStartTimeout(timeout) {
		t.Fatalf("start timeout not recognized")
	}
	if !IsStartTimeout(fmt.Errorf("charge run: %w", timeout)) {
		t.Fatalf("wrapped start timeout not recognized")
	}
	if IsStartTimeout(&CommError{Op: OpStartSession, Timeout: false, Reason: "500 internal error"}) {
		t.Fatalf("non-timeout start failure misclassified")
	}
	if IsStartTimeout(&CommError{Op: OpGetStatus, Timeout: true}) {
		t.Fatalf("timeout on another op misclassified")
	}
	if IsStartTimeout(errors.New("plain")) {
		t.Fatalf("plain error misclassified")
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(fmt.Errorf("login: %w", &AuthError{Reason: "bad password"})) {
		t.Fatalf("wrapped auth error not recognized")
	}
	if IsAuthError(&CommError{Op: OpLogin}) {
		t.Fatalf("comm error misclassified as auth")
	}
}

func TestCommErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &CommError{Op: OpActivityPage, Err: cause}
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
}
