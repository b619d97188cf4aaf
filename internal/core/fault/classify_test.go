package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		status    int
		expect    ErrorType
		retryable bool
	}{
		{429, TypeRateLimit, true},
		{401, TypeAuth, false},
		{403, TypeAuth, false},
		{400, TypeValidation, false},
		{422, TypeValidation, false},
		{408, TypeTimeout, true},
		{502, TypeServiceUnavailable, true},
		{503, TypeServiceUnavailable, true},
		{504, TypeServiceUnavailable, true},
		{500, TypeUnknown, true},
		{418, TypeUnknown, true},
	}

	for _, tt := range tests {
		se := Classify(&HTTPError{StatusCode: tt.status}, "svc")
		if se.Type != tt.expect {
			t.Errorf("status %d: type = %s, want %s", tt.status, se.Type, tt.expect)
		}
		if se.Retryable != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, se.Retryable, tt.retryable)
		}
		if se.StatusCode != tt.status {
			t.Errorf("status %d: status code not preserved, got %d", tt.status, se.StatusCode)
		}
	}
}

func TestClassifyRetryAfterPreserved(t *testing.T) {
	he := &HTTPError{StatusCode: 429, RetryAfter: 3 * time.Second}
	se := Classify(he, "payments")
	if se.Type != TypeRateLimit {
		t.Fatalf("type = %s, want %s", se.Type, TypeRateLimit)
	}
	if se.RetryAfter != 3*time.Second {
		t.Errorf("retry-after = %v, want 3s", se.RetryAfter)
	}
	if se.Service != "payments" {
		t.Errorf("service = %q, want payments", se.Service)
	}
}

func TestClassifyNetworkErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect ErrorType
	}{
		{"deadline", context.DeadlineExceeded, TypeTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), TypeTimeout},
		{"op error", &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ECONNREFUSED}}, TypeNetwork},
		{"dns", &net.DNSError{Err: "no such host", Name: "svc.local"}, TypeNetwork},
		{"eof", io.EOF, TypeNetwork},
		{"unexpected eof", io.ErrUnexpectedEOF, TypeNetwork},
		{"plain", errors.New("boom"), TypeUnknown},
	}

	for _, tt := range tests {
		se := Classify(tt.err, "svc")
		if se.Type != tt.expect {
			t.Errorf("%s: type = %s, want %s", tt.name, se.Type, tt.expect)
		}
		if !se.Retryable {
			t.Errorf("%s: expected retryable", tt.name)
		}
	}
}

func TestClassifyPassthrough(t *testing.T) {
	orig := &ServiceError{Type: TypeAuth, Service: "", Retryable: false}
	wrapped := fmt.Errorf("stage call: %w", orig)

	se := Classify(wrapped, "billing")
	if se != orig {
		t.Fatal("expected the original ServiceError back")
	}
	if se.Service != "billing" {
		t.Errorf("service = %q, want billing stamped", se.Service)
	}

	// A second pass through a different service must not reclassify.
	se2 := Classify(se, "other")
	if se2.Service != "billing" {
		t.Errorf("service rewritten to %q", se2.Service)
	}
}

func TestWorkflowErrorUnwrap(t *testing.T) {
	se := Classify(&HTTPError{StatusCode: 503}, "inventory")
	we := &WorkflowError{Stage: "enrich", Service: "inventory", Err: se}

	var target *ServiceError
	if !errors.As(we, &target) {
		t.Fatal("errors.As failed to reach ServiceError")
	}
	if target.Type != TypeServiceUnavailable {
		t.Errorf("type = %s, want %s", target.Type, TypeServiceUnavailable)
	}

	var he *HTTPError
	if !errors.As(we, &he) {
		t.Fatal("errors.As failed to reach HTTPError")
	}
	if he.StatusCode != 503 {
		t.Errorf("status = %d, want 503", he.StatusCode)
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryable(&ServiceError{Type: TypeAuth}) {
		t.Error("auth error should not be retryable")
	}
	if !IsRetryable(errors.New("anything else")) {
		t.Error("unknown errors should be retryable")
	}
}
