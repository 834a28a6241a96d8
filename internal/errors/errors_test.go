package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_HTTPStatus(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{RateLimitExceeded, http.StatusTooManyRequests},
		{CircuitOpen, http.StatusServiceUnavailable},
		{ValidationError, http.StatusUnprocessableEntity},
		{InvalidProvider, http.StatusBadRequest},
		{UpstreamRateLimit, http.StatusBadGateway},
	}
	for _, c := range cases {
		e := New(c.code, "boom")
		if got := e.HTTPStatus(); got != c.want {
			t.Errorf("Code %s: HTTPStatus() = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestWrap_Unwrap(t *testing.T) {
	cause := errors.New("connector timed out")
	e := Wrap(ConnectorUnreachable, "could not reach provider", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if errors.Unwrap(e) != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestAs_CodeOf(t *testing.T) {
	e := New(CircuitOpen, "provider breaker open")
	var wrapped error = e

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("As should extract the classified error")
	}
	if got.Code != CircuitOpen {
		t.Errorf("Code = %s, want %s", got.Code, CircuitOpen)
	}
	if CodeOf(wrapped) != CircuitOpen {
		t.Error("CodeOf should return CircuitOpen")
	}
}

func TestCodeOf_UnclassifiedDefaultsInternal(t *testing.T) {
	if CodeOf(errors.New("some random failure")) != InternalError {
		t.Error("unclassified errors should default to InternalError")
	}
}

func TestIsCode(t *testing.T) {
	e := New(MissingCredentials, "no credentials on file")
	if !IsCode(e, MissingCredentials) {
		t.Error("IsCode should match the same code")
	}
	if IsCode(e, ValidationError) {
		t.Error("IsCode should not match a different code")
	}
}
