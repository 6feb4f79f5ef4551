package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		code      int
		wantErr   bool
		retryable bool
	}{
		{http.StatusOK, false, false},
		{http.StatusAccepted, false, false},
		{http.StatusBadRequest, true, false},
		{http.StatusUnprocessableEntity, true, false},
		{http.StatusTooManyRequests, true, true},
		{http.StatusInternalServerError, true, true},
		{http.StatusServiceUnavailable, true, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			err := CheckStatus(&http.Response{StatusCode: tt.code, Status: http.StatusText(tt.code)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckStatus(%d) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			if got := Retryable(err); got != tt.retryable {
				t.Errorf("Retryable(%d) = %v, want %v", tt.code, got, tt.retryable)
			}
			if got := StatusCode(fmt.Errorf("wrapped: %w", err)); got != tt.code {
				t.Errorf("StatusCode = %d, want %d", got, tt.code)
			}
		})
	}
}

func TestRetryable_TransportError(t *testing.T) {
	if !Retryable(errors.New("connection refused")) {
		t.Error("transport errors should be retryable")
	}
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
	if StatusCode(errors.New("x")) != 0 {
		t.Error("expected 0 status for plain error")
	}
}

func TestTLSConfig(t *testing.T) {
	cfg, err := TLSConfig(TLSFiles{})
	if err != nil {
		t.Fatalf("empty files: %v", err)
	}
	if len(cfg.Certificates) != 0 || cfg.RootCAs != nil {
		t.Error("expected no certificates without files")
	}

	if _, err := TLSConfig(TLSFiles{CA: filepath.Join(t.TempDir(), "missing.pem")}); err == nil {
		t.Error("expected error for missing CA bundle")
	}

	bad := filepath.Join(t.TempDir(), "bad.pem")
	if err := os.WriteFile(bad, []byte("not a certificate"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := TLSConfig(TLSFiles{CA: bad}); err == nil {
		t.Error("expected error for CA bundle without certificates")
	}
}

func TestNew(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	resp, err := New(nil).Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if err := CheckStatus(resp); err != nil {
		t.Errorf("unexpected status error: %v", err)
	}
}
