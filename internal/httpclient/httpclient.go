// Package httpclient builds the HTTP client used to talk to ingest endpoints.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLSFiles names optional client certificate, key and CA bundle files.
type TLSFiles struct {
	Cert, Key, CA string
}

// TLSConfig loads the files into a client TLS config. Empty names are skipped.
func TLSConfig(files TLSFiles) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if files.Cert != "" && files.Key != "" {
		cert, err := tls.LoadX509KeyPair(files.Cert, files.Key)
		if err != nil {
			return nil, fmt.Errorf("load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	if files.CA != "" {
		pem, err := os.ReadFile(files.CA)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates in %s", files.CA)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

// New returns a client with bounded connection pools and timeouts.
func New(tlsCfg *tls.Config) *http.Client {
	tr := &http.Transport{
		TLSClientConfig:       tlsCfg,
		MaxIdleConns:          64,
		MaxConnsPerHost:       16,
		MaxIdleConnsPerHost:   8,
		ResponseHeaderTimeout: 10 * time.Second,
		IdleConnTimeout:       30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   20 * time.Second,
	}
}

// HTTPError represents a non-2xx response.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return "bad status: " + e.Status
}

// CheckStatus returns an *HTTPError unless resp is 2xx.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
}

// Retryable reports whether err is worth retrying: transport errors, 429
// and 5xx are; other client errors are not.
func Retryable(err error) bool {
	var he *HTTPError
	if !errors.As(err, &he) {
		return err != nil
	}
	return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
}

// StatusCode returns the status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
