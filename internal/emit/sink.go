package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/gustycube/pingscope/internal/httpclient"
)

// Sink delivers one batch. Publish must be safe to retry.
type Sink interface {
	Name() string
	Publish(ctx context.Context, b Batch) error
}

// HTTPSink POSTs batches as JSON to an ingest endpoint.
type HTTPSink struct {
	url    string
	client *http.Client
}

// TLSFiles names optional client certificate, key and CA bundle files.
type TLSFiles = httpclient.TLSFiles

func NewHTTPSink(url string, files TLSFiles) (*HTTPSink, error) {
	tlsCfg, err := httpclient.TLSConfig(files)
	if err != nil {
		return nil, err
	}
	return &HTTPSink{url: url, client: httpclient.New(tlsCfg)}, nil
}

func (s *HTTPSink) Name() string { return "ingest" }

func (s *HTTPSink) Publish(ctx context.Context, b Batch) error {
	body, err := json.Marshal(b)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err := httpclient.CheckStatus(resp); err != nil {
		if !httpclient.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}

// StdoutSink writes each event of a batch as one JSON line.
type StdoutSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStdoutSink(w io.Writer) *StdoutSink {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutSink{w: w}
}

func (s *StdoutSink) Name() string { return "stdout" }

func (s *StdoutSink) Publish(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.w)
	for _, e := range b.Events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
