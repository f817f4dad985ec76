// Package forward issues the upstream HTTP call for every non-handshake
// message and decodes the reply. It passes result and error payloads
// through verbatim; business semantics of the wrapped methods are the
// upstream's concern.
package forward

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trinobridge/internal/shared/jsonrpc"
	"trinobridge/internal/shared/logging"
)

// Forwarder posts JSON-RPC envelopes to a single configured upstream URL
type Forwarder struct {
	client      *http.Client
	upstreamURL string
	logger      *logging.Logger
}

// NewForwarder creates a forwarder for the given upstream endpoint.
// The timeout bounds each round trip; zero disables the bound.
func NewForwarder(upstreamURL string, timeout time.Duration) *Forwarder {
	return &Forwarder{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		upstreamURL: upstreamURL,
		logger:      logging.NewLogger("forwarder"),
	}
}

// Forward posts one message upstream and returns the decoded reply.
//
// A nil message with a nil error means the upstream returned an empty
// body, which happens for forwarded notifications; nothing is written
// back in that case. Network failures and undecodable bodies are
// returned as errors for the caller to map onto the wire.
func (f *Forwarder) Forward(ctx context.Context, msg *jsonrpc.Message) (*jsonrpc.Message, error) {
	body, err := jsonrpc.Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.upstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	f.logger.Debug("Forwarding request", "method", msg.Method, "id", string(msg.ID))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		f.logger.Debug("Upstream returned empty body", "method", msg.Method)
		return nil, nil
	}

	reply, err := jsonrpc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON from upstream (status %d): %w", resp.StatusCode, err)
	}

	f.logger.Debug("Response received", "id", string(reply.ID), "size", len(data))
	return reply, nil
}

// Probe checks upstream liveness via the gateway health endpoint.
// The endpoint is derived by replacing the upstream URL path with /health.
func (f *Forwarder) Probe(ctx context.Context) error {
	u, err := url.Parse(f.upstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream health check returned status %d", resp.StatusCode)
	}
	return nil
}
