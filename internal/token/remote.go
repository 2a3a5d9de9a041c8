package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RemoteVerifier delegates verification to the identity service. It never
// sees the signing secret.
type RemoteVerifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteVerifier returns a verifier calling baseURL + "/verify". A
// timeout is always applied; exceeding it counts as a failed verification.
func NewRemoteVerifier(baseURL string, timeout time.Duration) *RemoteVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type verifyResponse struct {
	Valid bool    `json:"valid"`
	User  *Claims `json:"user"`
}

// Verify makes one POST /verify round-trip. No retries, no caching.
func (c *RemoteVerifier) Verify(ctx context.Context, tok string) (*Claims, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("identity /verify: %w", err)
	}
	req.Header.Set("Authorization", authorizationFor(ctx, tok))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, ErrInvalidToken
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, ErrInvalidToken
	}
	if !out.Valid || out.User == nil {
		return nil, ErrInvalidToken
	}
	return out.User, nil
}
