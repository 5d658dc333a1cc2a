package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPClassifier calls a model server over HTTP.
// It POSTs {"shape":[1,S,F],"data":[...]} and expects {"output":[...]}.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

// NewHTTPClassifier returns a classifier for url. A zero timeout means 2s.
func NewHTTPClassifier(url string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPClassifier{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type httpRequest struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Classify posts one window.
func (c *HTTPClassifier) Classify(ctx context.Context, input Tensor) ([]float64, error) {
	body, err := json.Marshal(httpRequest{Shape: input.Shape(), Data: input.Data})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return decodeOutput(data)
}

// Close releases idle connections.
func (c *HTTPClassifier) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
