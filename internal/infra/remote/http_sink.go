package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"study-session-service/internal/domain"
)

const maxAckBody = 1 << 16

// HTTPSink posts each report as JSON to a single endpoint. The endpoint
// acknowledges with a body like {"ok": true}.
type HTTPSink struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSink(endpoint string, timeout time.Duration) *HTTPSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type ack struct {
	OK any `json:"ok"`
}

func (s *HTTPSink) Send(ctx context.Context, report domain.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer resp.Body.Close()

	var a ack
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAckBody)).Decode(&a); err != nil {
		return fmt.Errorf("decode acknowledgment (status %d): %w", resp.StatusCode, err)
	}
	if !truthy(a.OK) {
		return domain.ErrNotAcknowledged
	}
	return nil
}

// truthy follows loose JSON truthiness: false, 0, "", null and a missing
// field all count as no acknowledgment.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
