package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MarineIntel/internal/config"
	"MarineIntel/internal/ports"
)

// Notifier pushes published reports to the downstream index service. The
// pipeline treats it as fire-and-forget: failure means a local fallback
// copy, never a retry.
type Notifier struct {
	endpoint string
	origin   string
	topics   []string
	client   *http.Client
}

var _ ports.IndexNotifier = (*Notifier)(nil)

// NewNotifier builds an index notifier from configuration.
func NewNotifier(cfg config.IndexConfig) *Notifier {
	return &Notifier{
		endpoint: cfg.Endpoint,
		origin:   cfg.Origin,
		topics:   cfg.Topics,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Notify posts the report content keyed by its label.
func (n *Notifier) Notify(ctx context.Context, label, content string) error {
	if n.endpoint == "" {
		return fmt.Errorf("index notifier misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"content":  content,
		"filename": label + ".md",
		"origin":   n.origin,
		"topics":   n.topics,
	})
	if err != nil {
		return fmt.Errorf("marshal index payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("index error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
