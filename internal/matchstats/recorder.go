// Package matchstats hands finished match results to the external stats
// store. Delivery is best effort: failures are logged and counted, never
// retried synchronously, and never block the simulation loop.
package matchstats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
)

// Recorder persists one participant's result.
type Recorder interface {
	Record(ctx context.Context, participantID string, entry state.ResultEntry) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, participantID string, entry state.ResultEntry) error

func (f RecorderFunc) Record(ctx context.Context, participantID string, entry state.ResultEntry) error {
	return f(ctx, participantID, entry)
}

// LogRecorder writes results to an operational logger. It is the default
// when no stats service is configured.
type LogRecorder struct {
	Logger telemetry.Logger
}

func (r LogRecorder) Record(_ context.Context, participantID string, entry state.ResultEntry) error {
	if r.Logger == nil {
		return nil
	}
	r.Logger.Printf("[stats] %s rank=%d winner=%t kills=%d deaths=%d disqualified=%t",
		participantID, entry.Rank, entry.IsWinner, entry.Kills, entry.Deaths, entry.Disqualified)
	return nil
}

// HTTPRecorder posts each entry as JSON to BaseURL + "/players/{id}/results".
type HTTPRecorder struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPRecorder builds a recorder with a bounded request timeout.
func NewHTTPRecorder(baseURL string) *HTTPRecorder {
	return &HTTPRecorder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (r *HTTPRecorder) Record(ctx context.Context, participantID string, entry state.ResultEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("matchstats: encode result: %w", err)
	}
	url := fmt.Sprintf("%s/players/%s/results", r.BaseURL, participantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("matchstats: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("matchstats: post result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("matchstats: stats service returned %s", resp.Status)
	}
	return nil
}
