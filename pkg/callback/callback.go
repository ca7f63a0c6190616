// Package callback delivers final session findings to the external consumer.
// Delivery is at-most-once per session; the engine only latches the sent
// flag after a successful dispatch, so a failed attempt is retried on the
// next qualifying turn.
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/decoynet/lure/pkg/httputil"
	"github.com/decoynet/lure/pkg/session"
)

// Report is the JSON body POSTed to the configured endpoint.
type Report struct {
	SessionID              string               `json:"sessionId"`
	ScamDetected           bool                 `json:"scamDetected"`
	TotalMessagesExchanged int                  `json:"totalMessagesExchanged"`
	ExtractedIntelligence  session.Intelligence `json:"extractedIntelligence"`
	AgentNotes             string               `json:"agentNotes"`
}

// Dispatcher POSTs reports to the callback endpoint. Success is strictly
// HTTP 200; anything else is a failure the caller may retry later.
type Dispatcher struct {
	url    string
	client *http.Client
}

// NewDispatcher creates a dispatcher for the given endpoint. A zero timeout
// uses the shared dispatch-tier client.
func NewDispatcher(url string, timeout time.Duration) *Dispatcher {
	client := httputil.Client(httputil.TierDispatch)
	if timeout > 0 {
		client = httputil.NewClient(timeout)
	}
	return &Dispatcher{url: url, client: client}
}

// Probe checks that something answers at the callback endpoint. Called once
// at startup; any HTTP response counts since the consumer may reject HEAD,
// only transport-level failures are reported.
func (d *Dispatcher) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, d.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := httputil.Client(httputil.TierProbe).Do(req)
	if err != nil {
		return fmt.Errorf("callback endpoint unreachable: %w", err)
	}
	httputil.DrainAndClose(resp.Body)
	return nil
}

// Send delivers one report. Errors are returned for logging and retry
// bookkeeping; they never fail the originating request.
func (d *Dispatcher) Send(ctx context.Context, report Report) error {
	// Delivery id correlates our logs with the consumer's when a report is
	// disputed or replayed.
	deliveryID := uuid.NewString()

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-ID", deliveryID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed (delivery %s): %w", deliveryID, err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		errBody, _ := httputil.ReadErrorBody(resp.Body)
		return fmt.Errorf("callback rejected (delivery %s): status %d: %s",
			deliveryID, resp.StatusCode, errBody)
	}

	log.Printf("callback delivered: session=%s delivery=%s messages=%d",
		report.SessionID, deliveryID, report.TotalMessagesExchanged)
	return nil
}
