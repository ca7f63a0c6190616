package callback

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/decoynet/lure/pkg/session"
)

func testReport() Report {
	return Report{
		SessionID:              "sess-1",
		ScamDetected:           true,
		TotalMessagesExchanged: 8,
		ExtractedIntelligence: session.Intelligence{
			UPIIDs:             []string{"scammer@ybl"},
			PhoneNumbers:       []string{"9876543210"},
			SuspiciousKeywords: []string{"urgent"},
		},
		AgentNotes: "Scam detected. Categories: upi_fraud. Confidence: 0.45.",
	}
}

func TestSend(t *testing.T) {
	var gotBody []byte
	var gotContentType, gotDeliveryID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		gotDeliveryID = r.Header.Get("X-Delivery-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, 2*time.Second)
	if err := d.Send(context.Background(), testReport()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotDeliveryID == "" {
		t.Error("missing X-Delivery-ID header")
	}

	var decoded Report
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode posted body: %v", err)
	}
	if decoded.SessionID != "sess-1" || !decoded.ScamDetected || decoded.TotalMessagesExchanged != 8 {
		t.Errorf("posted report = %+v", decoded)
	}
	if len(decoded.ExtractedIntelligence.UPIIDs) != 1 {
		t.Errorf("intelligence not round-tripped: %+v", decoded.ExtractedIntelligence)
	}
}

func TestSendPayloadFieldNames(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, 2*time.Second)
	if err := d.Send(context.Background(), testReport()); err != nil {
		t.Fatal(err)
	}

	for _, field := range []string{
		"sessionId", "scamDetected", "totalMessagesExchanged",
		"extractedIntelligence", "agentNotes",
	} {
		if _, ok := raw[field]; !ok {
			t.Errorf("payload missing field %q; got keys %v", field, keys(raw))
		}
	}
}

func keys(m map[string]json.RawMessage) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestProbe(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		// Consumers that reject HEAD still count as reachable.
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	d := NewDispatcher(srv.URL, 0)
	if err := d.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if gotMethod != http.MethodHead {
		t.Errorf("probe method = %q, want HEAD", gotMethod)
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	d := NewDispatcher(srv.URL, 0)
	if err := d.Probe(context.Background()); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}

func TestSendNon200IsError(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusAccepted, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		d := NewDispatcher(srv.URL, 2*time.Second)
		if err := d.Send(context.Background(), testReport()); err == nil {
			t.Errorf("status %d: expected error, success is strictly 200", status)
		}
		srv.Close()
	}
}

func TestSendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	d := NewDispatcher(srv.URL, time.Second)
	if err := d.Send(context.Background(), testReport()); err == nil {
		t.Error("expected error for unreachable endpoint")
	}
}

func TestSendContextCancelled(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d := NewDispatcher(srv.URL, 10*time.Second)
	if err := d.Send(ctx, testReport()); err == nil {
		t.Error("expected error when context deadline expires")
	}
}
