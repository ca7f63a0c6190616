package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/decoynet/lure/pkg/agent"
	"github.com/decoynet/lure/pkg/callback"
	"github.com/decoynet/lure/pkg/detect"
	"github.com/decoynet/lure/pkg/session"
)

// scamText trips the classifier (bank fraud plus urgency) but contains no
// actionable IOC, so the callback can only trigger on message volume.
const scamText = "your bank account will be blocked immediately"

// scamTextWithPhone adds a phone number, the cheapest actionable IOC.
const scamTextWithPhone = "your bank account will be blocked immediately, call 9876543210"

const benignText = "are we still meeting for lunch tomorrow"

type fakeProducer struct {
	reply string
	err   error
	calls int
}

func (f *fakeProducer) Generate(_ context.Context, _ []session.Message, _ []string, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeDispatcher struct {
	reports  []callback.Report
	failNext int // fail this many sends before succeeding
}

func (f *fakeDispatcher) Send(_ context.Context, r callback.Report) error {
	if f.failNext > 0 {
		f.failNext--
		return errors.New("endpoint unavailable")
	}
	f.reports = append(f.reports, r)
	return nil
}

func newTestEngine(t *testing.T, producer agent.Producer, dispatcher ReportSender) (*Engine, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(store.Close)
	return New(store, detect.NewClassifier(), producer, dispatcher), store
}

func sendTurn(t *testing.T, e *Engine, sessionID, text string) *Response {
	t.Helper()
	resp, err := e.HandleMessage(context.Background(), Request{
		SessionID: sessionID,
		Message:   InboundMessage{Sender: "scammer", Text: text, Timestamp: 1000},
	})
	if err != nil {
		t.Fatalf("HandleMessage(%q): %v", text, err)
	}
	return resp
}

func TestHandleMessageSuccessEnvelope(t *testing.T) {
	e, _ := newTestEngine(t, &fakeProducer{reply: "Oh dear, can you explain what that means please?"}, &fakeDispatcher{})

	resp := sendTurn(t, e, "s1", scamText)

	if resp.Status != "success" {
		t.Errorf("status = %q, want success", resp.Status)
	}
	if resp.SessionID != "s1" {
		t.Errorf("sessionId = %q", resp.SessionID)
	}
	if resp.Message.Sender != session.SenderAgent {
		t.Errorf("reply sender = %q, want agent", resp.Message.Sender)
	}
	if resp.Message.Text == "" {
		t.Error("empty reply text")
	}
}

func TestHandleMessageValidation(t *testing.T) {
	e, _ := newTestEngine(t, &fakeProducer{}, &fakeDispatcher{})

	testCases := []struct {
		name string
		req  Request
	}{
		{"empty session id", Request{Message: InboundMessage{Sender: "scammer", Text: "hi"}}},
		{"blank session id", Request{SessionID: "  ", Message: InboundMessage{Sender: "scammer", Text: "hi"}}},
		{"empty text", Request{SessionID: "s1", Message: InboundMessage{Sender: "scammer"}}},
		{"blank text", Request{SessionID: "s1", Message: InboundMessage{Sender: "scammer", Text: "   "}}},
		{"bad sender", Request{SessionID: "s1", Message: InboundMessage{Sender: "operator", Text: "hi"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.HandleMessage(context.Background(), tc.req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestHandleMessageCounterTracksHistory(t *testing.T) {
	e, store := newTestEngine(t, &fakeProducer{reply: "Oh my, that sounds worrying, what do I do?"}, &fakeDispatcher{})

	for i := 0; i < 4; i++ {
		sendTurn(t, e, "s1", scamText)

		sess, _ := store.Get(context.Background(), "s1")
		if sess.TotalMessagesExchanged != len(sess.ConversationHistory) {
			t.Fatalf("counter %d != history length %d",
				sess.TotalMessagesExchanged, len(sess.ConversationHistory))
		}
		// Each turn appends the inbound message and the reply.
		if want := (i + 1) * 2; sess.TotalMessagesExchanged != want {
			t.Fatalf("counter = %d after turn %d, want %d", sess.TotalMessagesExchanged, i+1, want)
		}
	}
}

func TestEarlyTurnsBypassProducer(t *testing.T) {
	producer := &fakeProducer{reply: "Hmm, I really do not follow any of this."}
	e, _ := newTestEngine(t, producer, &fakeDispatcher{})

	// First two turns: canned early-naive replies, the producer stays idle.
	sendTurn(t, e, "s1", scamText)
	sendTurn(t, e, "s1", scamText)
	if producer.calls != 0 {
		t.Fatalf("producer called %d times during early turns", producer.calls)
	}

	// Third turn goes through the producer.
	resp := sendTurn(t, e, "s1", scamText)
	if producer.calls != 1 {
		t.Errorf("producer calls = %d after third turn, want 1", producer.calls)
	}
	if resp.Message.Text != producer.reply {
		t.Errorf("reply = %q, want producer output", resp.Message.Text)
	}
}

func TestProducerFailureFallsBack(t *testing.T) {
	producer := &fakeProducer{err: errors.New("provider down")}
	e, _ := newTestEngine(t, producer, &fakeDispatcher{})

	sendTurn(t, e, "s1", scamText)
	sendTurn(t, e, "s1", scamText)
	resp := sendTurn(t, e, "s1", scamText)

	if resp.Status != "success" {
		t.Errorf("status = %q, producer failure must not fail the request", resp.Status)
	}
	if resp.Message.Text == "" {
		t.Error("empty fallback reply")
	}
}

func TestScamDetectionLatchesAndFreezes(t *testing.T) {
	e, store := newTestEngine(t, &fakeProducer{reply: "Goodness, should I call my bank about this?"}, &fakeDispatcher{})
	ctx := context.Background()

	sendTurn(t, e, "s1", scamText)

	sess, _ := store.Get(ctx, "s1")
	if !sess.ScamDetected {
		t.Fatal("scam not detected")
	}
	wantCategories := fmt.Sprintf("%v", sess.ScamCategories)
	if sess.Persona != "confused_elderly" {
		t.Errorf("persona = %q, want confused_elderly for bank fraud", sess.Persona)
	}

	// A later message from a different scam family must not re-classify:
	// categories and persona are frozen at first detection.
	sendTurn(t, e, "s1", "congratulations you won a lottery prize, claim your reward immediately")

	sess, _ = store.Get(ctx, "s1")
	if got := fmt.Sprintf("%v", sess.ScamCategories); got != wantCategories {
		t.Errorf("categories changed after latch: %v, want %v", got, wantCategories)
	}
	if sess.Persona != "confused_elderly" {
		t.Errorf("persona changed after latch: %q", sess.Persona)
	}
}

func TestBenignSessionNeverDispatches(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	e, store := newTestEngine(t, &fakeProducer{reply: "Sure, noon works for me, see you there then."}, dispatcher)

	for i := 0; i < 6; i++ {
		sendTurn(t, e, "s1", benignText)
	}

	sess, _ := store.Get(context.Background(), "s1")
	if sess.ScamDetected {
		t.Fatal("benign conversation classified as scam")
	}
	if sess.TotalMessagesExchanged < callbackTurnThreshold {
		t.Fatalf("test needs %d+ messages, got %d", callbackTurnThreshold, sess.TotalMessagesExchanged)
	}
	if len(dispatcher.reports) != 0 {
		t.Error("callback dispatched for a session never confirmed as scam")
	}
}

func TestCallbackTriggersOnActionableIOC(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	e, store := newTestEngine(t, &fakeProducer{reply: "Which number should I call, this one here?"}, dispatcher)

	sendTurn(t, e, "s1", scamTextWithPhone)

	if len(dispatcher.reports) != 1 {
		t.Fatalf("dispatched %d reports, want 1 on first actionable IOC", len(dispatcher.reports))
	}
	report := dispatcher.reports[0]
	if report.SessionID != "s1" || !report.ScamDetected {
		t.Errorf("report = %+v", report)
	}
	if len(report.ExtractedIntelligence.PhoneNumbers) != 1 {
		t.Errorf("report phones = %v", report.ExtractedIntelligence.PhoneNumbers)
	}

	sess, _ := store.Get(context.Background(), "s1")
	if !sess.CallbackSent {
		t.Error("callback sent flag not latched")
	}
}

func TestCallbackTriggersOnMessageVolume(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	e, _ := newTestEngine(t, &fakeProducer{reply: "I am still quite confused, could you go over it again?"}, dispatcher)

	// No actionable IOC anywhere; four turns reach eight messages.
	for i := 0; i < 3; i++ {
		sendTurn(t, e, "s1", scamText)
		if len(dispatcher.reports) != 0 {
			t.Fatalf("dispatched after %d messages, before the volume threshold", (i+1)*2)
		}
	}
	sendTurn(t, e, "s1", scamText)

	if len(dispatcher.reports) != 1 {
		t.Fatalf("dispatched %d reports, want 1 at %d messages", len(dispatcher.reports), callbackTurnThreshold)
	}
	report := dispatcher.reports[0]
	if report.TotalMessagesExchanged != callbackTurnThreshold {
		t.Errorf("report messages = %d, want %d", report.TotalMessagesExchanged, callbackTurnThreshold)
	}
	if report.ExtractedIntelligence.HasActionable() {
		t.Errorf("volume-triggered report unexpectedly actionable: %+v", report.ExtractedIntelligence)
	}
}

func TestCallbackAtMostOnce(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	e, _ := newTestEngine(t, &fakeProducer{reply: "Alright, I wrote that number down somewhere safe."}, dispatcher)

	// Every turn carries an actionable IOC; only the first may dispatch.
	for i := 0; i < 5; i++ {
		sendTurn(t, e, "s1", scamTextWithPhone)
	}

	if len(dispatcher.reports) != 1 {
		t.Errorf("dispatched %d reports, want exactly 1", len(dispatcher.reports))
	}
}

func TestCallbackRetriesAfterFailedDispatch(t *testing.T) {
	dispatcher := &fakeDispatcher{failNext: 1}
	e, store := newTestEngine(t, &fakeProducer{reply: "Let me find my reading glasses and try again."}, dispatcher)
	ctx := context.Background()

	// First qualifying turn: dispatch fails, the sent flag must stay down.
	resp := sendTurn(t, e, "s1", scamTextWithPhone)
	if resp.Status != "success" {
		t.Fatalf("dispatch failure leaked into the response: %q", resp.Status)
	}
	sess, _ := store.Get(ctx, "s1")
	if sess.CallbackSent {
		t.Fatal("sent flag latched on a failed dispatch")
	}

	// Next qualifying turn retries and succeeds.
	sendTurn(t, e, "s1", scamTextWithPhone)
	sess, _ = store.Get(ctx, "s1")
	if !sess.CallbackSent {
		t.Fatal("callback not retried after failure")
	}
	if len(dispatcher.reports) != 1 {
		t.Fatalf("delivered %d reports, want 1", len(dispatcher.reports))
	}

	// And never again after success.
	sendTurn(t, e, "s1", scamTextWithPhone)
	if len(dispatcher.reports) != 1 {
		t.Errorf("delivered %d reports after latch, want 1", len(dispatcher.reports))
	}
}

func TestIntelligenceAccumulatesAcrossTurns(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	e, store := newTestEngine(t, &fakeProducer{reply: "Should I send it to that address you mentioned?"}, dispatcher)
	ctx := context.Background()

	sendTurn(t, e, "s1", scamTextWithPhone)
	sess, _ := store.Get(ctx, "s1")
	if len(sess.ExtractedIntelligence.PhoneNumbers) != 1 {
		t.Fatalf("phones = %v", sess.ExtractedIntelligence.PhoneNumbers)
	}

	sendTurn(t, e, "s1", "pay the fee to scammer@ybl right away")
	sess, _ = store.Get(ctx, "s1")
	if len(sess.ExtractedIntelligence.PhoneNumbers) != 1 {
		t.Errorf("earlier phone lost: %v", sess.ExtractedIntelligence.PhoneNumbers)
	}
	if len(sess.ExtractedIntelligence.UPIIDs) != 1 {
		t.Errorf("upi ids = %v", sess.ExtractedIntelligence.UPIIDs)
	}
}

func TestHandleMessageConcurrentSameSession(t *testing.T) {
	e, store := newTestEngine(t, &fakeProducer{reply: "One moment please, there is a lot going on here."}, &fakeDispatcher{})

	// Concurrent turns for one session id must serialize: every inbound
	// message and every reply lands in the history exactly once, and the
	// counter never drifts from the history length.
	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.HandleMessage(context.Background(), Request{
				SessionID: "contended",
				Message:   InboundMessage{Sender: "scammer", Text: scamText, Timestamp: 1000},
			})
			if err != nil {
				t.Errorf("HandleMessage: %v", err)
			}
		}()
	}
	wg.Wait()

	sess, _ := store.Get(context.Background(), "contended")
	if sess.TotalMessagesExchanged != len(sess.ConversationHistory) {
		t.Errorf("counter %d != history length %d",
			sess.TotalMessagesExchanged, len(sess.ConversationHistory))
	}
	if want := workers * 2; sess.TotalMessagesExchanged != want {
		t.Errorf("counter = %d, want %d", sess.TotalMessagesExchanged, want)
	}
	agentTurns := 0
	for _, m := range sess.ConversationHistory {
		if m.Sender == session.SenderAgent {
			agentTurns++
		}
	}
	if agentTurns != workers {
		t.Errorf("agent replies = %d, want %d", agentTurns, workers)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	e, store := newTestEngine(t, &fakeProducer{reply: "I see, thanks for letting me know about that."}, dispatcher)
	ctx := context.Background()

	sendTurn(t, e, "scam-session", scamText)
	sendTurn(t, e, "benign-session", benignText)

	scam, _ := store.Get(ctx, "scam-session")
	benign, _ := store.Get(ctx, "benign-session")
	if !scam.ScamDetected {
		t.Error("scam session not flagged")
	}
	if benign.ScamDetected {
		t.Error("benign session flagged by a different session's detection")
	}
	if benign.TotalMessagesExchanged != 2 {
		t.Errorf("benign counter = %d, want 2", benign.TotalMessagesExchanged)
	}
}
