// Package engine is the session orchestrator: the per-conversation state
// machine that sequences scam detection, persona assignment, reply
// generation, intelligence accumulation, and callback dispatch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/decoynet/lure/pkg/agent"
	"github.com/decoynet/lure/pkg/callback"
	"github.com/decoynet/lure/pkg/detect"
	"github.com/decoynet/lure/pkg/persona"
	"github.com/decoynet/lure/pkg/session"
)

// ErrInvalidRequest marks validation failures the transport layer maps to a
// client error. Everything past validation produces a success response.
var ErrInvalidRequest = errors.New("invalid request")

// callbackTurnThreshold triggers the callback by message volume alone: once
// a confirmed-scam session reaches this many exchanged messages, findings go
// out even with no actionable IOC yet.
const callbackTurnThreshold = 8

// ReportSender is the callback boundary consumed by the engine.
type ReportSender interface {
	Send(ctx context.Context, report callback.Report) error
}

// Request is one inbound message for a session.
type Request struct {
	SessionID string         `json:"sessionId"`
	Message   InboundMessage `json:"message"`
}

// InboundMessage mirrors the wire shape of an incoming message.
type InboundMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Response is the engine's answer: always a success envelope carrying the
// agent's reply. Detection, extraction and callback outcomes are side
// channels, never surfaced to the message sender.
type Response struct {
	SessionID string          `json:"sessionId"`
	Status    string          `json:"status"`
	Message   session.Message `json:"message"`
}

// Engine ties the detection components, the reply producer and the callback
// dispatcher together per inbound message.
type Engine struct {
	store      session.Store
	classifier *detect.Classifier
	producer   agent.Producer
	dispatcher ReportSender
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an orchestration engine over the injected collaborators.
func New(store session.Store, classifier *detect.Classifier, producer agent.Producer, dispatcher ReportSender, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		classifier: classifier,
		producer:   producer,
		dispatcher: dispatcher,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleMessage processes one inbound message end to end.
//
// The session lock is held across the whole sequence: append incoming,
// classify (until first positive detection), produce reply, append reply,
// re-extract intelligence over the full history, evaluate the callback
// trigger. Two concurrent requests for the same session id therefore cannot
// interleave; requests for different sessions run fully in parallel.
func (e *Engine) HandleMessage(ctx context.Context, req Request) (*Response, error) {
	msg, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	sess, err := e.store.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	sess.Lock()
	defer sess.Unlock()

	sess.Append(msg)

	if !sess.ScamDetected {
		det := e.classifier.Classify(ctx, msg.Text)
		if det.IsScam {
			sess.MarkScam(det.Categories, persona.Select(det.Categories), det.Confidence)
			log.Printf("scam confirmed: session=%s categories=%s confidence=%.2f persona=%s",
				sess.SessionID, strings.Join(det.Categories, ","), det.Confidence, sess.Persona)
		}
	}

	reply, err := session.NewMessage(string(session.SenderAgent), e.replyFor(ctx, sess), e.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("build reply: %w", err)
	}
	sess.Append(reply)

	// Full-history re-extraction every turn: stateless and idempotent, and
	// since the history only grows, the intelligence sets only grow.
	sess.ExtractedIntelligence = detect.Extract(sess.ConversationHistory)

	e.maybeDispatch(ctx, sess)

	if err := e.store.Save(ctx, sess); err != nil {
		// Persistence failure loses at most this turn's state; the sender
		// still gets a normal reply.
		log.Printf("[WARN] session save failed: session=%s: %v", sess.SessionID, err)
	}

	return &Response{
		SessionID: sess.SessionID,
		Status:    "success",
		Message:   reply,
	}, nil
}

func (e *Engine) validate(req Request) (session.Message, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return session.Message{}, fmt.Errorf("%w: sessionId is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Message.Text) == "" {
		return session.Message{}, fmt.Errorf("%w: message text is required", ErrInvalidRequest)
	}
	msg, err := session.NewMessage(req.Message.Sender, req.Message.Text, req.Message.Timestamp)
	if err != nil {
		return session.Message{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return msg, nil
}

// replyFor picks the reply path. The first two agent turns bypass the
// producer entirely with canned early-naive lines so evaluation behavior is
// not revealed before persona context is established. Producer failures are
// absorbed into category-keyed fallback replies and never reach the caller.
func (e *Engine) replyFor(ctx context.Context, sess *session.Session) string {
	if sess.AgentTurns() < 2 {
		return agent.EarlyNaiveReply(sess.ScamCategories)
	}

	text, err := e.producer.Generate(ctx, sess.ConversationHistory, sess.ScamCategories, sess.Persona)
	if err != nil {
		log.Printf("[WARN] reply generation failed, using fallback: session=%s: %v", sess.SessionID, err)
		return agent.FallbackReply(sess.ScamCategories)
	}
	return text
}

// maybeDispatch evaluates the callback trigger and sends at most one report
// per session. The sent latch flips only on dispatch success, so a failed
// delivery re-arms the trigger for the next qualifying turn.
func (e *Engine) maybeDispatch(ctx context.Context, sess *session.Session) {
	if sess.CallbackSent || !sess.ScamDetected {
		return
	}
	if !sess.ExtractedIntelligence.HasActionable() && sess.TotalMessagesExchanged < callbackTurnThreshold {
		return
	}

	report := callback.Report{
		SessionID:              sess.SessionID,
		ScamDetected:           sess.ScamDetected,
		TotalMessagesExchanged: sess.TotalMessagesExchanged,
		ExtractedIntelligence:  sess.ExtractedIntelligence,
		AgentNotes:             sess.AgentNotes,
	}
	if err := e.dispatcher.Send(ctx, report); err != nil {
		log.Printf("[WARN] callback dispatch failed, will retry next qualifying turn: session=%s: %v",
			sess.SessionID, err)
		return
	}
	sess.MarkCallbackSent()
}
