// Package session holds the per-conversation state for the honeypot engine:
// the message history, accumulated intelligence, detection flags, and the
// stores that keep all of it keyed by session id.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderScammer Sender = "scammer" // the suspected scam sender
	SenderUser    Sender = "user"    // legacy alias accepted on ingest
	SenderAgent   Sender = "agent"   // our honeypot persona
)

// Message is a single conversation entry. Immutable once created.
type Message struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // epoch millis
}

// NewMessage validates the sender role and builds a message.
// Sender is normalized to lowercase; unknown roles are rejected.
func NewMessage(sender, text string, timestamp int64) (Message, error) {
	s := Sender(strings.ToLower(strings.TrimSpace(sender)))
	switch s {
	case SenderScammer, SenderUser, SenderAgent:
	default:
		return Message{}, fmt.Errorf("invalid sender role: %q", sender)
	}
	return Message{Sender: s, Text: text, Timestamp: timestamp}, nil
}

// Intelligence is the set of indicators of compromise extracted from a
// session's full conversation history. Each field is a deduplicated set;
// within a session it only ever grows.
type Intelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// HasActionable reports whether the intelligence contains at least one
// indicator worth reporting on its own: a UPI id, a phishing link, or a
// phone number. Bare keyword hits do not count.
func (i *Intelligence) HasActionable() bool {
	return len(i.UPIIDs) > 0 || len(i.PhishingLinks) > 0 || len(i.PhoneNumbers) > 0
}

// Session is the mutable state of one honeypot conversation.
//
// All mutation happens through the methods below while holding the session's
// own lock; the engine holds it across an entire turn so that two concurrent
// requests for the same session id cannot interleave their read-modify-write
// sequences.
type Session struct {
	mu sync.Mutex

	SessionID              string       `json:"sessionId"`
	ScamDetected           bool         `json:"scamDetected"`
	ScamCategories         []string     `json:"scamCategories"`
	Persona                string       `json:"persona,omitempty"`
	TotalMessagesExchanged int          `json:"totalMessagesExchanged"`
	ConversationHistory    []Message    `json:"conversationHistory"`
	ExtractedIntelligence  Intelligence `json:"extractedIntelligence"`
	AgentNotes             string       `json:"agentNotes,omitempty"`
	CallbackSent           bool         `json:"callbackSent"`
	CreatedAt              time.Time    `json:"createdAt"`
}

// New creates a fresh session for the given id.
func New(id string, now time.Time) *Session {
	return &Session{
		SessionID: id,
		CreatedAt: now,
	}
}

// Lock acquires the session's turn lock.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session's turn lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// Append adds a message to the history and bumps the exchange counter in the
// same step, keeping TotalMessagesExchanged == len(ConversationHistory).
func (s *Session) Append(m Message) {
	s.ConversationHistory = append(s.ConversationHistory, m)
	s.TotalMessagesExchanged = len(s.ConversationHistory)
}

// MarkScam latches the scam flag and freezes categories and persona.
// Subsequent calls are no-ops: once a session is confirmed as a scam the
// classification never re-runs and never reverts.
func (s *Session) MarkScam(categories []string, persona string, confidence float64) {
	if s.ScamDetected {
		return
	}
	s.ScamDetected = true
	s.ScamCategories = append([]string(nil), categories...)
	s.Persona = persona
	s.AgentNotes = fmt.Sprintf("Scam detected. Categories: %s. Confidence: %.2f.",
		strings.Join(categories, ", "), confidence)
}

// MarkCallbackSent latches the callback flag. One-way: never reverts.
func (s *Session) MarkCallbackSent() {
	s.CallbackSent = true
}

// AgentTurns counts how many replies the honeypot agent has sent so far.
func (s *Session) AgentTurns() int {
	n := 0
	for _, m := range s.ConversationHistory {
		if m.Sender == SenderAgent {
			n++
		}
	}
	return n
}

// Expired reports whether the session has outlived its TTL at the given time.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) > ttl
}
