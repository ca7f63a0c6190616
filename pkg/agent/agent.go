// Package agent produces the honeypot's replies: canned early-turn and
// fallback lines locally, everything else through an LLM provider behind the
// Producer interface.
package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/decoynet/lure/pkg/persona"
	"github.com/decoynet/lure/pkg/session"
)

// Producer generates the next in-character reply for a conversation.
// Implementations may fail; the engine substitutes a fallback reply and
// never propagates the failure to the caller.
type Producer interface {
	Generate(ctx context.Context, history []session.Message, categories []string, personaKey string) (string, error)
}

// Completer is the raw text-generation contract the conversation agent
// builds on. LLMClient implements it; tests substitute fakes.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const promptTemplate = `You are roleplaying as %s in a conversation with a potential scammer.

Your character traits:
%s

IMPORTANT INSTRUCTIONS:
1. Stay fully in character at all times
2. Sound natural and human-like
3. Show appropriate emotions (confusion, worry, excitement)
4. Ask genuine questions
5. DO NOT reveal you know this is a scam
6. Keep responses short (1-2 sentences)
7. Be believable - respond like a real person
8. Try to extract more information (phone numbers, links, account details)

Detected scam categories: %s

Conversation so far:
%s

Generate ONLY your next reply.
Do not add explanations, labels, or meta commentary.

Your response:
`

// contextWindow is how many trailing messages go into the prompt. Histories
// are short (the callback trigger bounds them) so a small window is plenty.
const contextWindow = 6

// minReplyLength guards against degenerate completions like "Ok." or an
// empty string after cleaning.
const minReplyLength = 8

var (
	reRolePrefix  = regexp.MustCompile(`(?i)^(you:|response:|assistant:)`)
	reSentenceEnd = regexp.MustCompile(`[.!?]+`)
	reParenthetic = regexp.MustCompile(`\(.*?\)|\[.*?\]`)
)

// ConversationAgent is the LLM-backed Producer. It builds the persona
// prompt, calls the completion backend and cleans the raw output into a
// short in-character line.
type ConversationAgent struct {
	llm Completer
}

// NewConversationAgent creates an agent on top of a completion backend.
func NewConversationAgent(llm Completer) *ConversationAgent {
	return &ConversationAgent{llm: llm}
}

// Generate implements Producer. Returns an error when the backend fails or
// the cleaned completion is unusable; callers fall back to canned replies.
func (a *ConversationAgent) Generate(ctx context.Context, history []session.Message, categories []string, personaKey string) (string, error) {
	prompt := buildPrompt(history, categories, personaKey)

	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	cleaned := cleanResponse(raw)
	if len(cleaned) < minReplyLength {
		return "", fmt.Errorf("completion too short after cleaning: %q", cleaned)
	}
	return cleaned, nil
}

func buildPrompt(history []session.Message, categories []string, personaKey string) string {
	p := persona.Get(personaKey)

	traits := make([]string, 0, len(p.Traits))
	for _, t := range p.Traits {
		traits = append(traits, "- "+t)
	}

	start := 0
	if len(history) > contextWindow {
		start = len(history) - contextWindow
	}
	var conversation strings.Builder
	for _, msg := range history[start:] {
		role := "Scammer"
		if msg.Sender == session.SenderAgent {
			role = "You"
		}
		fmt.Fprintf(&conversation, "%s: %s\n", role, msg.Text)
	}

	categoryLine := strings.Join(categories, ", ")
	if categoryLine == "" {
		categoryLine = "unknown"
	}

	return fmt.Sprintf(promptTemplate,
		p.Description,
		strings.Join(traits, "\n"),
		categoryLine,
		strings.TrimSpace(conversation.String()),
	)
}

// cleanResponse strips role prefixes, quotes and bracketed meta commentary,
// and clamps the reply to two sentences.
func cleanResponse(text string) string {
	text = reRolePrefix.ReplaceAllString(strings.TrimSpace(text), "")
	text = strings.Trim(strings.TrimSpace(text), `"'`)

	sentences := reSentenceEnd.Split(text, -1)
	var kept []string
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			kept = append(kept, strings.TrimSpace(s))
		}
	}
	if len(kept) > 2 {
		text = strings.Join(kept[:2], ". ") + "."
	}

	text = reParenthetic.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
