package detect

import (
	"context"
	"fmt"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/decoynet/lure/pkg/httputil"
	"github.com/decoynet/lure/pkg/patterns"
)

// maxEmbedQueries bounds concurrent embedding calls to the Ollama backend.
// The layer is best-effort: a query that would queue is skipped instead, and
// the regex verdict stands.
const maxEmbedQueries = 4

// seedPhrase is one known scam phrasing used to seed the vector collection.
type seedPhrase struct {
	Text     string
	Category patterns.Category
}

// Seed corpus: short, representative phrasings per category. The point is
// recall on messages that dodge the regex signatures, not coverage of every
// scam script.
var seedPhrases = []seedPhrase{
	{"your savings account has been frozen due to suspicious activity", patterns.CategoryBankFraud},
	{"we noticed a problem with your recent card transaction, confirm your details", patterns.CategoryBankFraud},
	{"complete your account verification or services will stop", patterns.CategoryBankFraud},
	{"send one rupee to receive your cashback instantly", patterns.CategoryUPIFraud},
	{"accept this collect request to get your refund", patterns.CategoryUPIFraud},
	{"sign in through this secure page to restore access", patterns.CategoryPhishing},
	{"open the attachment and confirm your login details", patterns.CategoryPhishing},
	{"you must respond today or the offer is gone forever", patterns.CategoryUrgency},
	{"you have been chosen for a cash award, share your details to claim", patterns.CategoryFakeLottery},
	{"your lucky number won our anniversary draw", patterns.CategoryFakeLottery},
	{"this is an official notice from the revenue office about unpaid dues", patterns.CategoryImpersonation},
	{"a case has been registered against your number, call this officer", patterns.CategoryImpersonation},
}

// SemanticMatcher detects scam phrasings by embedding similarity against the
// seed corpus. Entirely optional: it needs a running Ollama instance for
// embeddings and the engine works without it.
type SemanticMatcher struct {
	db         *chromem.DB
	collection *chromem.Collection
	threshold  float32
	sem        *httputil.Semaphore

	mu    sync.RWMutex
	ready bool
}

// NewSemanticMatcher creates a matcher backed by Ollama embeddings.
// Call LoadSeeds before use; until then IsReady reports false.
func NewSemanticMatcher(model, ollamaURL string) (*SemanticMatcher, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection(
		"scam_phrases", nil, chromem.NewEmbeddingFuncOllama(model, ollamaURL))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &SemanticMatcher{
		db:         db,
		collection: collection,
		threshold:  0.65,
		sem:        httputil.NewSemaphore(maxEmbedQueries),
	}, nil
}

// LoadSeeds embeds the seed corpus. Requires the embedding backend to be
// reachable; this is the call that fails when Ollama is down.
func (m *SemanticMatcher) LoadSeeds(ctx context.Context) error {
	docs := make([]chromem.Document, 0, len(seedPhrases))
	for i, p := range seedPhrases {
		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("seed-%d", i),
			Content:  p.Text,
			Metadata: map[string]string{"category": string(p.Category)},
		})
	}

	if err := m.collection.AddDocuments(ctx, docs, 2); err != nil {
		return fmt.Errorf("embed seed phrases: %w", err)
	}

	m.mu.Lock()
	m.ready = true
	m.mu.Unlock()
	return nil
}

// IsReady reports whether the seed corpus is loaded.
func (m *SemanticMatcher) IsReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

// Match returns the scam category of the closest seed phrase when its
// similarity clears the threshold, or "" when nothing is close enough.
// When all embedding slots are busy the query is skipped rather than queued;
// skips are counted as drops on the semaphore.
func (m *SemanticMatcher) Match(ctx context.Context, text string) (string, float32, error) {
	if !m.IsReady() {
		return "", 0, fmt.Errorf("semantic matcher not ready")
	}

	if !m.sem.TryAcquire() {
		return "", 0, nil
	}
	defer m.sem.Release()

	results, err := m.collection.Query(ctx, text, 1, nil, nil)
	if err != nil {
		return "", 0, fmt.Errorf("query: %w", err)
	}
	if len(results) == 0 {
		return "", 0, nil
	}

	top := results[0]
	if top.Similarity < m.threshold {
		return "", top.Similarity, nil
	}
	return top.Metadata["category"], top.Similarity, nil
}
