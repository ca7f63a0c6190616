// Package patterns provides the centralized pattern registry for scam
// detection. All regexes are compiled once at package init and shared across
// the classifier, the extractor, and the CLI.
//
// Design principles:
// - COMPILE ONCE: All patterns compiled at init, not per-request
// - DRY: Single source of truth for scam signatures and keyword lists
// - CATEGORIZED: Patterns organized by scam category for ordered reporting
// - EXTENSIBLE: New signatures are added here without touching engine code
package patterns

import (
	"regexp"
	"strings"
	"sync"
)

// Category represents a scam category.
type Category string

const (
	CategoryBankFraud     Category = "bank_fraud"
	CategoryUPIFraud      Category = "upi_fraud"
	CategoryPhishing      Category = "phishing"
	CategoryUrgency       Category = "urgency_tactics"
	CategoryFakeLottery   Category = "fake_lottery"
	CategoryImpersonation Category = "impersonation"
)

// CategoryOrder is the fixed declaration order of scam categories. Matched
// categories are always reported in this order, each at most once.
var CategoryOrder = []Category{
	CategoryBankFraud,
	CategoryUPIFraud,
	CategoryPhishing,
	CategoryUrgency,
	CategoryFakeLottery,
	CategoryImpersonation,
}

// FinancialCategories are the categories whose presence makes a phone number
// in the same message a stronger scam signal.
var FinancialCategories = map[Category]bool{
	CategoryBankFraud: true,
	CategoryUPIFraud:  true,
}

// Pattern holds a compiled regex with metadata.
//
// Exclude exists because RE2 has no lookahead: a pattern like "any URL not
// on a .gov or .bank domain" is expressed as Regex plus an Exclude that
// vetoes the match.
type Pattern struct {
	Name        string         // Human-readable name for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Exclude     *regexp.Regexp // Optional veto regex (may be nil)
	Category    Category       // Scam category
	Description string         // What this pattern detects
}

// Matches reports whether the pattern matches text, honoring Exclude.
func (p *Pattern) Matches(text string) bool {
	if !p.Regex.MatchString(text) {
		return false
	}
	if p.Exclude != nil && p.Exclude.MatchString(text) {
		return false
	}
	return true
}

// Registry holds all compiled patterns, organized by category.
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]*Pattern
	all        []*Pattern
	keywords   []string
}

// global singleton - initialized once at package load
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Pattern),
		all:        make([]*Pattern, 0, 64),
	}

	r.registerBankFraudPatterns()
	r.registerUPIFraudPatterns()
	r.registerPhishingPatterns()
	r.registerUrgencyPatterns()
	r.registerFakeLotteryPatterns()
	r.registerImpersonationPatterns()
	r.registerSuspiciousKeywords()

	return r
}

// register adds a pattern to the registry (internal use only).
func (r *Registry) register(name, pattern string, category Category, description string) {
	r.registerExcluding(name, pattern, "", category, description)
}

func (r *Registry) registerExcluding(name, pattern, exclude string, category Category, description string) {
	p := &Pattern{
		Name:        name,
		Regex:       regexp.MustCompile(pattern),
		Category:    category,
		Description: description,
	}
	if exclude != "" {
		p.Exclude = regexp.MustCompile(exclude)
	}

	r.byCategory[category] = append(r.byCategory[category], p)
	r.all = append(r.all, p)
}

// GetByCategory returns all patterns for a specific category.
// Returns empty slice if category not found (never nil).
func (r *Registry) GetByCategory(cat Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// MatchAll returns every pattern matching text in the given categories.
// Use when the caller needs the full match set for scoring.
func (r *Registry) MatchAll(text string, cats ...Category) []*Pattern {
	var matches []*Pattern
	for _, cat := range cats {
		for _, p := range r.GetByCategory(cat) {
			if p.Matches(text) {
				matches = append(matches, p)
			}
		}
	}
	return matches
}

// MatchAny returns the first pattern matching text in the given categories,
// or nil. Optimized for early exit.
func (r *Registry) MatchAny(text string, cats ...Category) *Pattern {
	for _, cat := range cats {
		for _, p := range r.GetByCategory(cat) {
			if p.Matches(text) {
				return p
			}
		}
	}
	return nil
}

// KeywordHits returns the distinct suspicious keywords present in text.
// Presence test only: each keyword appears at most once regardless of how
// often it occurs. Text is expected to be lowercased already.
func (r *Registry) KeywordHits(text string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []string
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// Keywords returns the full suspicious keyword list.
func (r *Registry) Keywords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keywords
}

// TotalPatterns returns the total count of registered patterns.
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of patterns in a category.
func (r *Registry) CategoryCount(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
