package detect

import (
	"context"
	"log"
	"regexp"

	"github.com/decoynet/lure/pkg/patterns"
)

// Confidence scoring weights. Every individual pattern match contributes
// matchWeight; URL, phone-in-financial-context and keyword-cluster signals
// add fixed bonuses. The total is capped at 1.0.
const (
	matchWeight      = 0.15
	urlBonus         = 0.20
	phoneBonus       = 0.15
	keywordBonus     = 0.10
	keywordThreshold = 3
	scamThreshold    = 0.30
)

var (
	reAnyURL   = regexp.MustCompile(`https?://`)
	reAnyPhone = regexp.MustCompile(`\+?[0-9]{10,13}`)
)

// Detection is the classifier verdict for a single message.
type Detection struct {
	IsScam     bool     `json:"isScam"`
	Categories []string `json:"categories"`
	Confidence float64  `json:"confidence"`
}

// Classifier scores a single message for scam intent. The core is the
// regex registry; an embedding-similarity matcher can be attached as an
// optional second layer for texts the signatures miss.
type Classifier struct {
	semantic *SemanticMatcher
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithSemanticMatcher attaches the optional embedding-similarity layer.
func WithSemanticMatcher(m *SemanticMatcher) ClassifierOption {
	return func(c *Classifier) { c.semantic = m }
}

// NewClassifier creates a scam classifier.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify analyzes one message and returns the scam verdict.
//
// Scoring: 0.15 per matched pattern across all categories, +0.2 when the
// text carries a URL, +0.15 when it carries a phone number and at least one
// matched category is financial, +0.1 when three or more distinct suspicious
// keywords are present. Capped at 1.0. A message is a scam when confidence
// reaches 0.3 or at least two distinct categories matched. Matched-category
// order follows the registry's declaration order.
func (c *Classifier) Classify(ctx context.Context, text string) Detection {
	lower := Normalize(text)
	reg := patterns.Get()

	var det Detection
	totalMatches := 0
	matched := make(map[patterns.Category]bool)

	for _, cat := range patterns.CategoryOrder {
		hits := reg.MatchAll(lower, cat)
		if len(hits) == 0 {
			continue
		}
		totalMatches += len(hits)
		matched[cat] = true
		det.Categories = append(det.Categories, string(cat))
	}

	confidence := float64(totalMatches) * matchWeight
	if confidence > 1.0 {
		confidence = 1.0
	}

	if reAnyURL.MatchString(lower) {
		confidence += urlBonus
	}
	if reAnyPhone.MatchString(lower) && hasFinancialCategory(matched) {
		confidence += phoneBonus
	}
	if len(reg.KeywordHits(lower)) >= keywordThreshold {
		confidence += keywordBonus
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	det.Confidence = confidence
	det.IsScam = confidence >= scamThreshold || len(det.Categories) >= 2

	if !det.IsScam && c.semantic != nil && c.semantic.IsReady() {
		c.applySemantic(ctx, lower, &det)
	}

	return det
}

// applySemantic lets the embedding layer upgrade a negative verdict when the
// message is semantically close to a known scam phrasing. It only ever adds
// to the verdict; regex results are never removed.
func (c *Classifier) applySemantic(ctx context.Context, lower string, det *Detection) {
	category, score, err := c.semantic.Match(ctx, lower)
	if err != nil {
		log.Printf("[WARN] semantic match failed: %v", err)
		return
	}
	if category == "" {
		return
	}

	det.IsScam = true
	if float64(score) > det.Confidence {
		det.Confidence = float64(score)
	}
	for _, existing := range det.Categories {
		if existing == category {
			return
		}
	}
	det.Categories = append(det.Categories, category)
}

func hasFinancialCategory(matched map[patterns.Category]bool) bool {
	for cat := range matched {
		if patterns.FinancialCategories[cat] {
			return true
		}
	}
	return false
}
