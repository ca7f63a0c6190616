// Package persona holds the fixed behavioral profiles the honeypot agent
// plays, and the rule that picks one from detected scam categories.
// No LLM or network logic lives here.
package persona

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Persona keys.
const (
	ConfusedElderly      = "confused_elderly"
	CautiousProfessional = "cautious_professional"
	NaiveStudent         = "naive_student"
	WorriedParent        = "worried_parent"
)

// Persona is a static behavioral profile consumed by the reply producer.
type Persona struct {
	Key         string   `yaml:"-"`
	Description string   `yaml:"description"`
	Traits      []string `yaml:"traits"`
}

var (
	mu       sync.RWMutex
	personas = map[string]Persona{
		ConfusedElderly: {
			Key:         ConfusedElderly,
			Description: "an elderly person who is not tech-savvy and easily confused",
			Traits: []string{
				"Uses simple language",
				"Gets confused by technical terms",
				"Asks for clarification often",
				"Mentions family or grandchildren",
				"Sounds worried and slow to understand",
			},
		},
		CautiousProfessional: {
			Key:         CautiousProfessional,
			Description: "a working professional who is careful and moderately tech-savvy",
			Traits: []string{
				"Asks verification questions",
				"Mentions work or being busy",
				"Prefers official channels",
				"Questions unusual requests",
			},
		},
		NaiveStudent: {
			Key:         NaiveStudent,
			Description: "a young student who is active online but inexperienced",
			Traits: []string{
				"Uses casual language",
				"Gets excited by offers or prizes",
				"Mentions college or exams",
				"Responds quickly without much skepticism",
			},
		},
		WorriedParent: {
			Key:         WorriedParent,
			Description: "a parent who is concerned about family finances",
			Traits: []string{
				"Expresses concern about money",
				"Mentions children or household responsibilities",
				"Sounds anxious and protective",
			},
		},
	}
)

// Select chooses the most effective persona for the detected scam
// categories. Priority is fixed and independent of the input order:
// fake_lottery, then impersonation, then the financial categories; anything
// else falls back to the cautious professional. The result is chosen once,
// when scam is first confirmed, and stored on the session.
func Select(categories []string) string {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}

	switch {
	case set["fake_lottery"]:
		return NaiveStudent
	case set["impersonation"]:
		return WorriedParent
	case set["bank_fraud"] || set["upi_fraud"]:
		return ConfusedElderly
	default:
		return CautiousProfessional
	}
}

// Get returns the persona for key, falling back to the confused elderly
// profile for unknown keys.
func Get(key string) Persona {
	mu.RLock()
	defer mu.RUnlock()

	if p, ok := personas[key]; ok {
		return p
	}
	return personas[ConfusedElderly]
}

// LoadOverrides merges persona descriptions and traits from a YAML file over
// the built-in profiles. Only known persona keys are accepted. Intended to
// be called once at startup.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read persona file: %w", err)
	}

	var overrides map[string]Persona
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse persona file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for key, override := range overrides {
		base, ok := personas[key]
		if !ok {
			return fmt.Errorf("unknown persona key %q", key)
		}
		if override.Description != "" {
			base.Description = override.Description
		}
		if len(override.Traits) > 0 {
			base.Traits = override.Traits
		}
		personas[key] = base
	}
	return nil
}
