package agent

import "math/rand"

// Canned reply tables. Early-naive replies cover the first two agent turns,
// before persona context is established; fallback replies cover reply
// producer failures. Both are keyed by scam category with a generic bucket.

const generalKey = "general"

var earlyNaiveReplies = map[string][]string{
	"bank_fraud": {
		"Oh… I didn't know that could happen.",
		"I see, I'm not very familiar with bank procedures.",
	},
	"upi_fraud": {
		"I'm not very good with UPI things.",
		"Okay, that sounds a bit confusing.",
	},
	"phishing": {
		"Oh, I wasn't expecting that.",
		"Let me try to understand this.",
	},
	"fake_lottery": {
		"Oh wow, really?",
		"That's surprising, I didn't expect that.",
	},
	"impersonation": {
		"That sounds serious… what should I do?",
		"Okay, I'm listening.",
	},
	generalKey: {
		"Oh, okay.",
		"Hmm, I'm not really sure.",
	},
}

var fallbackReplies = map[string][]string{
	"bank_fraud": {
		"Oh no, I didn't realize my account could be blocked.",
		"I'm not very good with banking apps, can you explain?",
	},
	"upi_fraud": {
		"I don't really understand UPI very well.",
		"That sounds confusing, what do I need to do?",
	},
	"phishing": {
		"I'm not sure about clicking links, is it safe?",
		"Why do I need to reset my password?",
	},
	"fake_lottery": {
		"Really? I won something?",
		"That sounds exciting! What should I do next?",
	},
	generalKey: {
		"I'm not sure I understand, can you explain again?",
		"This is a bit confusing for me.",
	},
}

// EarlyNaiveReply returns a canned reply for the first two agent turns,
// keyed by the first scam category with a table entry.
func EarlyNaiveReply(categories []string) string {
	return pick(earlyNaiveReplies, categories)
}

// FallbackReply returns a local substitute when reply generation fails.
func FallbackReply(categories []string) string {
	return pick(fallbackReplies, categories)
}

func pick(table map[string][]string, categories []string) string {
	for _, category := range categories {
		if options, ok := table[category]; ok {
			return options[rand.Intn(len(options))]
		}
	}
	options := table[generalKey]
	return options[rand.Intn(len(options))]
}
