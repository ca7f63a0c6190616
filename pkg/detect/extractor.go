package detect

import (
	"regexp"
	"strings"

	"github.com/decoynet/lure/pkg/session"
)

// Pre-compiled IOC patterns (compiled once, used every turn).
var (
	// IFSC-style bank codes: 4 letters, a literal zero, 6 alphanumerics.
	// Matched unconditionally.
	reIFSC = regexp.MustCompile(`\b[a-z]{4}0[a-z0-9]{6}\b`)

	// Long digit runs count as account numbers only in account context:
	// "account 123456789", "a/c no. 123456789012", "acct #9876543210".
	// Bare digit runs are left for the phone matcher.
	reAccountCtx = regexp.MustCompile(`(?:account|acct|a/c)\s*(?:no\.?|number|#)?\s*:?\s*([0-9]{9,18})`)

	// Email-shaped tokens; kept only when a payment provider substring is
	// present in the handle.
	reHandle = regexp.MustCompile(`\b[a-z0-9][a-z0-9._-]*@[a-z0-9._-]+\b`)

	// URLs via the standard unreserved/reserved character set plus
	// percent-encoded triplets. The $-_ range covers /, digits, ?, = and
	// the other path/query punctuation.
	reLink = regexp.MustCompile(`https?://(?:[a-z0-9]|[$-_@.&+]|[!*(),]|%[0-9a-f]{2})+`)

	// Phone candidates; word-boundary discipline is enforced in code since
	// the optional "+" defeats \b.
	rePhone = regexp.MustCompile(`\+?[0-9]{10,13}`)
)

// upiProviders is the allow-list of payment-provider substrings that turn an
// email-shaped token into a UPI id.
var upiProviders = []string{
	"paytm",
	"okaxis",
	"ybl",
	"axisbank",
	"oksbi",
	"sbi",
	"upi",
}

// reportedKeywords is the keyword list attached to extracted intelligence.
// Narrower than the classifier's scoring list: only terms worth reporting.
var reportedKeywords = []string{
	"urgent",
	"verify",
	"immediately",
	"block",
	"suspend",
	"otp",
	"cvv",
	"pin",
	"password",
	"account number",
}

// Extract runs IOC extraction over the full conversation history and returns
// a fresh, deduplicated Intelligence. It is stateless and idempotent: the
// engine re-runs it every turn against the entire history, so results can
// only grow as the history grows.
func Extract(history []session.Message) session.Intelligence {
	var sb strings.Builder
	for i, msg := range history {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(msg.Text)
	}
	text := strings.ToLower(sb.String())

	intel := session.Intelligence{}

	accounts, accountSpans := extractBankAccounts(text)
	intel.BankAccounts = accounts
	intel.UPIIDs = extractUPIIDs(text)
	intel.PhishingLinks = dedupe(reLink.FindAllString(text, -1))
	intel.PhoneNumbers = extractPhoneNumbers(text, accountSpans)
	intel.SuspiciousKeywords = presentKeywords(text)

	return intel
}

// extractBankAccounts returns bank identifiers plus the byte spans claimed
// by context-gated account numbers, so the phone matcher can skip them.
func extractBankAccounts(text string) ([]string, [][2]int) {
	accounts := reIFSC.FindAllString(text, -1)

	var spans [][2]int
	for _, m := range reAccountCtx.FindAllStringSubmatchIndex(text, -1) {
		// m[2], m[3] bound the captured digit run.
		start, end := m[2], m[3]
		// Runs longer than 18 digits are not account numbers; the regex has
		// no trailing \b so check the next byte ourselves.
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		accounts = append(accounts, text[start:end])
		spans = append(spans, [2]int{start, end})
	}

	return dedupe(accounts), spans
}

func extractUPIIDs(text string) []string {
	var ids []string
	for _, handle := range reHandle.FindAllString(text, -1) {
		for _, provider := range upiProviders {
			if strings.Contains(handle, provider) {
				ids = append(ids, handle)
				break
			}
		}
	}
	return dedupe(ids)
}

// extractPhoneNumbers finds standalone digit runs of length 10-13 with an
// optional leading "+". A candidate is dropped when it touches other digits
// (it is a fragment of a longer run) or overlaps a digit run already claimed
// as an account number.
func extractPhoneNumbers(text string, claimed [][2]int) []string {
	var phones []string
	for _, span := range rePhone.FindAllStringIndex(text, -1) {
		start, end := span[0], span[1]
		if start > 0 && isDigit(text[start-1]) {
			continue
		}
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		if overlapsAny(start, end, claimed) {
			continue
		}
		phones = append(phones, text[start:end])
	}
	return dedupe(phones)
}

func presentKeywords(text string) []string {
	var present []string
	for _, kw := range reportedKeywords {
		if strings.Contains(text, kw) {
			present = append(present, kw)
		}
	}
	return present
}

func overlapsAny(start, end int, spans [][2]int) bool {
	for _, s := range spans {
		if start < s[1] && end > s[0] {
			return true
		}
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// dedupe removes duplicates preserving first-seen order. Never returns nil
// for non-empty input.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
