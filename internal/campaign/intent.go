package campaign

import "strings"

type Intent string

const (
	IntentNone     Intent = "none"
	IntentTransfer Intent = "transfer"
)

// IntentClassifier decides what a caller asked for at the menu.
type IntentClassifier interface {
	Classify(digits, transcript string) Intent
}

// DefaultTransferDigit is the key that requests a human agent.
const DefaultTransferDigit = "1"

// DefaultTransferKeywords are matched case-insensitively as substrings of
// the speech transcript.
var DefaultTransferKeywords = []string{"transfer", "agent", "representative", "speak to", "human"}

// KeywordClassifier maps a digit match or a keyword in the transcript to
// IntentTransfer.
type KeywordClassifier struct {
	Digit    string
	Keywords []string
}

func NewKeywordClassifier(digit string, keywords []string) KeywordClassifier {
	if strings.TrimSpace(digit) == "" {
		digit = DefaultTransferDigit
	}
	if len(keywords) == 0 {
		keywords = DefaultTransferKeywords
	}
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			kw = append(kw, k)
		}
	}
	return KeywordClassifier{Digit: strings.TrimSpace(digit), Keywords: kw}
}

func (k KeywordClassifier) Classify(digits, transcript string) Intent {
	if d := strings.TrimSpace(digits); d != "" && d == k.Digit {
		return IntentTransfer
	}
	t := strings.ToLower(transcript)
	if strings.TrimSpace(t) == "" {
		return IntentNone
	}
	for _, kw := range k.Keywords {
		if strings.Contains(t, kw) {
			return IntentTransfer
		}
	}
	return IntentNone
}
