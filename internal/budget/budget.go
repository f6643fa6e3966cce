// Package budget estimates prompt sizes in tokens. Backends use different
// tokenizers, so the estimate is a character heuristic:
// 1 token ≈ 4 characters of English prose.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default prompt budget in tokens. It fits
	// 8k-context models with room left for the answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count of msgs, summing
// role and content for each message plus a small per-message overhead.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Exceeds returns the estimate for msgs and whether it is above maxTokens.
// A non-positive maxTokens disables the check.
func Exceeds(msgs []*schema.Message, maxTokens int) (int, bool) {
	est := EstimateMessages(msgs)
	if maxTokens <= 0 {
		return est, false
	}
	return est, est > maxTokens
}
