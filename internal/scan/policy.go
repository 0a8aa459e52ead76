// Package scan implements the frame-sampling analysis loop: sampling a video at
// one frame per second, asking a vision model about each frame, and deciding
// from the model's answer whether that second matches the query.
package scan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PolicyKind selects how a model answer is interpreted.
type PolicyKind int

const (
	PolicyBoolean PolicyKind = iota
	PolicyScored
)

func (k PolicyKind) String() string {
	switch k {
	case PolicyBoolean:
		return "boolean"
	case PolicyScored:
		return "scored"
	default:
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
}

// MaxScore is the top of the confidence scale the scored prompt asks for.
const MaxScore = 100

// MatchPolicy is fixed for the lifetime of a session. Threshold is only
// meaningful for PolicyScored.
type MatchPolicy struct {
	Kind      PolicyKind
	Threshold int
}

// BooleanPolicy matches answers that start with "yes".
func BooleanPolicy() MatchPolicy {
	return MatchPolicy{Kind: PolicyBoolean}
}

// ScoredPolicy matches answers whose first number is at least threshold.
func ScoredPolicy(threshold int) (MatchPolicy, error) {
	if threshold < 0 || threshold > MaxScore {
		return MatchPolicy{}, fmt.Errorf("threshold %d out of range [0,%d]", threshold, MaxScore)
	}
	return MatchPolicy{Kind: PolicyScored, Threshold: threshold}, nil
}

// ParsePolicy builds a policy from its persisted name.
func ParsePolicy(kind string, threshold int) (MatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "boolean":
		return BooleanPolicy(), nil
	case "scored":
		return ScoredPolicy(threshold)
	default:
		return MatchPolicy{}, fmt.Errorf("unknown policy %q", kind)
	}
}

func (p MatchPolicy) String() string {
	if p.Kind == PolicyScored {
		return fmt.Sprintf("scored(>=%d)", p.Threshold)
	}
	return p.Kind.String()
}

// Prompt wraps the user's query into the question sent to the model for
// every frame.
func (p MatchPolicy) Prompt(query string) string {
	query = strings.TrimSpace(query)
	if p.Kind == PolicyScored {
		return fmt.Sprintf("On a scale from 0 to %d, how confident are you that '%s' is visible in this image? Answer with a single number.", MaxScore, query)
	}
	return fmt.Sprintf("Is '%s' visible in this image? Answer yes or no.", query)
}

// Decision is the outcome of interpreting one answer.
type Decision struct {
	Matched  bool
	Score    int
	HasScore bool
}

// Interpret maps a raw model answer to a match decision under the policy.
func Interpret(answer string, p MatchPolicy) Decision {
	if p.Kind == PolicyScored {
		return interpretScored(answer, p.Threshold)
	}
	return Decision{Matched: isAffirmative(answer)}
}

// isAffirmative is a literal prefix test, so "yesterday" counts.
func isAffirmative(answer string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes")
}

func interpretScored(answer string, threshold int) Decision {
	digits, ok := firstNumber(answer)
	if !ok {
		return Decision{}
	}

	score, err := strconv.Atoi(digits)
	if err != nil || score > MaxScore {
		// Atoi only fails here on overflow.
		score = MaxScore
	}

	return Decision{
		Matched:  score >= threshold,
		Score:    score,
		HasScore: true,
	}
}

// firstNumber returns the first maximal run of ASCII digits in s.
func firstNumber(s string) (string, bool) {
	start := strings.IndexFunc(s, isASCIIDigit)
	if start < 0 {
		return "", false
	}
	end := start
	for end < len(s) && isASCIIDigit(rune(s[end])) {
		end++
	}
	return s[start:end], true
}

func isASCIIDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Progress is the fraction of the video covered once second has been sampled.
func Progress(second int, duration float64) float64 {
	if duration <= 0 || math.IsInf(duration, 0) || math.IsNaN(duration) {
		return 0
	}
	return float64(second) / duration
}
