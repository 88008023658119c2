package intent

import "strings"

// Picker is the random source used to choose among reply variants.
// *math/rand.Rand satisfies it.
type Picker interface {
	Intn(n int) int
}

// Result 描述一次应答：命中的规则与最终回复。
type Result struct {
	RuleID   string `json:"ruleId,omitempty"`
	Reply    string `json:"reply"`
	Fallback bool   `json:"fallback"`
}

// Normalize lower-cases user input before matching. Trimming is left to callers.
func Normalize(input string) string {
	return strings.ToLower(input)
}

// Match returns the first rule whose keywords hit the input.
// Matching is plain substring containment, so a keyword inside an unrelated word still hits.
func (rs *Ruleset) Match(input string) (Rule, bool) {
	normalized := Normalize(input)
	for _, rule := range rs.Rules {
		if rule.Matches(normalized) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Respond 根据规则表生成回复；未命中任何规则时返回兜底回复。
func Respond(rs *Ruleset, input string, rng Picker) Result {
	rule, ok := rs.Match(input)
	if !ok {
		return Result{Reply: rs.Fallback, Fallback: true}
	}
	return Result{RuleID: rule.ID, Reply: pick(rule.Replies, rng)}
}

func pick(variants []string, rng Picker) string {
	if len(variants) == 1 || rng == nil {
		return variants[0]
	}

	idx := rng.Intn(len(variants))
	if idx < 0 || idx >= len(variants) {
		idx = 0
	}
	return variants[idx]
}
