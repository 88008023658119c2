package intent

import (
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules/*.yaml
var rulesFS embed.FS

var (
	ErrRulesetNotFound = errors.New("ruleset not found")
	ErrInvalidRuleset  = errors.New("invalid ruleset")
)

// Rule 是一条意图规则：关键词组命中后返回预设回复。
//
// Keywords 中任意一个关键词出现在输入中即视为命中；And 中的每一组也都必须至少命中一个。
type Rule struct {
	ID       string     `yaml:"id" json:"id"`
	Keywords []string   `yaml:"keywords" json:"keywords"`
	And      [][]string `yaml:"and,omitempty" json:"and,omitempty"`
	Reply    string     `yaml:"reply,omitempty" json:"-"`
	Replies  []string   `yaml:"replies,omitempty" json:"replies"`
}

// Ruleset 是按固定顺序求值的规则表，外加未命中时的兜底回复。
type Ruleset struct {
	ID       string `yaml:"id" json:"id"`
	Fallback string `yaml:"fallback" json:"fallback"`
	Rules    []Rule `yaml:"rules" json:"rules"`
}

// IDs lists the embedded rulesets.
func IDs() []string {
	entries, err := rulesFS.ReadDir("rules")
	if err != nil {
		return nil
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(ids)
	return ids
}

// LoadRuleset 读取内嵌的规则表。
func LoadRuleset(id string) (*Ruleset, error) {
	data, err := rulesFS.ReadFile(path.Join("rules", id+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRulesetNotFound, id)
	}

	rs, err := ParseRuleset(data)
	if err != nil {
		return nil, fmt.Errorf("load ruleset %s: %w", id, err)
	}
	if rs.ID == "" {
		rs.ID = id
	}
	return rs, nil
}

// ParseRuleset decodes and validates a YAML rule table.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRuleset, err)
	}

	if strings.TrimSpace(rs.Fallback) == "" {
		return nil, fmt.Errorf("%w: fallback is required", ErrInvalidRuleset)
	}

	seen := make(map[string]struct{}, len(rs.Rules))
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.ID == "" {
			return nil, fmt.Errorf("%w: rule #%d has no id", ErrInvalidRuleset, i)
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate rule id %q", ErrInvalidRuleset, rule.ID)
		}
		seen[rule.ID] = struct{}{}

		if err := rule.normalize(); err != nil {
			return nil, fmt.Errorf("%w: rule %q: %v", ErrInvalidRuleset, rule.ID, err)
		}
	}

	return &rs, nil
}

// normalize folds the single reply form into Replies and lower-cases keywords.
func (r *Rule) normalize() error {
	if r.Reply != "" && len(r.Replies) > 0 {
		return errors.New("reply and replies are mutually exclusive")
	}
	if r.Reply != "" {
		r.Replies = []string{r.Reply}
		r.Reply = ""
	}
	if len(r.Replies) == 0 {
		return errors.New("no reply configured")
	}
	for _, reply := range r.Replies {
		if strings.TrimSpace(reply) == "" {
			return errors.New("empty reply variant")
		}
	}

	groups := r.groups()
	for _, group := range groups {
		if len(group) == 0 {
			return errors.New("empty keyword group")
		}
		for i, keyword := range group {
			if keyword == "" {
				return errors.New("empty keyword")
			}
			group[i] = Normalize(keyword)
		}
	}
	return nil
}

func (r Rule) groups() [][]string {
	groups := make([][]string, 0, 1+len(r.And))
	groups = append(groups, r.Keywords)
	return append(groups, r.And...)
}

// Matches reports whether the normalized input hits every keyword group of the rule.
func (r Rule) Matches(normalized string) bool {
	for _, group := range r.groups() {
		if !containsAny(normalized, group) {
			return false
		}
	}
	return true
}

// Variants 返回规则的全部候选回复。
func (r Rule) Variants() []string {
	return append([]string(nil), r.Replies...)
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
