// Package classify assigns a payment label, a keyword and an optional month
// override to statement transactions using an ordered set of regex rules.
package classify

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

// Rule maps a label to the patterns that select it.
type Rule struct {
	Label    domain.Label `yaml:"label"`
	Patterns []string     `yaml:"patterns"`
}

// RuleSet is the top-level YAML structure.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

type compiledRule struct {
	label    domain.Label
	patterns []*regexp.Regexp
}

// Classifier applies rules in file order.
type Classifier struct {
	rules []compiledRule
}

// New builds a classifier from YAML rule data.
func New(data []byte) (*Classifier, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse classification rules: %w", err)
	}
	if len(set.Rules) == 0 {
		return nil, fmt.Errorf("classification rules are empty")
	}

	c := &Classifier{rules: make([]compiledRule, 0, len(set.Rules))}
	for i, rule := range set.Rules {
		if !rule.Label.Relevant() {
			return nil, fmt.Errorf("rule %d: invalid label %q", i, rule.Label)
		}
		if len(rule.Patterns) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no patterns", i, rule.Label)
		}

		cr := compiledRule{label: rule.Label}
		for j, p := range rule.Patterns {
			if strings.TrimSpace(p) == "" {
				return nil, fmt.Errorf("rule %d (%s): pattern %d is empty", i, rule.Label, j)
			}
			re, err := compilePattern(p)
			if err != nil {
				return nil, fmt.Errorf("rule %d (%s): pattern %d: %w", i, rule.Label, j, err)
			}
			cr.patterns = append(cr.patterns, re)
		}
		c.rules = append(c.rules, cr)
	}
	return c, nil
}

const (
	wordChar     = `[\p{L}\p{N}_]`
	wordStart    = `(?:^|[^\p{L}\p{N}_])`
	wordEnd      = `(?:$|[^\p{L}\p{N}_])`
	asciiWord    = `\w`
	wordBoundary = `\b`
)

// compilePattern compiles a rule pattern case-insensitively with Unicode word
// semantics: \w matches letters such as ü, and a leading or trailing \b is a
// boundary between Unicode words. Group 1 holds the matched text.
func compilePattern(p string) (*regexp.Regexp, error) {
	core := p
	lead := strings.HasPrefix(core, wordBoundary)
	if lead {
		core = strings.TrimPrefix(core, wordBoundary)
	}
	trail := strings.HasSuffix(core, wordBoundary) && !strings.HasSuffix(core, `\`+wordBoundary)
	if trail {
		core = strings.TrimSuffix(core, wordBoundary)
	}
	core = strings.ReplaceAll(core, asciiWord, wordChar)

	expr := "(" + core + ")"
	if lead {
		expr = wordStart + expr
	}
	if trail {
		expr += wordEnd
	}
	return regexp.Compile("(?i)" + expr)
}

// LoadEmbedded returns the classifier for the built-in rules.
func LoadEmbedded() (*Classifier, error) {
	return New(embeddedRules)
}

// LoadFromFile reads rules from path.
func LoadFromFile(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return New(data)
}

// Load uses path when set and the embedded rules otherwise.
func Load(path string) (*Classifier, error) {
	if path == "" {
		return LoadEmbedded()
	}
	return LoadFromFile(path)
}

// Classify returns the label of text and the literal text that selected it.
// Unmatched text is LabelOther with its display name as keyword.
func (c *Classifier) Classify(text string) (domain.Label, string) {
	for _, rule := range c.rules {
		for _, re := range rule.patterns {
			if m := re.FindStringSubmatch(text); m != nil && m[1] != "" {
				return rule.label, m[1]
			}
		}
	}
	return domain.LabelOther, domain.LabelOther.DisplayName()
}

// Apply classifies tx in place: label, keyword and month override.
func (c *Classifier) Apply(tx *domain.Transaction) {
	tx.Label, tx.Keyword = c.Classify(tx.ClassificationText())
	if tx.Keyword == "" {
		tx.Keyword = tx.Label.DisplayName()
	}
	tx.MonthOverride = MonthOverride(tx.OverrideText())
}

// Relevant reports whether tx takes part in reconciliation: it carries a
// relevant label or names a target month, whatever its label.
func Relevant(tx *domain.Transaction) bool {
	return tx.Label.Relevant() || tx.MonthOverride != 0
}
