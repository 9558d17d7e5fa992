// Package catalog holds the static investigation knowledge base: per-topic
// follow-up questions, red-flag phrases and symptom-pattern rules.
//
// Two catalogs ship embedded in the binary. The lifestyle catalog routes
// general questions (diet, plateau, hormones...) by keyword; the region
// catalog is keyed by anatomical region and drives pain investigations.
// Both are immutable once loaded.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"symptom-coach/internal/textnorm"
)

//go:embed topics.yaml
var topicsYAML []byte

//go:embed regions.yaml
var regionsYAML []byte

type Tier string

const (
	TierAdjustment      Tier = "adjustment"
	TierAnatomical      Tier = "anatomical"
	TierMedicalReferral Tier = "medical_referral"
)

func (t Tier) Valid() bool {
	switch t {
	case TierAdjustment, TierAnatomical, TierMedicalReferral:
		return true
	}
	return false
}

// Outcome is a diagnosis plus what to do about it.
type Outcome struct {
	Tier             Tier   `yaml:"tier"`
	Diagnosis        string `yaml:"diagnosis"`
	CorrectiveAction string `yaml:"corrective_action"`
}

// Rule maps a keyword signature to an outcome. Match holds clauses; each
// clause is a list of synonyms and is hit when any synonym occurs.
type Rule struct {
	Pattern string     `yaml:"pattern"`
	Match   [][]string `yaml:"match"`
	Outcome `yaml:",inline"`
}

type Topic struct {
	Key             string   `yaml:"key"`
	Title           string   `yaml:"title"`
	Keywords        []string `yaml:"keywords"`
	Questions       []string `yaml:"questions"`
	RequiredAnswers int      `yaml:"required_answers"`
	RedFlags        []string `yaml:"red_flags"`
	Rules           []Rule   `yaml:"rules"`
	Fallback        Outcome  `yaml:"fallback"`
	Alternatives    []string `yaml:"alternatives"`

	fallback bool
}

// IsFallback reports whether t is its catalog's catch-all topic.
func (t *Topic) IsFallback() bool { return t.fallback }

type Catalog struct {
	name     string
	topics   []*Topic
	byKey    map[string]*Topic
	fallback *Topic
}

type catalogFile struct {
	Name           string   `yaml:"name"`
	FallbackKey    string   `yaml:"fallback"`
	DefaultOutcome Outcome  `yaml:"default_outcome"`
	Topics         []*Topic `yaml:"topics"`
}

var ErrInvalidCatalog = errors.New("invalid catalog")

// LoadTopics parses the embedded lifestyle catalog.
func LoadTopics() (*Catalog, error) { return Load(topicsYAML) }

// LoadRegions parses the embedded anatomical-region catalog.
func LoadRegions() (*Catalog, error) { return Load(regionsYAML) }

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(f.Topics) == 0 {
		return nil, fmt.Errorf("%w: %s: no topics", ErrInvalidCatalog, f.Name)
	}

	c := &Catalog{name: f.Name, topics: f.Topics, byKey: make(map[string]*Topic, len(f.Topics))}
	for _, t := range f.Topics {
		if t.Fallback.Diagnosis == "" {
			t.Fallback = f.DefaultOutcome
		}
		if err := validateTopic(t); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, f.Name, err)
		}
		if _, dup := c.byKey[t.Key]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate key %q", ErrInvalidCatalog, f.Name, t.Key)
		}
		c.byKey[t.Key] = t
	}

	fb, ok := c.byKey[f.FallbackKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s: fallback topic %q not defined", ErrInvalidCatalog, f.Name, f.FallbackKey)
	}
	fb.fallback = true
	c.fallback = fb
	return c, nil
}

func validateTopic(t *Topic) error {
	switch {
	case t.Key == "":
		return errors.New("topic without key")
	case len(t.Questions) == 0:
		return fmt.Errorf("topic %q has no questions", t.Key)
	case t.RequiredAnswers < 1 || t.RequiredAnswers > len(t.Questions):
		return fmt.Errorf("topic %q: required_answers %d outside [1,%d]", t.Key, t.RequiredAnswers, len(t.Questions))
	case !t.Fallback.Tier.Valid() || t.Fallback.Diagnosis == "":
		return fmt.Errorf("topic %q has no usable fallback outcome", t.Key)
	}
	for i, r := range t.Rules {
		if len(r.Match) == 0 {
			return fmt.Errorf("topic %q rule %d has no match clauses", t.Key, i)
		}
		if !r.Tier.Valid() {
			return fmt.Errorf("topic %q rule %d: unknown tier %q", t.Key, i, r.Tier)
		}
	}
	return nil
}

func (c *Catalog) Name() string { return c.name }

// Topics returns the topics in precedence order.
func (c *Catalog) Topics() []*Topic { return c.topics }

func (c *Catalog) Fallback() *Topic { return c.fallback }

func (c *Catalog) Lookup(key string) (*Topic, bool) {
	t, ok := c.byKey[key]
	return t, ok
}

// Resolve returns the first topic, in file order, whose keywords occur in
// text. It never returns nil: unmatched text gets the fallback topic.
func (c *Catalog) Resolve(text string) *Topic {
	folded := textnorm.Fold(text)
	for _, t := range c.topics {
		if t.fallback {
			continue
		}
		if textnorm.ContainsAny(folded, t.Keywords) {
			return t
		}
	}
	return c.fallback
}

// Match returns the first rule that is satisfied by text, i.e. at least 60%
// of its clauses are hit.
func (t *Topic) Match(text string) (Rule, bool) {
	folded := textnorm.Fold(text)
	for _, r := range t.Rules {
		hit, total := r.score(folded)
		if hit*5 >= total*3 {
			return r, true
		}
	}
	return Rule{}, false
}

// FullMatch returns the first rule whose every clause is hit by text.
func (t *Topic) FullMatch(text string) (Rule, bool) {
	folded := textnorm.Fold(text)
	for _, r := range t.Rules {
		if hit, total := r.score(folded); hit == total {
			return r, true
		}
	}
	return Rule{}, false
}

func (r Rule) score(folded string) (hit, total int) {
	for _, clause := range r.Match {
		if textnorm.ContainsAny(folded, clause) {
			hit++
		}
	}
	return hit, len(r.Match)
}

// RedFlagsIn returns the red flags present in text. A flag is present when
// all of its significant words occur and none of them is negated.
func (t *Topic) RedFlagsIn(text string) []string {
	folded := textnorm.Fold(text)
	var found []string
	for _, flag := range t.RedFlags {
		kws := significantWords(flag)
		if len(kws) == 0 {
			continue
		}
		all := true
		for _, kw := range kws {
			if !textnorm.ContainsAffirmed(folded, kw) {
				all = false
				break
			}
		}
		if all {
			found = append(found, flag)
		}
	}
	return found
}

var stopwords = map[string]struct{}{
	"para": {}, "como": {}, "mais": {}, "muito": {}, "que": {}, "with": {}, "after": {}, "from": {},
	"that": {}, "your": {}, "when": {}, "into": {}, "apos": {}, "sobre": {}, "quando": {},
}

func significantWords(phrase string) []string {
	var out []string
	for _, w := range strings.Fields(textnorm.Fold(phrase)) {
		if len([]rune(w)) < 4 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out = append(out, w)
	}
	return out
}
