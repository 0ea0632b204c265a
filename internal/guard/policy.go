package guard

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

//go:embed terms.yaml
var defaultTermsYAML []byte

type Group struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// Match is one forbidden term found in a text.
type Match struct {
	Term  string `json:"term"`
	Group string `json:"group"`
}

// Policy is an enumerated, case-insensitive forbidden term set.
type Policy struct {
	groups  []Group
	termMap map[string]string // lowercase term -> group
	forms   map[string]string // lowercase surface form -> term
	pattern *regexp.Regexp
}

func DefaultPolicy() *Policy {
	policy, err := ParsePolicy(defaultTermsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded term policy is invalid: %v", err))
	}
	return policy
}

// LoadPolicy reads a policy file, or returns the embedded policy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading policy file %s: %w", path, err)
	}
	return ParsePolicy(data)
}

func ParsePolicy(data []byte) (*Policy, error) {
	raw := struct {
		Groups []Group `yaml:"groups"`
	}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing policy: %w", err)
	}
	return NewPolicy(raw.Groups)
}

func NewPolicy(groups []Group) (*Policy, error) {
	termMap := make(map[string]string)
	for _, group := range groups {
		for _, term := range group.Terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				return nil, fmt.Errorf("policy group %q contains an empty term", group.Name)
			}
			termMap[term] = group.Name
		}
	}
	if len(termMap) == 0 {
		return nil, fmt.Errorf("policy must contain at least one term")
	}

	forms := make(map[string]string, 2*len(termMap))
	for term := range termMap {
		plural := pluralOf(term)
		// an explicitly listed form wins over a derived plural
		if _, listed := termMap[plural]; !listed {
			forms[plural] = term
		}
		forms[term] = term
	}

	alternatives := make([]string, 0, len(forms))
	for form := range forms {
		alternatives = append(alternatives, form)
	}
	// longest first so that alternation prefers the most specific form
	sort.Slice(alternatives, func(i, j int) bool {
		if len(alternatives[i]) == len(alternatives[j]) {
			return alternatives[i] < alternatives[j]
		}
		return len(alternatives[i]) > len(alternatives[j])
	})
	for i, form := range alternatives {
		alternatives[i] = regexp.QuoteMeta(form)
	}

	pattern, err := regexp.Compile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`)
	if err != nil {
		return nil, fmt.Errorf("error compiling policy: %w", err)
	}

	return &Policy{groups: groups, termMap: termMap, forms: forms, pattern: pattern}, nil
}

// pluralOf returns the regular English plural of term: "es" after a
// sibilant, "s" otherwise.
func pluralOf(term string) string {
	for _, suffix := range []string{"s", "x", "z", "ch", "sh"} {
		if strings.HasSuffix(term, suffix) {
			return term + "es"
		}
	}
	return term + "s"
}

// Match returns the distinct forbidden terms in text, in order of first
// appearance.
func (p *Policy) Match(text string) []Match {
	var matches []Match
	seen := make(map[string]bool)
	for _, sub := range p.pattern.FindAllStringSubmatch(text, -1) {
		term := p.forms[strings.ToLower(sub[1])]
		if seen[term] {
			continue
		}
		seen[term] = true
		matches = append(matches, Match{Term: term, Group: p.termMap[term]})
	}
	return matches
}

func (p *Policy) Violates(text string) bool {
	return p.pattern.MatchString(text)
}

func (p *Policy) Groups() []Group {
	return p.groups
}

func Terms(matches []Match) []string {
	terms := make([]string, len(matches))
	for i, m := range matches {
		terms[i] = m.Term
	}
	return terms
}

// Len is the number of distinct terms in the policy.
func (p *Policy) Len() int {
	return len(p.termMap)
}
