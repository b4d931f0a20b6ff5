// Package match compiles line patterns that are anchored at the start of a
// line. Two engines are available: Go's RE2-based regexp (the default) and
// regexp2, a backtracking engine that accepts lookarounds and backreferences.
package match

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dlclark/regexp2"
)

// Engine names a regular expression implementation.
type Engine string

const (
	// RE2 uses the standard library regexp package. Matching runs in
	// linear time.
	RE2 Engine = "re2"
	// Regexp2 uses github.com/dlclark/regexp2 for patterns RE2 rejects.
	Regexp2 Engine = "regexp2"
)

// DefaultEngine is used when no engine is named.
const DefaultEngine = RE2

// Regexp2Timeout bounds a single regexp2 match attempt.
const Regexp2Timeout = time.Second

// Matcher reports whether a line starts with a match of its pattern.
type Matcher interface {
	// MatchPrefix returns the matched prefix at index 0 followed by the
	// capture groups. Unmatched optional groups are "".
	MatchPrefix(line string) ([]string, bool)
	// Names returns the group names indexed like the MatchPrefix result.
	// Unnamed groups are "".
	Names() []string
	// String returns the pattern as given to Compile.
	String() string
}

// ParseEngine validates an engine name. The empty string selects
// DefaultEngine.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case "":
		return DefaultEngine, nil
	case RE2, Regexp2:
		return Engine(s), nil
	}
	return "", fmt.Errorf("unknown regex engine %q (want %s or %s)", s, RE2, Regexp2)
}

// Compile compiles pattern with the given engine. The pattern is anchored
// at the start of the line but not at the end.
//
// The raw pattern is compiled on its own first so that an unbalanced group
// cannot close the anchoring wrapper and match mid-line.
func Compile(pattern string, engine Engine) (Matcher, error) {
	engine, err := ParseEngine(string(engine))
	if err != nil {
		return nil, err
	}
	switch engine {
	case Regexp2:
		if _, err := regexp2.Compile(pattern, regexp2.None); err != nil {
			return nil, err
		}
		re, err := regexp2.Compile(`\A(?:`+pattern+`)`, regexp2.None)
		if err != nil {
			return nil, err
		}
		re.MatchTimeout = Regexp2Timeout
		return &backtrackMatcher{re: re, pattern: pattern}, nil
	default:
		if _, err := regexp.Compile(pattern); err != nil {
			return nil, err
		}
		re, err := regexp.Compile(`^(?:` + pattern + `)`)
		if err != nil {
			return nil, err
		}
		return &re2Matcher{re: re, pattern: pattern}, nil
	}
}

type re2Matcher struct {
	re      *regexp.Regexp
	pattern string
}

func (m *re2Matcher) MatchPrefix(line string) ([]string, bool) {
	groups := m.re.FindStringSubmatch(line)
	if groups == nil {
		return nil, false
	}
	return groups, true
}

func (m *re2Matcher) Names() []string { return m.re.SubexpNames() }

func (m *re2Matcher) String() string { return m.pattern }

type backtrackMatcher struct {
	re      *regexp2.Regexp
	pattern string
}

// MatchPrefix treats a match timeout as no match.
func (m *backtrackMatcher) MatchPrefix(line string) ([]string, bool) {
	res, err := m.re.FindStringMatch(line)
	if err != nil || res == nil {
		return nil, false
	}
	groups := res.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out[i] = g.String()
		}
	}
	return out, true
}

func (m *backtrackMatcher) Names() []string {
	names := m.re.GetGroupNames()
	out := make([]string, len(names))
	for i, n := range names {
		// regexp2 names numbered groups by their index.
		if _, err := strconv.Atoi(n); err != nil {
			out[i] = n
		}
	}
	return out
}

func (m *backtrackMatcher) String() string { return m.pattern }
