package domain

import (
	"regexp"
	"strings"
)

// PRType classifies a pull request by its title so the reviewer can focus
// the prompt (a bugfix review cares about edge cases, a docs review about
// accuracy, and so on).
type PRType struct {
	Name  string
	Focus string
}

var (
	PRTypeFeature     = PRType{Name: "Feature"}
	PRTypeBugfix      = PRType{Name: "Bug Fix", Focus: "critical bugs, error handling, edge cases"}
	PRTypeRefactor    = PRType{Name: "Refactor", Focus: "code structure, maintainability, design patterns"}
	PRTypeDocs        = PRType{Name: "Documentation", Focus: "documentation accuracy, clarity, completeness"}
	PRTypeTest        = PRType{Name: "Test", Focus: "test coverage, test quality, edge cases"}
	PRTypeChore       = PRType{Name: "Chore"}
	PRTypePerformance = PRType{Name: "Performance", Focus: "performance impact, resource usage, scalability"}
	PRTypeSecurity    = PRType{Name: "Security", Focus: "security vulnerabilities, data protection, authentication"}
	PRTypeUnknown     = PRType{Name: "Unknown"}
)

type prTypeRule struct {
	prType   PRType
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// Rules are evaluated in order; the first match wins. Conventional-commit
// prefixes take precedence over keyword matches.
var prTypeRules = []prTypeRule{
	{PRTypeSecurity, compileAll(`^(security|sec)(\(.*\))?:`, `\b(security|vulnerability)\b`)},
	{PRTypeBugfix, compileAll(`^(fix|bugfix)(\(.*\))?:`, `\b(fix|bug)\b`)},
	{PRTypeRefactor, compileAll(`^refactor(\(.*\))?:`, `\brefactor\b`)},
	{PRTypeDocs, compileAll(`^docs?(\(.*\))?:`, `\bdoc\b`)},
	{PRTypeTest, compileAll(`^test(\(.*\))?:`, `\btest\b`)},
	{PRTypePerformance, compileAll(`^perf(\(.*\))?:`, `\b(perf|optimize)\b`)},
	{PRTypeChore, compileAll(`^chore(\(.*\))?:`)},
	{PRTypeFeature, compileAll(`^(feat|feature)(\(.*\))?:`)},
}

// DetectPRType classifies a PR title. Blank titles are Unknown; titles
// that match nothing default to Feature.
func DetectPRType(title string) PRType {
	trimmed := strings.ToLower(strings.TrimSpace(title))
	if trimmed == "" {
		return PRTypeUnknown
	}
	for _, rule := range prTypeRules {
		for _, p := range rule.patterns {
			if p.MatchString(trimmed) {
				return rule.prType
			}
		}
	}
	return PRTypeFeature
}

// PRContext is the title-derived context passed to AI backends.
type PRContext struct {
	Type  PRType
	Title string
}

// NewPRContext builds a PRContext from a PR title.
func NewPRContext(title string) PRContext {
	return PRContext{Type: DetectPRType(title), Title: title}
}
