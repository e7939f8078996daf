package profile

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	nameRuneLimit     = 50
	locationRuneLimit = 30
)

var (
	agePattern       = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(years?|yrs?)?\b`)
	childPattern     = regexp.MustCompile(`(\w+)[-\s](\d+)`)
	childListPattern = regexp.MustCompile(`^\s*[A-Za-z]+-\d{1,2}(\s*,\s*[A-Za-z]+-\d{1,2})*\s*$`)

	childKeywords     = []string{"child", "son", "daughter"}
	conditionKeywords = []string{"diabetes", "malaria", "asthma"}
)

// Extract reads one free-text intake reply and returns current with any
// still-unset fields filled in. Every rule runs against the same reply, so one
// short answer can fill several fields at once.
func Extract(message string, current Context) Context {
	found := Context{}
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(message)

	if current.Name == "" && utf8.RuneCountInString(trimmed) < nameRuneLimit {
		found.Name = trimmed
	}

	if current.Age == 0 {
		if match := agePattern.FindStringSubmatch(message); match != nil {
			if age, err := strconv.Atoi(match[1]); err == nil {
				found.Age = age
			}
		}
	}

	if current.Children == nil && mentionsChildren(message, lower) {
		found.Children = parseChildren(message)
	}

	if current.Conditions == "" && containsAny(lower, conditionKeywords) {
		found.Conditions = trimmed
	}

	if current.Location == "" && utf8.RuneCountInString(lower) < locationRuneLimit {
		found.Location = trimmed
	}

	return Merge(current, found)
}

func mentionsChildren(message, lower string) bool {
	return containsAny(lower, childKeywords) || childListPattern.MatchString(message)
}

func parseChildren(message string) []Child {
	matches := childPattern.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return nil
	}
	children := make([]Child, 0, len(matches))
	for _, match := range matches {
		age, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		children = append(children, Child{Name: match[1], Age: age})
	}
	if len(children) == 0 {
		return nil
	}
	return children
}

func containsAny(value string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(value, needle) {
			return true
		}
	}
	return false
}
