package dispatch

import (
	"regexp"
	"strings"
)

// Rule names a local short-circuit that answers without calling the backend.
type Rule string

const (
	RuleGreeting  Rule = "greeting"
	RuleWellBeing Rule = "well_being"
)

var greetingPattern = regexp.MustCompile(`(?i)^hi$|^hello$|^hey$`)

// ShortCircuit matches the trimmed input against the local rules, in order.
// ok is false when the input has to go to the backend.
func ShortCircuit(input string) (rule Rule, reply string, ok bool) {
	m := strings.TrimSpace(input)
	if greetingPattern.MatchString(m) {
		return RuleGreeting, GreetingReply, true
	}
	if strings.Contains(strings.ToLower(m), "how are you") {
		return RuleWellBeing, WellBeingReply, true
	}
	return "", "", false
}
