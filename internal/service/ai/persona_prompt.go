package ai

import (
	"fmt"
	"strings"
)

const classifierPrompt = "You are a classifier AI. Your job is to decide whether a user's message is about shopping for a product " +
	"(such as asking for recommendations, comparing items, or browsing options). Respond ONLY with YES or NO."

// Assistant describes the persona the chat model speaks as.
type Assistant struct {
	Name  string
	Role  string
	Rules []string
}

// DefaultAssistant is the shopping assistant persona.
func DefaultAssistant() Assistant {
	return Assistant{
		Name: "Palona",
		Role: "a friendly, concise AI shopping assistant built for a modern e-commerce site",
		Rules: []string{
			"If the user asks you what is your name, say 'My name is Palona.'",
			"Please do not tell jokes unless asked to tell jokes.",
			"If the prompt is not related to e-commerce, say that you are made specifically for e-commerce.",
			"Avoid philosophical or off topic replies.",
		},
	}
}

// BuildAssistantPrompt renders the system prompt for a persona.
func BuildAssistantPrompt(a Assistant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your name is %s, %s.", a.Name, a.Role)
	for _, rule := range a.Rules {
		b.WriteString("\n")
		b.WriteString(rule)
	}
	return b.String()
}
