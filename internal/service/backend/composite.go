package backend

import "context"

// IntentClassifier decides whether a message asks for products.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, message string) (bool, error)
}

// Chatter produces a conversational reply.
type Chatter interface {
	Chat(ctx context.Context, message string) (string, error)
}

// Composite answers intent and chat questions in-process and forwards
// product and image searches to the remote backend.
type Composite struct {
	Backend
	classifier IntentClassifier
	chatter    Chatter
}

// WithLanguageModel overrides the remote intent and chat calls. Nil overrides
// keep the remote behavior.
func WithLanguageModel(remote Backend, classifier IntentClassifier, chatter Chatter) *Composite {
	return &Composite{Backend: remote, classifier: classifier, chatter: chatter}
}

func (c *Composite) ClassifyIntent(ctx context.Context, message string) (bool, error) {
	if c.classifier == nil {
		return c.Backend.ClassifyIntent(ctx, message)
	}
	return c.classifier.ClassifyIntent(ctx, message)
}

func (c *Composite) Chat(ctx context.Context, message string) (string, error) {
	if c.chatter == nil {
		return c.Backend.Chat(ctx, message)
	}
	return c.chatter.Chat(ctx, message)
}
