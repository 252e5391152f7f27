// Package nlu turns free text into an intent and intent-specific fields.
// Every operation is a chain of strategies tried in order: the completion
// gateway first, a deterministic heuristic when it fails or returns
// something unusable.
package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
)

// intentPriority is the containment-check order. Chat is the default, not a
// matched category.
var intentPriority = []core.Intent{
	core.IntentResearch,
	core.IntentCalendar,
	core.IntentMail,
	core.IntentExit,
}

// intentKeywords drives the deterministic fallback classifier.
var intentKeywords = map[core.Intent][]string{
	core.IntentResearch: {"research", "search for", "look up", "find out", "what is", "who is", "tell me about"},
	core.IntentCalendar: {"schedule", "meeting", "calendar", "appointment", "book a", "remind me"},
	core.IntentMail:     {"email", "mail", "compose", "write to", "send a message"},
	core.IntentExit:     {"exit", "quit", "goodbye", "bye"},
}

// Classifier determines the intent of a turn.
type Classifier struct {
	gateway    llm.Gateway
	strategies []classifyStrategy
}

type classifyStrategy func(ctx context.Context, text string) (core.Intent, bool)

// NewClassifier creates a classifier backed by the given gateway.
func NewClassifier(gateway llm.Gateway) *Classifier {
	c := &Classifier{gateway: gateway}
	c.strategies = []classifyStrategy{
		c.classifyViaGateway,
		classifyViaKeywords,
	}
	return c
}

// Classify returns the intent for text, defaulting to chat.
func (c *Classifier) Classify(ctx context.Context, text string) core.Intent {
	for _, strategy := range c.strategies {
		if intent, ok := strategy(ctx, text); ok {
			return intent
		}
	}
	return core.IntentChat
}

func (c *Classifier) classifyViaGateway(ctx context.Context, text string) (core.Intent, bool) {
	prompt := fmt.Sprintf(`Classify the user's message into exactly one category.

Categories:
- research: looking for information, answers, or explanations
- calendar: scheduling, meetings, appointments, availability
- mail: composing, sending, or asking about email
- exit: ending the conversation
- chat: anything else

Respond with only the category name.

Message: %s`, text)

	response, err := c.gateway.Generate(ctx, prompt)
	if err != nil {
		logging.WithField("component", "classifier").Debug("gateway classify failed: %v", err)
		return "", false
	}

	lower := strings.ToLower(response)
	for _, intent := range intentPriority {
		if strings.Contains(lower, string(intent)) {
			return intent, true
		}
	}
	if strings.Contains(lower, "chat") {
		return core.IntentChat, true
	}
	return "", false
}

func classifyViaKeywords(_ context.Context, text string) (core.Intent, bool) {
	lower := strings.ToLower(text)
	for _, intent := range intentPriority {
		for _, keyword := range intentKeywords[intent] {
			if strings.Contains(lower, keyword) {
				return intent, true
			}
		}
	}
	return "", false
}
