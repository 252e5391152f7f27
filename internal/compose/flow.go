package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gmail"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
	"github.com/aidehq/aide/internal/nlu"
)

type stage string

const (
	stageInactive            stage = "inactive"
	stageCollectingRecipient stage = "collecting_recipient"
	stageCollectingPurpose   stage = "collecting_purpose"
	stageCollectingContext   stage = "collecting_context"
	stageConfirming          stage = "confirming"
	stageEditing             stage = "editing"
)

// DefaultTimeout is how long an idle mail flow survives, measured from flow
// start.
const DefaultTimeout = 15 * time.Minute

const recoveryMessage = "Something went wrong with that email, so I've discarded the draft. Please start again."

var emailToken = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// vagueReference flags purposes that lean on unresolved pronouns or
// references a recipient could not be expected to know.
var vagueReference = regexp.MustCompile(`(?i)\b(he|she|they|him|her|them)\b|\bthe (plan|meeting|project|document|proposal|event|call)\b|\bthat (thing|issue|matter)\b`)

// mailDraft is the email being assembled across turns.
type mailDraft struct {
	recipient string
	purpose   string
	subject   string
	body      string
}

// Flow is the mail composition state machine for one session.
type Flow struct {
	style   *StyleAnalyzer
	mail    gmail.Service
	gateway llm.Gateway
	timeout time.Duration
	now     func() time.Time
	log     *logging.Logger

	active    bool
	stage     stage
	startedAt time.Time
	data      mailDraft
}

// NewFlow creates an inactive mail composition flow.
func NewFlow(style *StyleAnalyzer, mail gmail.Service, gateway llm.Gateway, timeout time.Duration) *Flow {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Flow{
		style:   style,
		mail:    mail,
		gateway: gateway,
		timeout: timeout,
		now:     time.Now,
		stage:   stageInactive,
		log:     logging.WithField("component", "compose"),
	}
}

// Active reports whether a composition dialogue is in progress. The
// extractor suppresses mail extraction while this is true.
func (f *Flow) Active() bool {
	return f.active
}

func (f *Flow) reset() {
	f.active = false
	f.stage = stageInactive
	f.data = mailDraft{}
}

func (f *Flow) timedOut() bool {
	return f.active && f.now().Sub(f.startedAt) > f.timeout
}

func (f *Flow) guard(reply *core.Reply) {
	if r := recover(); r != nil {
		f.log.Error("compose stage panicked: %v", r)
		f.reset()
		*reply = core.Plain{Text: recoveryMessage}
	}
}

// Activate starts the flow. A recipient already present in the triggering
// message skips straight to purpose collection.
func (f *Flow) Activate(ctx context.Context, fields nlu.Entities) (reply core.Reply) {
	defer f.guard(&reply)

	f.active = true
	f.startedAt = f.now()
	f.data = mailDraft{recipient: fields.Recipient}

	if f.data.recipient != "" {
		f.stage = stageCollectingPurpose
		return core.Plain{Text: fmt.Sprintf("Got it — an email to %s. What should it say?", f.data.recipient)}
	}

	f.stage = stageCollectingRecipient
	return core.Plain{Text: "Sure, I can draft that. Who's it for? (email address)"}
}

// HandleTurn advances the flow with the next user input.
func (f *Flow) HandleTurn(ctx context.Context, input string) (reply core.Reply) {
	defer f.guard(&reply)

	if !f.active {
		return core.Plain{Text: "We're not working on an email right now."}
	}
	if f.timedOut() {
		f.reset()
		return core.Plain{Text: "That email draft sat unfinished for a while, so I've discarded it. Just ask again if you still need it."}
	}

	switch f.stage {
	case stageCollectingRecipient:
		return f.handleRecipient(input)
	case stageCollectingPurpose:
		return f.handlePurpose(ctx, input)
	case stageCollectingContext:
		return f.handleContext(ctx, input)
	case stageConfirming:
		return f.handleConfirmation(ctx, input)
	case stageEditing:
		return f.handleEditing(input)
	default:
		f.reset()
		return core.Plain{Text: recoveryMessage}
	}
}

func (f *Flow) handleRecipient(input string) core.Reply {
	address := emailToken.FindString(input)
	if address == "" {
		// Re-prompt without a state change
		return core.Plain{Text: "I need a valid email address for the recipient, like name@example.com."}
	}
	f.data.recipient = address
	f.stage = stageCollectingPurpose
	return core.Plain{Text: fmt.Sprintf("Thanks. What should the email to %s say?", address)}
}

func (f *Flow) handlePurpose(ctx context.Context, input string) core.Reply {
	f.data.purpose = strings.TrimSpace(input)
	if f.data.purpose == "" {
		return core.Plain{Text: "Tell me what the email should be about."}
	}

	if question, incomplete := f.checkContext(ctx, f.data.purpose); incomplete {
		f.stage = stageCollectingContext
		return core.Plain{Text: question}
	}
	return f.generate(ctx)
}

func (f *Flow) handleContext(ctx context.Context, input string) core.Reply {
	// Clarification extends the purpose rather than replacing it
	f.data.purpose = f.data.purpose + " " + strings.TrimSpace(input)
	return f.generate(ctx)
}

// checkContext decides whether the purpose is self-contained enough to
// draft from. The gateway gives a verdict; the vague-reference pattern is
// the fallback.
func (f *Flow) checkContext(ctx context.Context, purpose string) (question string, incomplete bool) {
	prompt := fmt.Sprintf(`Someone wants to send an email with this purpose: %q

Would the recipient understand it without more background? Watch for unresolved pronouns ("he", "they") and bare references ("the plan", "the meeting").

Respond with ONLY a JSON object, no explanation:
{"complete": true or false, "question": "a clarifying question to ask, if incomplete"}`, purpose)

	response, err := f.gateway.Generate(ctx, prompt)
	if err == nil {
		if span := llm.ExtractJSONObject(response); span != "" {
			var verdict struct {
				Complete bool   `json:"complete"`
				Question string `json:"question"`
			}
			if json.Unmarshal([]byte(span), &verdict) == nil {
				if verdict.Complete {
					return "", false
				}
				if verdict.Question == "" {
					verdict.Question = "Could you give me a bit more detail so the email makes sense on its own?"
				}
				return verdict.Question, true
			}
		}
	}

	if vagueReference.MatchString(purpose) {
		return "Quick check — who or what are you referring to there? A little context will make the email clearer.", true
	}
	return "", false
}

// generate runs style analysis and drafting. On failure the flow backs up
// to purpose collection; it must never be left stuck mid-generation.
func (f *Flow) generate(ctx context.Context) core.Reply {
	profile := f.style.AnalyzeEmailContext(ctx, f.data.recipient)

	draft, err := f.style.GenerateDraft(ctx, f.data.recipient, f.data.purpose, profile)
	if err != nil {
		f.log.Warn("draft generation failed: %v", err)
		f.stage = stageCollectingPurpose
		return core.Plain{Text: "I couldn't put that draft together. Could you restate what the email should say?"}
	}

	f.data.subject = draft.Subject
	f.data.body = draft.Body
	f.stage = stageConfirming

	return core.Plain{Text: fmt.Sprintf(
		"Here's the draft for %s:\n\nSubject: %s\n\n%s\n\nShould I send it? (yes/no)",
		f.data.recipient, f.data.subject, f.data.body)}
}

// handleConfirmation uses substring matching, unlike the scheduling flow's
// exact match. Yes wins when both appear.
func (f *Flow) handleConfirmation(ctx context.Context, input string) core.Reply {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "yes"):
		return f.send(ctx)
	case strings.Contains(lower, "no"):
		f.stage = stageEditing
		return core.Plain{Text: "No problem. Do you want to edit the content, change the recipient, or cancel?"}
	default:
		return core.Plain{Text: "Should I send it? Please answer yes or no."}
	}
}

func (f *Flow) handleEditing(input string) core.Reply {
	lower := strings.ToLower(input)
	switch {
	case containsAny(lower, "content", "message", "rewrite", "edit", "body"):
		f.stage = stageCollectingPurpose
		return core.Plain{Text: "Okay, what should the email say instead?"}
	case containsAny(lower, "recipient", "address", "someone else"):
		f.data.recipient = ""
		f.stage = stageCollectingRecipient
		return core.Plain{Text: "Who should it go to instead? (email address)"}
	case strings.Contains(lower, "cancel"):
		f.reset()
		return core.Plain{Text: "Okay, I've discarded the draft."}
	default:
		return core.Plain{Text: "You can edit the content, change the recipient, or cancel."}
	}
}

func (f *Flow) send(ctx context.Context) core.Reply {
	if f.data.recipient == "" || f.data.body == "" {
		f.reset()
		return core.Plain{Text: recoveryMessage}
	}

	result, err := f.mail.Send(ctx, f.data.recipient, f.data.subject, f.data.body)
	if err != nil {
		f.log.Warn("send failed: %v", err)
		f.reset()
		return core.Plain{Text: "I couldn't send the email just now. Please try again in a moment."}
	}

	recipient := f.data.recipient
	f.reset()
	f.log.Info("mail sent id=%s", result.ID)
	return core.Plain{Text: fmt.Sprintf("Sent! Your email to %s is on its way.", recipient)}
}
