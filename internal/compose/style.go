// Package compose implements recipient style analysis and the mail
// composition flow.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/aidehq/aide/internal/cache"
	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gmail"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
	"github.com/aidehq/aide/internal/retry"
)

const (
	maxHistoryMessages = 15
	historyBatchSize   = 5
	maxCorpusBytes     = 8 * 1024
	profileTTL         = time.Hour
)

// StyleAnalyzer infers how to write to a recipient from prior
// correspondence, caching one profile per recipient.
type StyleAnalyzer struct {
	gateway  llm.Gateway
	mail     gmail.Service
	profiles *cache.Cache[core.StyleProfile]
	policy   retry.Policy
	log      *logging.Logger
}

// NewStyleAnalyzer creates a style analyzer.
func NewStyleAnalyzer(gateway llm.Gateway, mail gmail.Service) *StyleAnalyzer {
	return &StyleAnalyzer{
		gateway:  gateway,
		mail:     mail,
		profiles: cache.New[core.StyleProfile](cache.Options{DefaultTTL: profileTTL, MaxEntries: 256}),
		policy:   retry.Default,
		log:      logging.WithField("component", "compose"),
	}
}

// Close stops the profile cache sweep.
func (s *StyleAnalyzer) Close() {
	s.profiles.Stop()
}

// AnalyzeEmailContext returns the style profile for a recipient. Failures
// degrade in order: prior-correspondence inference, domain heuristic, stale
// cached profile, generic default. It never returns an error.
func (s *StyleAnalyzer) AnalyzeEmailContext(ctx context.Context, recipient string) core.StyleProfile {
	key := fmt.Sprintf("style:%s:%d", strings.ToLower(recipient), maxHistoryMessages)

	if profile, ok := s.profiles.Get(key); ok {
		return profile
	}

	corpus := s.fetchCorrespondence(ctx, recipient)
	if corpus == "" {
		profile := domainProfile(recipient)
		s.profiles.Set(key, profile)
		return profile
	}

	profile, err := s.inferProfile(ctx, recipient, corpus)
	if err != nil {
		s.log.Warn("style inference failed for %s: %v", recipient, err)
		if stale, ok := s.profiles.GetStale(key); ok {
			return stale
		}
		return defaultProfile()
	}

	s.profiles.Set(key, profile)
	return profile
}

// fetchCorrespondence pulls up to 15 prior messages to the recipient in
// batches of five, tolerating partial failures, and returns the
// concatenated plain-text bodies bounded to 8KB.
func (s *StyleAnalyzer) fetchCorrespondence(ctx context.Context, recipient string) string {
	var ids []string
	pageToken := ""
	for len(ids) < maxHistoryMessages {
		page, err := s.mail.ListMessages(ctx, "to:"+recipient, pageToken, historyBatchSize)
		if err != nil {
			s.log.Debug("list messages failed for %s: %v", recipient, err)
			break
		}
		for _, m := range page.Messages {
			ids = append(ids, m.ID)
			if len(ids) == maxHistoryMessages {
				break
			}
		}
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	var bodies []string
	total := 0
	for _, id := range ids {
		msg, err := s.mail.GetMessage(ctx, id)
		if err != nil || msg == nil || msg.Body == "" {
			continue
		}
		bodies = append(bodies, msg.Body)
		total += len(msg.Body)
		if total >= maxCorpusBytes {
			break
		}
	}
	if len(bodies) == 0 {
		return ""
	}

	corpus := strings.Join(bodies, "\n\n---\n\n")
	if len(corpus) > maxCorpusBytes {
		corpus = truncateRunes(corpus, maxCorpusBytes) + "\n[truncated]"
	}
	return corpus
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// inferProfile asks the gateway for a strict-JSON profile, retrying with
// backoff.
func (s *StyleAnalyzer) inferProfile(ctx context.Context, recipient, corpus string) (core.StyleProfile, error) {
	prompt := fmt.Sprintf(`Analyze these emails previously sent to %s and infer how the sender writes to them.

Respond with ONLY a JSON object, no explanation:
{
  "relationship": "colleague/friend/manager/client/etc",
  "tone": "formal/casual/warm/etc",
  "greeting": "typical greeting used",
  "closing": "typical sign-off used",
  "style": "short description of the writing style",
  "context": {
    "previous_topics": ["topics discussed"],
    "ongoing_context": "anything currently in progress",
    "typical_purpose": "what these emails are usually for",
    "common_terms": ["recurring terms"],
    "relationship_dynamics": "how the two relate",
    "inside_references": ["shared references, if any"],
    "upcoming_events": ["mentioned future events, if any"]
  }
}

Emails:
%s`, recipient, corpus)

	var profile core.StyleProfile
	err := s.policy.Do(ctx, func() error {
		response, err := s.gateway.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		span := llm.ExtractJSONObject(response)
		if span == "" {
			return core.ErrUnparsableResponse
		}
		return json.Unmarshal([]byte(span), &profile)
	})
	return profile, err
}

// Draft is a generated email ready for confirmation.
type Draft struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// GenerateDraft writes an email in the recipient's inferred style, retrying
// with backoff. Unlike profile inference this returns its error: the flow
// needs to know generation failed so it can back up a stage.
func (s *StyleAnalyzer) GenerateDraft(ctx context.Context, recipient, purpose string, profile core.StyleProfile) (Draft, error) {
	prompt := fmt.Sprintf(`Write an email to %s.

Purpose: %s

Match this style:
- Relationship: %s
- Tone: %s
- Greeting: %s
- Closing: %s
- Style notes: %s
- Background: %s

Write it the way a real person writes — natural, direct, no filler. Respond with ONLY a JSON object, no explanation:
{"subject": "the subject line", "body": "the full email body"}`,
		recipient, purpose,
		profile.Relationship, profile.Tone, profile.Greeting, profile.Closing,
		profile.Style, profile.Context.OngoingContext)

	var draft Draft
	err := s.policy.Do(ctx, func() error {
		response, err := s.gateway.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		span := llm.ExtractJSONObject(response)
		if span == "" {
			return core.ErrUnparsableResponse
		}
		if err := json.Unmarshal([]byte(span), &draft); err != nil {
			return err
		}
		if draft.Body == "" {
			return core.ErrEmptyResponse
		}
		return nil
	})
	if err != nil {
		return Draft{}, err
	}
	if draft.Subject == "" {
		draft.Subject = subjectFromPurpose(purpose)
	}
	return draft, nil
}

func subjectFromPurpose(purpose string) string {
	subject := truncateRunes(strings.TrimSpace(purpose), 60)
	if subject == "" {
		return "Hello"
	}
	first, size := utf8.DecodeRuneInString(subject)
	return string(unicode.ToUpper(first)) + subject[size:]
}

// domainProfile classifies the recipient's mail domain and returns a fixed
// profile for the category. Used when no prior correspondence exists.
func domainProfile(recipient string) core.StyleProfile {
	domain := ""
	if at := strings.LastIndex(recipient, "@"); at >= 0 {
		domain = strings.ToLower(recipient[at+1:])
	}

	switch {
	case containsAny(domain, "gmail.", "yahoo.", "hotmail.", "outlook.", "icloud.", "proton.", "aol."):
		return core.StyleProfile{
			Relationship: "personal contact",
			Tone:         "casual",
			Greeting:     "Hi",
			Closing:      "Cheers",
			Style:        "relaxed and friendly",
		}
	case containsAny(domain, ".edu", ".ac.", "university", "college"):
		return core.StyleProfile{
			Relationship: "academic contact",
			Tone:         "polite and precise",
			Greeting:     "Dear",
			Closing:      "Best regards",
			Style:        "courteous, well-structured",
		}
	case containsAny(domain, ".gov", ".mil"):
		return core.StyleProfile{
			Relationship: "official contact",
			Tone:         "formal",
			Greeting:     "Dear",
			Closing:      "Sincerely",
			Style:        "formal and to the point",
		}
	default:
		return core.StyleProfile{
			Relationship: "business contact",
			Tone:         "professional",
			Greeting:     "Hello",
			Closing:      "Best",
			Style:        "clear and professional",
		}
	}
}

func defaultProfile() core.StyleProfile {
	return core.StyleProfile{
		Relationship: "contact",
		Tone:         "friendly and professional",
		Greeting:     "Hello",
		Closing:      "Best",
		Style:        "clear, warm, concise",
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
