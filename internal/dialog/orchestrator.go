// Package dialog routes each user turn to the right flow and keeps the
// conversation history, durable in sqlite with a small in-memory window
// per session.
package dialog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aidehq/aide/internal/compose"
	"github.com/aidehq/aide/internal/core"
	"github.com/aidehq/aide/internal/gcal"
	"github.com/aidehq/aide/internal/gmail"
	"github.com/aidehq/aide/internal/llm"
	"github.com/aidehq/aide/internal/logging"
	"github.com/aidehq/aide/internal/nlu"
	"github.com/aidehq/aide/internal/scheduling"
	"github.com/aidehq/aide/internal/store"
)

const (
	defaultHistoryWindow = 10
	defaultIdleExpiry    = time.Hour
)

const farewellMessage = "Talk soon! I'll be here when you need me."
const chatFallback = "I'm having trouble thinking straight right now. Mind trying that again in a moment?"

// session is the per-conversation state. The durable log is the source of
// truth; window is a cache of its tail for marker recovery and chat
// context.
type session struct {
	mu       sync.Mutex
	window   []core.Turn
	mail     *compose.Flow
	schedule *scheduling.Flow
	lastSeen time.Time
}

// Options wires an orchestrator.
type Options struct {
	Gateway  llm.Gateway
	Calendar gcal.Service
	Mail     gmail.Service
	Store    *store.ConversationStore

	HistoryWindow   int
	MailTimeout     time.Duration
	ScheduleTimeout time.Duration
	IdleExpiry      time.Duration
}

// Orchestrator owns all sessions and the shared analyzers behind them.
type Orchestrator struct {
	gateway  llm.Gateway
	calendar gcal.Service
	mail     gmail.Service
	history  *store.ConversationStore

	analyzer   *scheduling.Analyzer
	style      *compose.StyleAnalyzer
	classifier *nlu.Classifier
	extractor  *nlu.Extractor

	historyWindow   int
	mailTimeout     time.Duration
	scheduleTimeout time.Duration
	idleExpiry      time.Duration

	mu       sync.Mutex
	sessions map[string]*session

	log *logging.Logger
}

// New creates an orchestrator. The analyzers and their caches are shared
// across sessions; flows are per session.
func New(opts Options) *Orchestrator {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = defaultHistoryWindow
	}
	if opts.IdleExpiry <= 0 {
		opts.IdleExpiry = defaultIdleExpiry
	}
	return &Orchestrator{
		gateway:         opts.Gateway,
		calendar:        opts.Calendar,
		mail:            opts.Mail,
		history:         opts.Store,
		analyzer:        scheduling.NewAnalyzer(opts.Gateway, opts.Calendar),
		style:           compose.NewStyleAnalyzer(opts.Gateway, opts.Mail),
		classifier:      nlu.NewClassifier(opts.Gateway),
		extractor:       nlu.NewExtractor(opts.Gateway),
		historyWindow:   opts.HistoryWindow,
		mailTimeout:     opts.MailTimeout,
		scheduleTimeout: opts.ScheduleTimeout,
		idleExpiry:      opts.IdleExpiry,
		sessions:        make(map[string]*session),
		log:             logging.WithField("component", "dialog"),
	}
}

// Close releases the shared caches.
func (o *Orchestrator) Close() {
	o.analyzer.Close()
	o.style.Close()
}

// HandleTurn processes one user message and returns the assistant's reply.
// Every exchange is appended to the durable log.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, userID, text string) (string, error) {
	if sessionID == "" || text == "" {
		return "", core.ErrInvalidInput
	}

	s := o.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	reply := o.dispatch(ctx, s, text)
	answer, marker := resolve(reply)

	s.window = append(s.window, core.Turn{Role: core.RoleUser, Content: text})
	s.window = append(s.window, core.Turn{Role: core.RoleAssistant, Content: answer})
	if marker != "" {
		s.window = append(s.window, core.Turn{Role: core.RoleSystem, Content: marker})
	}
	if over := len(s.window) - o.historyWindow; over > 0 {
		s.window = s.window[over:]
	}

	if err := o.history.AppendExchange(sessionID, userID, text, answer); err != nil {
		o.log.Error("persist exchange failed: %v", err)
	}
	if marker != "" {
		if err := o.history.AppendMessage(sessionID, core.RoleSystem, marker); err != nil {
			o.log.Error("persist marker failed: %v", err)
		}
	}

	return answer, nil
}

// dispatch picks the handler for one turn. Order matters: a pending marker
// wins, then a live flow, then fresh classification.
func (o *Orchestrator) dispatch(ctx context.Context, s *session, text string) core.Reply {
	if len(s.window) > 0 {
		newest := s.window[len(s.window)-1]
		if newest.Role == core.RoleSystem {
			if m, ok := decodeConfirmation(newest.Content); ok {
				return s.schedule.HandleConfirmation(ctx, m.PendingID, text)
			}
			if m, ok := decodeSuggestion(newest.Content); ok {
				s.schedule.RestoreSuggestions(m.Title, m.Duration, m.Attendees, m.Slots)
				return s.schedule.HandleSelection(ctx, text, m.Slots)
			}
		}
	}

	if s.mail.Active() {
		return s.mail.HandleTurn(ctx, text)
	}
	if s.schedule.Active() {
		return s.schedule.HandleTurn(ctx, text)
	}

	intent := o.classifier.Classify(ctx, text)
	fields := o.extractor.Extract(ctx, text, intent, s.mail.Active())

	switch intent {
	case core.IntentCalendar:
		return s.schedule.Activate(ctx, fields)
	case core.IntentMail:
		return s.mail.Activate(ctx, fields)
	case core.IntentResearch:
		return o.research(ctx, text)
	case core.IntentExit:
		return core.Plain{Text: farewellMessage}
	default:
		return o.chat(ctx, s, text)
	}
}

func (o *Orchestrator) research(ctx context.Context, text string) core.Reply {
	prompt := fmt.Sprintf(`Answer the question below as a careful researcher. Name the kinds of sources your answer rests on, and say plainly when you are unsure.

Question: %s`, text)

	answer, err := o.gateway.Generate(ctx, prompt)
	if err != nil {
		o.log.Warn("research turn failed: %v", err)
		return core.Plain{Text: chatFallback}
	}
	return core.Plain{Text: answer}
}

func (o *Orchestrator) chat(ctx context.Context, s *session, text string) core.Reply {
	answer, err := o.gateway.GenerateChat(ctx, s.window, text)
	if err != nil {
		o.log.Warn("chat turn failed: %v", err)
		return core.Plain{Text: chatFallback}
	}
	return core.Plain{Text: answer}
}

// resolve flattens a reply to its display text plus the marker (if any)
// to record as the newest window entry.
func resolve(reply core.Reply) (answer, marker string) {
	switch r := reply.(type) {
	case core.Plain:
		return r.Text, ""
	case core.NeedsChoice:
		return r.Text, encodeSuggestion(suggestionMarker{
			Title:     r.EventTitle,
			Duration:  r.Duration,
			Attendees: r.Attendees,
			Slots:     r.Suggestions,
		})
	case core.NeedsConfirmation:
		return r.Text, encodeConfirmation(confirmationMarker{
			PendingID: r.PendingID,
			EventName: r.EventName,
		})
	default:
		return "", ""
	}
}

// session returns the state for sessionID, rebuilding the window from the
// durable log for sessions this process has not seen. Idle sessions are
// swept on the way in.
func (o *Orchestrator) session(sessionID string) *session {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, s := range o.sessions {
		if id != sessionID && time.Since(s.lastSeen) > o.idleExpiry {
			delete(o.sessions, id)
		}
	}

	if s, ok := o.sessions[sessionID]; ok {
		return s
	}

	s := &session{
		mail:     compose.NewFlow(o.style, o.mail, o.gateway, o.mailTimeout),
		schedule: scheduling.NewFlow(o.analyzer, o.calendar, o.scheduleTimeout),
		lastSeen: time.Now(),
	}
	if stored, err := o.history.RecentMessages(sessionID, o.historyWindow); err != nil {
		o.log.Warn("window rebuild failed for %s: %v", sessionID, err)
	} else {
		for _, m := range stored {
			s.window = append(s.window, core.Turn{Role: m.Role, Content: m.Content})
		}
	}
	o.sessions[sessionID] = s
	return s
}
