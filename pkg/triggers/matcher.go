// Package triggers decides which flow an inbound message activates.
package triggers

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/dukex/chatflow/pkg/models"
)

// Input is the part of an inbound message triggers look at.
type Input struct {
	Text   string
	Event  string
	Intent string
}

// InputFromMessage extracts the trigger input of an inbound message.
func InputFromMessage(msg *models.InboundMessage) Input {
	event := msg.Event
	if event == "" {
		event = msg.QuickReplyPayload
	}

	return Input{Text: msg.Text, Event: event, Intent: msg.Intent}
}

// Matcher matches inbound messages against the global triggers of flows.
type Matcher struct {
	logger  *slog.Logger
	regexps sync.Map
}

// NewMatcher creates a new trigger matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{
		logger: logger.With("module", "trigger_matcher"),
	}
}

// Match returns the highest ranked active flow whose triggers match the input,
// or nil when none does.
func (m *Matcher) Match(input Input, flows []*models.FlowDefinition) *models.FlowDefinition {
	candidates := m.Candidates(input, flows)
	if len(candidates) == 0 {
		return nil
	}

	return candidates[0]
}

// MatchText matches plain message text.
func (m *Matcher) MatchText(text string, flows []*models.FlowDefinition) *models.FlowDefinition {
	return m.Match(Input{Text: text}, flows)
}

// Candidates returns every active flow matching the input, ranked by priority
// (highest first), then creation time and id (most recent first).
func (m *Matcher) Candidates(input Input, flows []*models.FlowDefinition) []*models.FlowDefinition {
	var candidates []*models.FlowDefinition

	for _, flow := range flows {
		if flow == nil || !flow.IsActive {
			continue
		}

		for _, trigger := range flow.GlobalTriggers {
			if trigger != nil && m.matchTrigger(trigger, input) {
				candidates = append(candidates, flow)

				break
			}
		}
	}

	Rank(candidates)

	m.logger.Debug("Completed trigger matching",
		"flows_count", len(flows),
		"matches_found", len(candidates))

	return candidates
}

// Select picks the flow to start given the ranked candidates and the flow
// currently running for the conversation (nil when none). It returns nil when
// the running flow keeps the conversation.
func Select(candidates []*models.FlowDefinition, running *models.FlowDefinition) *models.FlowDefinition {
	for _, candidate := range candidates {
		if Preempts(candidate, running) {
			return candidate
		}
	}

	return nil
}

// Preempts reports whether candidate may replace the running flow. Override
// flows replace running automations; otherwise only a strictly higher
// priority replaces the running flow.
func Preempts(candidate, running *models.FlowDefinition) bool {
	if running == nil {
		return true
	}

	if candidate.ID == running.ID {
		return false
	}

	if candidate.IsOverride() && !running.IsOverride() {
		return true
	}

	return candidate.Priority > running.Priority
}

// Rank sorts flows in place by priority desc, createdAt desc, id desc.
func Rank(flows []*models.FlowDefinition) {
	sort.SliceStable(flows, func(i, j int) bool {
		a, b := flows[i], flows[j]

		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}

		return a.ID > b.ID
	})
}

func (m *Matcher) matchTrigger(trigger *models.Trigger, input Input) bool {
	switch trigger.Type {
	case models.TriggerTypeKeyword:
		return MatchText(input.Text, trigger.Value, trigger.Mode(), trigger.CaseSensitive)
	case models.TriggerTypeIntent:
		return input.Intent != "" && MatchText(input.Intent, trigger.Value, trigger.Mode(), trigger.CaseSensitive)
	case models.TriggerTypeEvent:
		return input.Event != "" && MatchText(input.Event, trigger.Value, trigger.Mode(), trigger.CaseSensitive)
	case models.TriggerTypeRegex:
		re := m.compile(trigger.Value, trigger.CaseSensitive)

		return re != nil && re.MatchString(input.Text)
	default:
		m.logger.Warn("Unknown trigger type", "type", trigger.Type)

		return false
	}
}

func (m *Matcher) compile(pattern string, caseSensitive bool) *regexp.Regexp {
	key := pattern
	if !caseSensitive {
		key = "(?i)" + pattern
	}

	if cached, ok := m.regexps.Load(key); ok {
		return cached.(*regexp.Regexp)
	}

	re, err := regexp.Compile(key)
	if err != nil {
		m.logger.Warn("Invalid regex trigger", "pattern", pattern, "error", err)

		return nil
	}

	m.regexps.Store(key, re)

	return re
}

// MatchText compares text with value using the given mode. Comparison is
// case-folded unless caseSensitive is set.
func MatchText(text, value string, mode models.MatchMode, caseSensitive bool) bool {
	text = strings.TrimSpace(text)
	value = strings.TrimSpace(value)

	if value == "" {
		return false
	}

	if !caseSensitive {
		text = strings.ToLower(text)
		value = strings.ToLower(value)
	}

	switch mode {
	case models.MatchModeExact:
		return text == value
	case models.MatchModeStartsWith:
		return strings.HasPrefix(text, value)
	case models.MatchModeEndsWith:
		return strings.HasSuffix(text, value)
	case models.MatchModeContains:
		return strings.Contains(text, value)
	default:
		return false
	}
}
