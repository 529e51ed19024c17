// Package flow tracks each user's position in the fixed prompt sequence that
// gates document uploads: start command, subscription region, then the two
// exclusion questions. Transitions are a pure function of the current state
// and the normalized input, so a given input token can only ever mean one
// thing at a time.
package flow

import (
	"strings"
	"time"
)

// State is a position in the linear prompt sequence.
type State string

const (
	StateInitial           State = "initial"
	StateAwaitRegion       State = "await_region"
	StateAwaitBibliography State = "await_bibliography"
	StateAwaitQuotes       State = "await_quotes"
	// StateReady accepts document uploads and stays ready afterwards, so a
	// user can submit several documents without redoing the sequence.
	StateReady State = "ready_for_document"
)

// Answer keys recorded while walking the sequence.
const (
	AnswerExcludeBibliography = "exclude_bibliography"
	AnswerExcludeQuotes       = "exclude_quotes"
)

// Answer is one recorded yes/no choice. Answers are kept in the order they
// were asked and are never overwritten for the lifetime of the session.
type Answer struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// Session is the per-user conversational state.
type Session struct {
	State     State     `json:"state"`
	Answers   []Answer  `json:"answers"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession returns the implicit default session for a first interaction.
func NewSession() Session {
	return Session{State: StateInitial, UpdatedAt: time.Now().UTC()}
}

// Answer returns the recorded value for key.
func (s Session) Answer(key string) (bool, bool) {
	for _, a := range s.Answers {
		if a.Key == key {
			return a.Value, true
		}
	}
	return false, false
}

func (s Session) withAnswer(key string, value bool) Session {
	if _, ok := s.Answer(key); ok {
		return s
	}
	answers := make([]Answer, len(s.Answers), len(s.Answers)+1)
	copy(answers, s.Answers)
	s.Answers = append(answers, Answer{Key: key, Value: value})
	return s
}

// Prompt identifies the reply the bot should send after processing an input.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptRegion
	PromptBibliography
	PromptQuotes
	PromptReady
	PromptGuidance
	PromptHelp
)

// Result is the outcome of feeding one input to the machine.
type Result struct {
	Session  Session
	Advanced bool
	Prompt   Prompt
}

const startCommand = "/start"

var regionTokens = map[string]struct{}{
	"\U0001F30D turnitin intl": {},
	"turnitin intl":            {},
}

// Normalize lower-cases and trims an inbound text the way every dispatch
// decision expects it.
func Normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Advance applies one input to the session and returns the new session plus
// the prompt to reply with. It never mutates its argument; unrecognized
// inputs leave the state unchanged and ask the user to follow the sequence.
func Advance(s Session, input string) Result {
	text := Normalize(input)
	now := time.Now().UTC()

	if text == "/help" || text == "help" {
		return Result{Session: s, Prompt: PromptHelp}
	}

	switch s.State {
	case "", StateInitial:
		if text == startCommand {
			s.State = StateAwaitRegion
			s.UpdatedAt = now
			return Result{Session: s, Advanced: true, Prompt: PromptRegion}
		}
	case StateAwaitRegion:
		if _, ok := regionTokens[text]; ok {
			s.State = StateAwaitBibliography
			s.UpdatedAt = now
			return Result{Session: s, Advanced: true, Prompt: PromptBibliography}
		}
	case StateAwaitBibliography:
		if yes, ok := parseYesNo(text); ok {
			s = s.withAnswer(AnswerExcludeBibliography, yes)
			s.State = StateAwaitQuotes
			s.UpdatedAt = now
			return Result{Session: s, Advanced: true, Prompt: PromptQuotes}
		}
	case StateAwaitQuotes:
		if yes, ok := parseYesNo(text); ok {
			s = s.withAnswer(AnswerExcludeQuotes, yes)
			s.State = StateReady
			s.UpdatedAt = now
			return Result{Session: s, Advanced: true, Prompt: PromptReady}
		}
	}

	return Result{Session: s, Prompt: PromptGuidance}
}

func parseYesNo(text string) (bool, bool) {
	switch text {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	return false, false
}
