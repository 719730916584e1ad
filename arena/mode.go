package arena

import (
	"context"
	"time"

	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/judge"
	"github.com/lefinal/arena-server/messages"
)

// Progress is a mode-specific per-slot progress record. Implementations are
// immutable value types that marshal to JSON for broadcast events.
type Progress interface {
	// Score is the mode's scalar score for the progress record.
	Score() float64
}

// Outcome is the resolved outcome of a finished match.
type Outcome int

const (
	// OutcomeDraw is used when neither slot won.
	OutcomeDraw Outcome = -1
	// OutcomeSlotA is used when slot 0 won.
	OutcomeSlotA Outcome = 0
	// OutcomeSlotB is used when slot 1 won.
	OutcomeSlotB Outcome = 1
)

// Submission is a player submission as handed over by the transport layer.
type Submission struct {
	// User is the id of the submitting player.
	User messages.UserID
	// Sequence is the per-slot monotonic sequence number.
	Sequence int
	// Language is the programming language for coding-battle submissions.
	Language string
	// Code is the submitted code for coding-battle submissions.
	Code string
	// Question is the question index for rapid-fire submissions.
	Question int
	// SelectedOption is the chosen option id for rapid-fire submissions.
	SelectedOption string
}

// Evaluation is the result of evaluating a Submission.
type Evaluation struct {
	// TestCasesPassed is the number of passed test cases for coding-battle
	// submissions.
	TestCasesPassed int
	// TotalTestCases is the total number of test cases for coding-battle
	// submissions.
	TotalTestCases int
	// Question is the answered question index for rapid-fire submissions.
	Question int
	// Correct describes whether a rapid-fire answer was correct.
	Correct bool
}

// Mode is the strategy for a game mode. All methods except Evaluate are called
// from the match event loop and must not block. Evaluate is dispatched outside
// the loop and may call collaborators.
type Mode interface {
	// GameMode identifies the mode.
	GameMode() messages.GameMode
	// TimeLimit is the match time limit.
	TimeLimit() time.Duration
	// CountdownInterval is the cadence for countdown broadcasts.
	CountdownInterval() time.Duration
	// InitialProgress creates the progress record for a fresh slot.
	InitialProgress() Progress
	// Validate checks a submission against the slot's current progress before it
	// is accepted.
	Validate(progress Progress, submission Submission) error
	// Evaluate evaluates an accepted submission.
	Evaluate(ctx context.Context, submission Submission) (Evaluation, error)
	// Apply merges an Evaluation into the slot's progress record.
	Apply(progress Progress, evaluation Evaluation) Progress
	// IsWinning describes whether the progress record satisfies the mode's early
	// win condition.
	IsWinning(progress Progress) bool
	// IsComplete describes whether the slot has nothing left to submit.
	IsComplete(progress Progress) bool
	// ResolveExpiry resolves the outcome from both progress records when the
	// match ends without an early win.
	ResolveExpiry(a Progress, b Progress) Outcome
}

// ModeConfig holds the per-match parameters for building a Mode. Problem and
// question content is opaque to the server and handed over at match creation.
type ModeConfig struct {
	// GameMode selects the strategy.
	GameMode messages.GameMode
	// TimeLimit is the time limit for coding-battle matches.
	TimeLimit time.Duration
	// TestCases are the opaque test case references for coding-battle matches.
	TestCases []string
	// AnswerKey holds the correct option id per question for rapid-fire matches.
	AnswerKey []string
}

// modeFor builds the Mode for the given config.
func modeFor(config ModeConfig, matchJudge judge.Judge) (Mode, error) {
	switch config.GameMode {
	case messages.GameModeCodingBattle:
		return newCodingBattle(config.TimeLimit, config.TestCases, matchJudge)
	case messages.GameModeRapidFire:
		return newRapidFire(config.AnswerKey)
	default:
		return nil, errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindUnknownGameMode,
			Message: "unknown game mode",
			Details: errors.Details{"gameMode": config.GameMode},
		}
	}
}
