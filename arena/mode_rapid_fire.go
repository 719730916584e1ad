package arena

import (
	"context"
	"time"

	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/messages"
)

const (
	// rapidFireTimeLimit is the fixed time limit for rapid-fire matches.
	rapidFireTimeLimit = 60 * time.Second
	// rapidFireQuestionCount is the fixed number of questions per match.
	rapidFireQuestionCount = 10
	// rapidFireCountdownInterval is the cadence for countdown broadcasts.
	rapidFireCountdownInterval = 10 * time.Second
	// rapidFireCorrectScore is the score for a correct answer.
	rapidFireCorrectScore = 1
	// rapidFireWrongScore is the score for a wrong answer.
	rapidFireWrongScore = -0.5
)

// rapidFireProgress is the Progress for rapid-fire slots.
type rapidFireProgress struct {
	// Answered holds per question index whether it was answered.
	Answered []bool `json:"answered"`
	// Correct holds per question index whether the answer was correct. Only
	// meaningful where Answered is set.
	Correct []bool `json:"correct"`
}

func (progress rapidFireProgress) Score() float64 {
	score := 0.0
	for question, answered := range progress.Answered {
		if !answered {
			continue
		}
		if progress.Correct[question] {
			score += rapidFireCorrectScore
		} else {
			score += rapidFireWrongScore
		}
	}
	return score
}

// rapidFire is the Mode for messages.GameModeRapidFire. Ten multiple-choice
// questions in a fixed 60-second window, answers are compared against the
// stored answer key, the raw score decides.
type rapidFire struct {
	answerKey []string
}

func newRapidFire(answerKey []string) (*rapidFire, error) {
	if len(answerKey) != rapidFireQuestionCount {
		return nil, errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidMatchConfig,
			Message: "rapid-fire answer key with wrong question count",
			Details: errors.Details{
				"questions": len(answerKey),
				"expected":  rapidFireQuestionCount,
			},
		}
	}
	for question, option := range answerKey {
		if option == "" {
			return nil, errors.Error{
				Code:    errors.ErrBadRequest,
				Kind:    errors.KindInvalidMatchConfig,
				Message: "rapid-fire answer key with empty option",
				Details: errors.Details{"question": question},
			}
		}
	}
	return &rapidFire{answerKey: answerKey}, nil
}

func (mode *rapidFire) GameMode() messages.GameMode {
	return messages.GameModeRapidFire
}

func (mode *rapidFire) TimeLimit() time.Duration {
	return rapidFireTimeLimit
}

func (mode *rapidFire) CountdownInterval() time.Duration {
	return rapidFireCountdownInterval
}

func (mode *rapidFire) InitialProgress() Progress {
	return rapidFireProgress{
		Answered: make([]bool, rapidFireQuestionCount),
		Correct:  make([]bool, rapidFireQuestionCount),
	}
}

func (mode *rapidFire) Validate(progress Progress, submission Submission) error {
	if submission.Question < 0 || submission.Question >= rapidFireQuestionCount {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidAnswer,
			Message: "rapid-fire answer for unknown question",
			Details: errors.Details{"question": submission.Question},
		}
	}
	if submission.SelectedOption == "" {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidAnswer,
			Message: "rapid-fire answer without selected option",
			Details: errors.Details{"question": submission.Question},
		}
	}
	if progress.(rapidFireProgress).Answered[submission.Question] {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidAnswer,
			Message: "rapid-fire question already answered",
			Details: errors.Details{"question": submission.Question},
		}
	}
	return nil
}

// Evaluate compares the selected option against the answer key.
func (mode *rapidFire) Evaluate(_ context.Context, submission Submission) (Evaluation, error) {
	return Evaluation{
		Question: submission.Question,
		Correct:  submission.SelectedOption == mode.answerKey[submission.Question],
	}, nil
}

func (mode *rapidFire) Apply(progress Progress, evaluation Evaluation) Progress {
	current := progress.(rapidFireProgress)
	answered := make([]bool, rapidFireQuestionCount)
	correct := make([]bool, rapidFireQuestionCount)
	copy(answered, current.Answered)
	copy(correct, current.Correct)
	answered[evaluation.Question] = true
	correct[evaluation.Question] = evaluation.Correct
	return rapidFireProgress{
		Answered: answered,
		Correct:  correct,
	}
}

// IsWinning always reports false. Rapid-fire has no early win condition, a
// high score never ends the match before all questions are answered.
func (mode *rapidFire) IsWinning(_ Progress) bool {
	return false
}

func (mode *rapidFire) IsComplete(progress Progress) bool {
	for _, answered := range progress.(rapidFireProgress).Answered {
		if !answered {
			return false
		}
	}
	return true
}

// ResolveExpiry resolves by raw score. Equal scores are a draw.
func (mode *rapidFire) ResolveExpiry(a Progress, b Progress) Outcome {
	scoreA := a.Score()
	scoreB := b.Score()
	switch {
	case scoreA > scoreB:
		return OutcomeSlotA
	case scoreB > scoreA:
		return OutcomeSlotB
	default:
		return OutcomeDraw
	}
}
