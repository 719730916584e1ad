package arena

import (
	"context"
	"time"

	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/judge"
	"github.com/lefinal/arena-server/messages"
)

const (
	// codingBattleMinTimeLimit is the lower bound for coding-battle time limits.
	codingBattleMinTimeLimit = 30 * time.Minute
	// codingBattleMaxTimeLimit is the upper bound for coding-battle time limits.
	codingBattleMaxTimeLimit = 60 * time.Minute
	// codingBattleCountdownInterval is the cadence for countdown broadcasts.
	codingBattleCountdownInterval = 30 * time.Second
)

// codingBattleProgress is the Progress for coding-battle slots. It keeps the
// best verdict seen so far.
type codingBattleProgress struct {
	// TestCasesPassed is the highest number of passed test cases so far.
	TestCasesPassed int `json:"test_cases_passed"`
	// TotalTestCases is the total number of test cases of the problem.
	TotalTestCases int `json:"total_test_cases"`
}

func (progress codingBattleProgress) Score() float64 {
	return float64(progress.TestCasesPassed)
}

// codingBattle is the Mode for messages.GameModeCodingBattle. One algorithmic
// problem, submissions are evaluated by the judge collaborator, the first slot
// passing all test cases wins.
type codingBattle struct {
	timeLimit time.Duration
	testCases []string
	judge     judge.Judge
}

func newCodingBattle(timeLimit time.Duration, testCases []string, matchJudge judge.Judge) (*codingBattle, error) {
	if timeLimit < codingBattleMinTimeLimit || timeLimit > codingBattleMaxTimeLimit {
		return nil, errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidMatchConfig,
			Message: "coding-battle time limit out of range",
			Details: errors.Details{
				"timeLimit": timeLimit.String(),
				"min":       codingBattleMinTimeLimit.String(),
				"max":       codingBattleMaxTimeLimit.String(),
			},
		}
	}
	if len(testCases) == 0 {
		return nil, errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidMatchConfig,
			Message: "coding-battle match without test cases",
		}
	}
	if matchJudge == nil {
		return nil, errors.NewInternalError("coding-battle match without judge", nil)
	}
	return &codingBattle{
		timeLimit: timeLimit,
		testCases: testCases,
		judge:     matchJudge,
	}, nil
}

func (mode *codingBattle) GameMode() messages.GameMode {
	return messages.GameModeCodingBattle
}

func (mode *codingBattle) TimeLimit() time.Duration {
	return mode.timeLimit
}

func (mode *codingBattle) CountdownInterval() time.Duration {
	return codingBattleCountdownInterval
}

func (mode *codingBattle) InitialProgress() Progress {
	return codingBattleProgress{
		TestCasesPassed: 0,
		TotalTestCases:  len(mode.testCases),
	}
}

func (mode *codingBattle) Validate(_ Progress, submission Submission) error {
	if submission.Code == "" {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidAnswer,
			Message: "coding-battle submission without code",
		}
	}
	if submission.Language == "" {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidAnswer,
			Message: "coding-battle submission without language",
		}
	}
	return nil
}

// Evaluate delegates to the judge collaborator and retries exactly once when
// it cannot be reached.
func (mode *codingBattle) Evaluate(ctx context.Context, submission Submission) (Evaluation, error) {
	request := judge.Request{
		Language:  submission.Language,
		Code:      submission.Code,
		TestCases: mode.testCases,
	}
	verdict, err := mode.judge.Judge(ctx, request)
	if err != nil && errors.Is(err, errors.KindJudgeUnavailable) && ctx.Err() == nil {
		verdict, err = mode.judge.Judge(ctx, request)
	}
	if err != nil {
		return Evaluation{}, errors.Wrap(err, "evaluate coding-battle submission", nil)
	}
	return Evaluation{
		TestCasesPassed: verdict.Passed,
		TotalTestCases:  verdict.Total,
	}, nil
}

// Apply keeps the best verdict. A worse verdict never degrades the slot's
// progress record.
func (mode *codingBattle) Apply(progress Progress, evaluation Evaluation) Progress {
	current := progress.(codingBattleProgress)
	if evaluation.TestCasesPassed > current.TestCasesPassed {
		current.TestCasesPassed = evaluation.TestCasesPassed
	}
	return current
}

func (mode *codingBattle) IsWinning(progress Progress) bool {
	current := progress.(codingBattleProgress)
	return current.TotalTestCases > 0 && current.TestCasesPassed == current.TotalTestCases
}

// IsComplete always reports false. A coding-battle slot keeps submitting until
// an early win or expiry.
func (mode *codingBattle) IsComplete(_ Progress) bool {
	return false
}

// ResolveExpiry resolves by passed test cases. Strictly more passed wins,
// equal counts are a draw.
func (mode *codingBattle) ResolveExpiry(a Progress, b Progress) Outcome {
	passedA := a.(codingBattleProgress).TestCasesPassed
	passedB := b.(codingBattleProgress).TestCasesPassed
	switch {
	case passedA > passedB:
		return OutcomeSlotA
	case passedB > passedA:
		return OutcomeSlotB
	default:
		return OutcomeDraw
	}
}
