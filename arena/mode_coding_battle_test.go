package arena

import (
	"context"
	"testing"
	"time"

	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/judge"
	"github.com/stretchr/testify/suite"
)

// countingJudge is a judge.Judge that counts calls and returns preset replies
// in order.
type countingJudge struct {
	calls    int
	verdicts []judge.Verdict
	fails    []error
}

func (j *countingJudge) Judge(_ context.Context, _ judge.Request) (judge.Verdict, error) {
	call := j.calls
	j.calls++
	if call < len(j.fails) && j.fails[call] != nil {
		return judge.Verdict{}, j.fails[call]
	}
	return j.verdicts[call], nil
}

func transientJudgeError() error {
	return errors.Error{
		Code:    errors.ErrCommunication,
		Kind:    errors.KindJudgeUnavailable,
		Message: "judge gone fishing",
	}
}

type codingBattleModeTestSuite struct {
	suite.Suite
	testCases []string
}

func (suite *codingBattleModeTestSuite) SetupTest() {
	suite.testCases = []string{"banana", "apple", "cherry"}
}

func (suite *codingBattleModeTestSuite) TestTimeLimitOutOfRange() {
	_, err := newCodingBattle(10*time.Minute, suite.testCases, &judge.StaticJudge{})
	suite.Require().NotNil(err, "creation should fail")
	suite.Assert().True(errors.Is(err, errors.KindInvalidMatchConfig), "error should have correct kind")
	_, err = newCodingBattle(2*time.Hour, suite.testCases, &judge.StaticJudge{})
	suite.Require().NotNil(err, "creation should fail")
}

func (suite *codingBattleModeTestSuite) TestNoTestCases() {
	_, err := newCodingBattle(30*time.Minute, nil, &judge.StaticJudge{})
	suite.Require().NotNil(err, "creation should fail")
	suite.Assert().True(errors.Is(err, errors.KindInvalidMatchConfig), "error should have correct kind")
}

func (suite *codingBattleModeTestSuite) TestValidate() {
	mode, err := newCodingBattle(30*time.Minute, suite.testCases, &judge.StaticJudge{})
	suite.Require().Nilf(err, "creation should not fail but got: %s", errors.Prettify(err))
	err = mode.Validate(mode.InitialProgress(), Submission{Language: "go", Code: "package main"})
	suite.Assert().Nilf(err, "valid submission should pass but got: %s", errors.Prettify(err))
	err = mode.Validate(mode.InitialProgress(), Submission{Language: "go"})
	suite.Assert().NotNil(err, "submission without code should fail")
	err = mode.Validate(mode.InitialProgress(), Submission{Code: "package main"})
	suite.Assert().NotNil(err, "submission without language should fail")
}

func (suite *codingBattleModeTestSuite) TestEvaluateRetriesOnce() {
	matchJudge := &countingJudge{
		fails:    []error{transientJudgeError(), nil},
		verdicts: []judge.Verdict{{}, {Passed: 2, Total: 3}},
	}
	mode, err := newCodingBattle(30*time.Minute, suite.testCases, matchJudge)
	suite.Require().Nilf(err, "creation should not fail but got: %s", errors.Prettify(err))
	evaluation, err := mode.Evaluate(context.Background(), Submission{Language: "go", Code: "slight"})
	suite.Require().Nilf(err, "evaluate should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(2, matchJudge.calls, "judge should be called twice")
	suite.Assert().Equal(2, evaluation.TestCasesPassed, "passed test cases should match")
}

func (suite *codingBattleModeTestSuite) TestEvaluateGivesUpAfterRetry() {
	matchJudge := &countingJudge{
		fails: []error{transientJudgeError(), transientJudgeError()},
	}
	mode, err := newCodingBattle(30*time.Minute, suite.testCases, matchJudge)
	suite.Require().Nilf(err, "creation should not fail but got: %s", errors.Prettify(err))
	_, err = mode.Evaluate(context.Background(), Submission{Language: "go", Code: "slight"})
	suite.Require().NotNil(err, "evaluate should fail")
	suite.Assert().Equal(2, matchJudge.calls, "judge should be called exactly twice")
	suite.Assert().True(errors.Is(err, errors.KindJudgeUnavailable), "error should stay recoverable")
}

func (suite *codingBattleModeTestSuite) TestApplyKeepsBestVerdict() {
	mode, err := newCodingBattle(30*time.Minute, suite.testCases, &judge.StaticJudge{})
	suite.Require().Nilf(err, "creation should not fail but got: %s", errors.Prettify(err))
	progress := mode.InitialProgress()
	progress = mode.Apply(progress, Evaluation{TestCasesPassed: 2, TotalTestCases: 3})
	suite.Assert().Equal(2.0, progress.Score(), "score should match passed test cases")
	progress = mode.Apply(progress, Evaluation{TestCasesPassed: 1, TotalTestCases: 3})
	suite.Assert().Equal(2.0, progress.Score(), "worse verdict should not degrade progress")
}

func (suite *codingBattleModeTestSuite) TestIsWinning() {
	mode, err := newCodingBattle(30*time.Minute, suite.testCases, &judge.StaticJudge{})
	suite.Require().Nilf(err, "creation should not fail but got: %s", errors.Prettify(err))
	progress := mode.InitialProgress()
	suite.Assert().False(mode.IsWinning(progress), "fresh progress should not win")
	progress = mode.Apply(progress, Evaluation{TestCasesPassed: 3, TotalTestCases: 3})
	suite.Assert().True(mode.IsWinning(progress), "all test cases passed should win")
}

func (suite *codingBattleModeTestSuite) TestResolveExpiry() {
	mode, err := newCodingBattle(30*time.Minute, suite.testCases, &judge.StaticJudge{})
	suite.Require().Nilf(err, "creation should not fail but got: %s", errors.Prettify(err))
	ahead := mode.Apply(mode.InitialProgress(), Evaluation{TestCasesPassed: 2, TotalTestCases: 3})
	behind := mode.Apply(mode.InitialProgress(), Evaluation{TestCasesPassed: 1, TotalTestCases: 3})
	suite.Assert().Equal(OutcomeSlotA, mode.ResolveExpiry(ahead, behind), "more passed test cases should win")
	suite.Assert().Equal(OutcomeSlotB, mode.ResolveExpiry(behind, ahead), "more passed test cases should win")
	suite.Assert().Equal(OutcomeDraw, mode.ResolveExpiry(ahead, ahead), "equal progress should draw")
	suite.Assert().Equal(OutcomeDraw, mode.ResolveExpiry(mode.InitialProgress(), mode.InitialProgress()),
		"no progress on both sides should draw")
}

func TestCodingBattleMode(t *testing.T) {
	suite.Run(t, new(codingBattleModeTestSuite))
}
