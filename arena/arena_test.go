package arena

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/judge"
	"github.com/lefinal/arena-server/messages"
	"github.com/stretchr/testify/suite"
)

const waitTimeout = 3 * time.Second

const (
	userAda   messages.UserID = "ada"
	userGrace messages.UserID = "grace"
)

var rapidFireAnswerKey = []string{"a", "b", "c", "d", "a", "b", "c", "d", "a", "b"}

type arenaTestSuite struct {
	suite.Suite
	clock    clockwork.FakeClock
	notifier *MockNotifier
	users    *MockUserStore
	results  *MockResultSink
	judge    *judge.MockJudge
	arena    *Arena
	ctx      context.Context
	cancel   context.CancelFunc
}

func (suite *arenaTestSuite) SetupTest() {
	suite.clock = clockwork.NewFakeClock()
	suite.notifier = NewMockNotifier()
	suite.users = &MockUserStore{
		Ratings: map[messages.UserID]int{
			userAda:   1200,
			userGrace: 1200,
		},
		DefaultRating: 1200,
	}
	suite.results = NewMockResultSink()
	suite.judge = judge.NewMockJudge()
	suite.arena = New(suite.clock, suite.notifier, suite.users, suite.results, suite.judge, Config{})
	suite.ctx, suite.cancel = context.WithCancel(context.Background())
	go func() {
		_ = suite.arena.Run(suite.ctx)
	}()
	<-suite.arena.running
}

func (suite *arenaTestSuite) TearDownTest() {
	suite.cancel()
}

// awaitMessage reads broadcast events until one with the given type occurs.
func (suite *arenaTestSuite) awaitMessage(messageType messages.MessageType) messages.MessageContainer {
	timeout := time.After(waitTimeout)
	for {
		select {
		case <-timeout:
			suite.Require().Failf("timeout", "timeout while waiting for message %s", messageType)
			return messages.MessageContainer{}
		case container := <-suite.notifier.Notified:
			if container.MessageType == messageType {
				return container
			}
		}
	}
}

// expectNoMessage makes sure that no broadcast event with the given type
// occurs within a short window.
func (suite *arenaTestSuite) expectNoMessage(messageType messages.MessageType) {
	timeout := time.After(200 * time.Millisecond)
	for {
		select {
		case <-timeout:
			return
		case container := <-suite.notifier.Notified:
			suite.Require().NotEqual(messageType, container.MessageType,
				"should not receive message with forbidden type")
		}
	}
}

// feedVerdict answers the next judge request with the given verdict.
func (suite *arenaTestSuite) feedVerdict(verdict judge.Verdict) {
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while waiting for judge request")
	case <-suite.judge.Requests:
	}
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while feeding judge verdict")
	case suite.judge.Verdicts <- verdict:
	}
}

func (suite *arenaTestSuite) createCodingBattle() messages.MatchID {
	matchID, err := suite.arena.CreateMatch(context.Background(),
		[2]messages.UserID{userAda, userGrace}, ModeConfig{
			GameMode:  messages.GameModeCodingBattle,
			TimeLimit: 30 * time.Minute,
			TestCases: []string{"one", "two", "three"},
		})
	suite.Require().Nilf(err, "creating match should not fail but got: %s", errors.Prettify(err))
	return matchID
}

func (suite *arenaTestSuite) createRapidFire() messages.MatchID {
	matchID, err := suite.arena.CreateMatch(context.Background(),
		[2]messages.UserID{userAda, userGrace}, ModeConfig{
			GameMode:  messages.GameModeRapidFire,
			AnswerKey: rapidFireAnswerKey,
		})
	suite.Require().Nilf(err, "creating match should not fail but got: %s", errors.Prettify(err))
	return matchID
}

// joinBoth joins both paired users and awaits the match start.
func (suite *arenaTestSuite) joinBoth(matchID messages.MatchID) {
	slot, err := suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "first join should not fail but got: %s", errors.Prettify(err))
	suite.Require().Equal(0, slot, "first paired user should take slot 0")
	slot, err = suite.arena.Join(suite.ctx, matchID, userGrace)
	suite.Require().Nilf(err, "second join should not fail but got: %s", errors.Prettify(err))
	suite.Require().Equal(1, slot, "second paired user should take slot 1")
	suite.awaitMessage(messages.MessageTypeMatchStarted)
}

func (suite *arenaTestSuite) TestCreateMatchBadConfig() {
	_, err := suite.arena.CreateMatch(context.Background(),
		[2]messages.UserID{userAda, userAda}, ModeConfig{
			GameMode:  messages.GameModeCodingBattle,
			TimeLimit: 30 * time.Minute,
			TestCases: []string{"one"},
		})
	suite.Require().NotNil(err, "creating match with same user twice should fail")
	suite.Assert().True(errors.Is(err, errors.KindInvalidMatchConfig), "error should have correct kind")
	_, err = suite.arena.CreateMatch(context.Background(),
		[2]messages.UserID{userAda, userGrace}, ModeConfig{GameMode: "quidditch"})
	suite.Require().NotNil(err, "creating match with unknown mode should fail")
	suite.Assert().True(errors.Is(err, errors.KindUnknownGameMode), "error should have correct kind")
}

func (suite *arenaTestSuite) TestJoinUnknownMatch() {
	_, err := suite.arena.Join(suite.ctx, "does-not-exist", userAda)
	suite.Require().NotNil(err, "join should fail")
	suite.Assert().True(errors.Is(err, errors.KindUnknownMatch), "error should have correct kind")
}

func (suite *arenaTestSuite) TestJoinNotPaired() {
	matchID := suite.createCodingBattle()
	_, err := suite.arena.Join(suite.ctx, matchID, "charles")
	suite.Require().NotNil(err, "join of unpaired user should fail")
	suite.Assert().True(errors.Is(err, errors.KindPlayerNotPaired), "error should have correct kind")
}

func (suite *arenaTestSuite) TestJoinTwice() {
	matchID := suite.createCodingBattle()
	_, err := suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "first join should not fail but got: %s", errors.Prettify(err))
	_, err = suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().NotNil(err, "second join of same user should fail")
	suite.Assert().True(errors.Is(err, errors.KindPlayerAlreadyJoined), "error should have correct kind")
}

func (suite *arenaTestSuite) TestSecondJoinStartsMatch() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	records := suite.notifier.Records()
	suite.Require().Len(records, 3, "should have broadcast two joins and the start")
	for i, record := range records {
		suite.Assert().Equal(uint64(i+1), record.Seq, "broadcast sequence numbers should be gapless")
	}
	var started messages.MessageMatchStarted
	err := messages.ParsePayload(records[2], &started)
	suite.Require().Nilf(err, "parsing start payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(messages.GameModeCodingBattle, started.GameMode, "game mode should match")
	suite.Assert().Equal(30*60, started.TimeLimitSec, "time limit should match")
	suite.Assert().Len(started.Slots, 2, "start should contain both slots")
}

func (suite *arenaTestSuite) TestJoinAfterStart() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	_, err := suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().NotNil(err, "join after start should fail")
	suite.Assert().True(errors.Is(err, errors.KindMatchNotPending), "error should have correct kind")
}

func (suite *arenaTestSuite) TestSubmitBeforeStart() {
	matchID := suite.createCodingBattle()
	_, err := suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "join should not fail but got: %s", errors.Prettify(err))
	err = suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().NotNil(err, "submit before start should fail")
	suite.Assert().True(errors.Is(err, errors.KindMatchNotActive), "error should have correct kind")
}

func (suite *arenaTestSuite) TestSubmitAndWin() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 3, Total: 3})
	var submissionResult messages.MessageSubmissionResult
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeSubmissionResult), &submissionResult)
	suite.Require().Nilf(err, "parsing result payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().True(submissionResult.Evaluated, "submission should be evaluated")
	suite.Assert().Equal(3, submissionResult.TestCasesPassed, "passed test cases should match")
	var finished messages.MessageMatchFinished
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(messages.MatchStateFinished, finished.State, "match should be finished")
	suite.Assert().Equal(string(TerminationReasonCompleted), finished.Reason, "reason should be completed")
	suite.Assert().Equal(userAda, finished.Winner, "winner should be the submitter")
	suite.Assert().Equal(16, finished.RatingDeltas[userAda], "winner delta should match")
	suite.Assert().Equal(-16, finished.RatingDeltas[userGrace], "loser delta should match")
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while waiting for saved result")
	case result := <-suite.results.Saved:
		suite.Assert().Equal(matchID, result.MatchID, "result match id should match")
		suite.Assert().Equal(TerminationReasonCompleted, result.Reason, "result reason should match")
		suite.Assert().Equal(userAda, result.Winner, "result winner should match")
		suite.Assert().Equal(16, result.Participants[0].RatingDelta, "result delta should match")
	}
}

func (suite *arenaTestSuite) TestWinBeatsExpiry() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 3, Total: 3})
	suite.awaitMessage(messages.MessageTypeMatchFinished)
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while waiting for saved result")
	case result := <-suite.results.Saved:
		suite.Assert().Equal(TerminationReasonCompleted, result.Reason, "reason should be completed")
	}
	// A racing expiry must not produce a second outcome.
	suite.clock.Advance(30 * time.Minute)
	select {
	case <-time.After(200 * time.Millisecond):
	case <-suite.results.Saved:
		suite.Require().Fail("second result", "expiry after finish should not produce a second result")
	}
	suite.expectNoMessage(messages.MessageTypeMatchFinished)
}

func (suite *arenaTestSuite) TestStaleSequence() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 1, Total: 3})
	suite.awaitMessage(messages.MessageTypeSubmissionResult)
	err = suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().NotNil(err, "reused sequence number should be rejected")
	suite.Assert().True(errors.Is(err, errors.KindSequenceStale), "error should have correct kind")
	err = suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 0, Language: "go", Code: "slight",
	})
	suite.Require().NotNil(err, "lower sequence number should be rejected")
}

func (suite *arenaTestSuite) TestSlotLockedWhileInFlight() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	err = suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 2, Language: "go", Code: "slight",
	})
	suite.Require().NotNil(err, "submit while slot locked should fail")
	suite.Assert().True(errors.Is(err, errors.KindSlotLocked), "error should have correct kind")
	suite.feedVerdict(judge.Verdict{Passed: 1, Total: 3})
	suite.awaitMessage(messages.MessageTypeSubmissionResult)
}

func (suite *arenaTestSuite) TestRecoverableJudgeFailure() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	// Fail the call and the retry.
	for i := 0; i < 2; i++ {
		<-suite.judge.Requests
		suite.judge.Fail <- transientJudgeError()
	}
	var submissionResult messages.MessageSubmissionResult
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeSubmissionResult), &submissionResult)
	suite.Require().Nilf(err, "parsing result payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().False(submissionResult.Evaluated, "submission should not be evaluated")
	suite.Require().NotNil(submissionResult.Error, "result should carry the recoverable error")
	// The slot lock is released and the same sequence number may be reused.
	err = suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "resubmit should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 1, Total: 3})
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeSubmissionResult), &submissionResult)
	suite.Require().Nilf(err, "parsing result payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().True(submissionResult.Evaluated, "resubmission should be evaluated")
	suite.Assert().Equal(1, submissionResult.Sequence, "sequence number should match")
}

func (suite *arenaTestSuite) TestSimultaneousSubmissions() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit of slot 0 should not fail but got: %s", errors.Prettify(err))
	err = suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userGrace, Sequence: 1, Language: "go", Code: "garden",
	})
	suite.Require().Nilf(err, "submit of slot 1 should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 1, Total: 3})
	suite.feedVerdict(judge.Verdict{Passed: 1, Total: 3})
	evaluatedFor := make(map[messages.UserID]int)
	for i := 0; i < 2; i++ {
		var submissionResult messages.MessageSubmissionResult
		err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeSubmissionResult), &submissionResult)
		suite.Require().Nilf(err, "parsing result payload should not fail but got: %s", errors.Prettify(err))
		suite.Assert().True(submissionResult.Evaluated, "submission should be evaluated")
		evaluatedFor[submissionResult.User]++
	}
	suite.Assert().Equal(map[messages.UserID]int{userAda: 1, userGrace: 1}, evaluatedFor,
		"each slot should be evaluated exactly once")
	suite.expectNoMessage(messages.MessageTypeSubmissionResult)
}

func (suite *arenaTestSuite) TestExpiryDraw() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	suite.clock.BlockUntil(3)
	suite.clock.Advance(30 * time.Minute)
	var finished messages.MessageMatchFinished
	err := messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(string(TerminationReasonTimedOut), finished.Reason, "reason should be timed-out")
	suite.Assert().True(finished.Draw, "equal progress should draw")
	suite.Assert().Empty(finished.Winner, "draw should have no winner")
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while waiting for saved result")
	case result := <-suite.results.Saved:
		suite.Assert().True(result.Draw, "result should be a draw")
		suite.Assert().Zero(result.Participants[0].RatingDelta, "draw between equals should not change ratings")
	}
}

func (suite *arenaTestSuite) TestExpiryHigherProgressWins() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userGrace, Sequence: 1, Language: "go", Code: "garden",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 2, Total: 3})
	suite.awaitMessage(messages.MessageTypeProgressUpdate)
	suite.clock.BlockUntil(3)
	suite.clock.Advance(30 * time.Minute)
	var finished messages.MessageMatchFinished
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(string(TerminationReasonTimedOut), finished.Reason, "reason should be timed-out")
	suite.Assert().Equal(userGrace, finished.Winner, "strictly higher progress should win")
}

func (suite *arenaTestSuite) TestLeavePendingAborts() {
	matchID := suite.createCodingBattle()
	_, err := suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "join should not fail but got: %s", errors.Prettify(err))
	err = suite.arena.Leave(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "leave should not fail but got: %s", errors.Prettify(err))
	var finished messages.MessageMatchFinished
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(messages.MatchStateAborted, finished.State, "match should be aborted")
	select {
	case <-time.After(200 * time.Millisecond):
	case <-suite.results.Saved:
		suite.Require().Fail("unexpected result", "aborted match should not produce a result")
	}
	_, err = suite.arena.Join(suite.ctx, matchID, userGrace)
	suite.Require().NotNil(err, "join of aborted match should fail")
	suite.Assert().True(errors.Is(err, errors.KindMatchNotPending), "error should have correct kind")
}

func (suite *arenaTestSuite) TestForfeitAfterGrace() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Leave(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "leave should not fail but got: %s", errors.Prettify(err))
	suite.awaitMessage(messages.MessageTypeProgressUpdate)
	suite.clock.BlockUntil(4)
	suite.clock.Advance(DefaultGracePeriod)
	var finished messages.MessageMatchFinished
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(string(TerminationReasonForfeit), finished.Reason, "reason should be forfeit")
	suite.Assert().Equal(userGrace, finished.Winner, "connected peer should win")
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while waiting for saved result")
	case result := <-suite.results.Saved:
		suite.Assert().Equal(TerminationReasonForfeit, result.Reason, "result reason should match")
		suite.Assert().Equal(userGrace, result.Winner, "result winner should match")
	}
}

func (suite *arenaTestSuite) TestReconnectCancelsGrace() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Leave(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "leave should not fail but got: %s", errors.Prettify(err))
	suite.awaitMessage(messages.MessageTypeProgressUpdate)
	slot, err := suite.arena.Join(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "rejoin should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(0, slot, "rejoin should restore the original slot")
	suite.awaitMessage(messages.MessageTypeProgressUpdate)
	suite.clock.BlockUntil(3)
	suite.clock.Advance(DefaultGracePeriod)
	suite.expectNoMessage(messages.MessageTypeMatchFinished)
	snapshot, err := suite.arena.Snapshot(suite.ctx, matchID)
	suite.Require().Nilf(err, "snapshot should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(messages.MatchStateActive, snapshot.State, "match should still be active")
}

func (suite *arenaTestSuite) TestBothDisconnectedAborts() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Leave(suite.ctx, matchID, userAda)
	suite.Require().Nilf(err, "first leave should not fail but got: %s", errors.Prettify(err))
	err = suite.arena.Leave(suite.ctx, matchID, userGrace)
	suite.Require().Nilf(err, "second leave should not fail but got: %s", errors.Prettify(err))
	var finished messages.MessageMatchFinished
	err = messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(messages.MatchStateAborted, finished.State, "match should be aborted")
	select {
	case <-time.After(200 * time.Millisecond):
	case <-suite.results.Saved:
		suite.Require().Fail("unexpected result", "aborted match should not produce a result")
	}
}

func (suite *arenaTestSuite) TestSnapshotForResync() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Submit(suite.ctx, matchID, Submission{
		User: userAda, Sequence: 1, Language: "go", Code: "slight",
	})
	suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
	suite.feedVerdict(judge.Verdict{Passed: 1, Total: 3})
	suite.awaitMessage(messages.MessageTypeProgressUpdate)
	snapshot, err := suite.arena.Snapshot(suite.ctx, matchID)
	suite.Require().Nilf(err, "snapshot should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(messages.MatchStateActive, snapshot.State, "snapshot state should match")
	suite.Assert().Len(snapshot.Slots, 2, "snapshot should contain both slots")
	records := suite.notifier.Records()
	suite.Assert().Equal(records[len(records)-1].Seq, snapshot.Seq,
		"snapshot should cover the last broadcast event")
	suite.Assert().Equal(30*60, snapshot.RemainingSec, "remaining time should match")
}

func (suite *arenaTestSuite) TestRapidFireFullCompletion() {
	matchID := suite.createRapidFire()
	suite.joinBoth(matchID)
	// Ada answers 7 correct and 3 wrong, Grace answers all wrong.
	for question := 0; question < 10; question++ {
		option := rapidFireAnswerKey[question]
		if question >= 7 {
			option = "x"
		}
		err := suite.arena.Submit(suite.ctx, matchID, Submission{
			User: userAda, Sequence: question + 1, Question: question, SelectedOption: option,
		})
		suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
		suite.awaitMessage(messages.MessageTypeSubmissionResult)
	}
	for question := 0; question < 10; question++ {
		err := suite.arena.Submit(suite.ctx, matchID, Submission{
			User: userGrace, Sequence: question + 1, Question: question, SelectedOption: "x",
		})
		suite.Require().Nilf(err, "submit should not fail but got: %s", errors.Prettify(err))
		suite.awaitMessage(messages.MessageTypeSubmissionResult)
	}
	var finished messages.MessageMatchFinished
	err := messages.ParsePayload(suite.awaitMessage(messages.MessageTypeMatchFinished), &finished)
	suite.Require().Nilf(err, "parsing finish payload should not fail but got: %s", errors.Prettify(err))
	suite.Assert().Equal(string(TerminationReasonCompleted), finished.Reason, "reason should be completed")
	suite.Assert().Equal(userAda, finished.Winner, "higher raw score should win")
	select {
	case <-time.After(waitTimeout):
		suite.Require().Fail("timeout", "timeout while waiting for saved result")
	case result := <-suite.results.Saved:
		suite.Assert().Equal(5.5, result.Participants[0].Score, "7 correct and 3 wrong should score 5.5")
		suite.Assert().Equal(-5.0, result.Participants[1].Score, "all wrong should score -5")
	}
}

func (suite *arenaTestSuite) TestLeaveByStranger() {
	matchID := suite.createCodingBattle()
	suite.joinBoth(matchID)
	err := suite.arena.Leave(suite.ctx, matchID, "charles")
	suite.Require().NotNil(err, "leave by stranger should fail")
	suite.Assert().True(errors.Is(err, errors.KindPlayerNotJoined), "error should have correct kind")
}

func TestArena(t *testing.T) {
	suite.Run(t, new(arenaTestSuite))
}
