package app

import (
	"context"
	"testing"

	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/messages"
	"github.com/stretchr/testify/suite"
)

// recordedStateChange is one call to mockMatchStates.SetMatchState.
type recordedStateChange struct {
	matchID messages.MatchID
	state   messages.MatchState
}

// mockMatchStates records state changes.
type mockMatchStates struct {
	changes []recordedStateChange
}

func (mock *mockMatchStates) SetMatchState(_ context.Context, matchID messages.MatchID,
	state messages.MatchState) error {
	mock.changes = append(mock.changes, recordedStateChange{matchID: matchID, state: state})
	return nil
}

// matchStateRecorderTestSuite tests matchStateRecorder.
type matchStateRecorderTestSuite struct {
	suite.Suite
	states   *mockMatchStates
	recorder *matchStateRecorder
}

func (suite *matchStateRecorderTestSuite) SetupTest() {
	suite.states = &mockMatchStates{}
	suite.recorder = &matchStateRecorder{states: suite.states}
}

// notify composes a container for the given payload and feeds it to the
// recorder.
func (suite *matchStateRecorderTestSuite) notify(messageType messages.MessageType, payload interface{}) {
	container, err := messages.ComposeContainer(messageType, "pear", 1, payload)
	suite.Require().Nilf(err, "compose container should not fail but got: %s", errors.Prettify(err))
	suite.recorder.Notify("pear", container)
}

func (suite *matchStateRecorderTestSuite) TestRecordStart() {
	suite.notify(messages.MessageTypeMatchStarted, messages.MessageMatchStarted{
		GameMode: messages.GameModeCodingBattle,
	})
	suite.Require().Len(suite.states.changes, 1, "start should be recorded")
	suite.Equal(messages.MatchID("pear"), suite.states.changes[0].matchID, "should record for the right match")
	suite.Equal(messages.MatchStateActive, suite.states.changes[0].state, "started match should be active")
}

func (suite *matchStateRecorderTestSuite) TestRecordAbort() {
	suite.notify(messages.MessageTypeMatchFinished, messages.MessageMatchFinished{
		State:  messages.MatchStateAborted,
		Reason: "aborted",
	})
	suite.Require().Len(suite.states.changes, 1, "abort should be recorded")
	suite.Equal(messages.MatchStateAborted, suite.states.changes[0].state, "aborted match should be aborted")
}

func (suite *matchStateRecorderTestSuite) TestIgnoreRegularFinish() {
	// The result transaction already marks the match as finished.
	suite.notify(messages.MessageTypeMatchFinished, messages.MessageMatchFinished{
		State:  messages.MatchStateFinished,
		Reason: "completed",
		Winner: "ada",
	})
	suite.Empty(suite.states.changes, "regular finish should not be recorded twice")
}

func (suite *matchStateRecorderTestSuite) TestIgnoreOtherBroadcasts() {
	suite.notify(messages.MessageTypeCountdown, messages.MessageCountdown{RemainingSec: 30})
	suite.notify(messages.MessageTypeProgressUpdate, messages.MessageProgressUpdate{})
	suite.Empty(suite.states.changes, "non-lifecycle broadcasts should be ignored")
}

func TestMatchStateRecorder(t *testing.T) {
	suite.Run(t, new(matchStateRecorderTestSuite))
}
