package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gobuffalo/nulls"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/event"
	"github.com/lefinal/arena-server/messages"
)

// topicMatchesCreated is where created matches are announced.
const topicMatchesCreated Topic = "arena/matches/created"

// topicForMatchEvents is where the sequenced broadcast events of a match are
// mirrored.
func topicForMatchEvents(matchID messages.MatchID) Topic {
	return Topic(fmt.Sprintf("arena/matches/%s/events", matchID))
}

// topicForMatchFinished is where the terminal transition of a match is
// announced.
func topicForMatchFinished(matchID messages.MatchID) Topic {
	return Topic(fmt.Sprintf("arena/matches/%s/finished", matchID))
}

// topicErrors is where mirroring failures are announced so that monitors know
// when the event stream is incomplete.
const topicErrors Topic = "arena/errors"

// MatchMonitor mirrors match lifecycle events to the MQTT portal for external
// read-only monitors.
type MatchMonitor struct {
	portal Portal
}

// NewMatchMonitor creates a MatchMonitor publishing via the given Portal.
func NewMatchMonitor(portal Portal) *MatchMonitor {
	return &MatchMonitor{portal: portal}
}

// MatchCreated announces a freshly created match.
func (monitor *MatchMonitor) MatchCreated(ctx context.Context, matchID messages.MatchID,
	gameMode messages.GameMode, users []messages.UserID) {
	monitor.portal.Publish(ctx, topicMatchesCreated, event.MatchCreatedEvent{
		MatchID:  matchID,
		GameMode: gameMode,
		Users:    users,
		Created:  time.Now(),
	})
}

// Notify mirrors the given broadcast event. Terminal transitions are
// additionally announced on their own topic.
func (monitor *MatchMonitor) Notify(matchID messages.MatchID, container messages.MessageContainer) {
	var content interface{}
	err := json.Unmarshal(container.Content, &content)
	if err != nil {
		monitor.publishError(errors.NewJSONError(err, "parse broadcast content for mirroring", true))
		return
	}
	monitor.portal.Publish(context.Background(), topicForMatchEvents(matchID), event.MatchBroadcastEvent{
		MatchID:     matchID,
		MessageType: container.MessageType,
		Seq:         container.Seq,
		Content:     content,
	})
	if container.MessageType != messages.MessageTypeMatchFinished {
		return
	}
	var finished messages.MessageMatchFinished
	err = messages.ParsePayload(container, &finished)
	if err != nil {
		monitor.publishError(errors.Wrap(err, "parse finish payload for mirroring", nil))
		return
	}
	var winner nulls.String
	if finished.Winner != "" {
		winner = nulls.NewString(string(finished.Winner))
	}
	monitor.portal.Publish(context.Background(), topicForMatchFinished(matchID), event.MatchFinishedEvent{
		MatchID: matchID,
		State:   finished.State,
		Reason:  finished.Reason,
		Winner:  winner,
		Draw:    finished.Draw,
	})
}

// publishError logs the error and announces it on the errors topic.
func (monitor *MatchMonitor) publishError(e error) {
	errors.Log(monitor.portal.Logger(), e)
	monitor.portal.Publish(context.Background(), topicErrors, event.ErrorEventPayloadFromError(e))
}
