package event

import (
	"time"

	"github.com/gobuffalo/nulls"
	"github.com/lefinal/arena-server/messages"
)

// MatchCreatedEvent is published when a match was created and awaits its
// participants.
type MatchCreatedEvent struct {
	// MatchID is the id of the created match.
	MatchID messages.MatchID `json:"match_id"`
	// GameMode is the mode the match uses.
	GameMode messages.GameMode `json:"game_mode"`
	// Users are the paired users in slot order.
	Users []messages.UserID `json:"users"`
	// Created is when the match was created.
	Created time.Time `json:"created"`
}

// MatchBroadcastEvent mirrors a sequenced broadcast event of a match for
// read-only monitors.
type MatchBroadcastEvent struct {
	// MatchID is the id of the match.
	MatchID messages.MatchID `json:"match_id"`
	// MessageType is the type of the mirrored broadcast event.
	MessageType messages.MessageType `json:"message_type"`
	// Seq is the per-match sequence number of the broadcast event.
	Seq uint64 `json:"seq"`
	// Content is the raw payload of the broadcast event.
	Content interface{} `json:"content"`
}

// MatchFinishedEvent is published on the terminal transition of a match.
type MatchFinishedEvent struct {
	// MatchID is the id of the match.
	MatchID messages.MatchID `json:"match_id"`
	// State is the terminal match state.
	State messages.MatchState `json:"state"`
	// Reason is the termination reason.
	Reason string `json:"reason"`
	// Winner is the id of the winning player if any.
	Winner nulls.String `json:"winner"`
	// Draw describes whether the match ended in a draw.
	Draw bool `json:"draw"`
}
