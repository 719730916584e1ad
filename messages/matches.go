package messages

import (
	"encoding/json"
	"time"
)

// GameMode is the type of game mode.
type GameMode string

// Game modes.
const (
	// GameModeCodingBattle is the classic head-to-head battle with one algorithmic
	// problem and pass/fail test-case scoring.
	GameModeCodingBattle GameMode = "coding-battle"
	// GameModeRapidFire is the fixed 60-second window with ten multiple-choice
	// questions and signed scoring.
	GameModeRapidFire GameMode = "rapid-fire"
)

// MatchState is the lifecycle state of a match.
type MatchState string

const (
	// MatchStatePending is used while the match awaits its second join.
	MatchStatePending MatchState = "pending"
	// MatchStateActive is used while the match is running.
	MatchStateActive MatchState = "active"
	// MatchStateFinished is used when a match has ended with a result.
	MatchStateFinished MatchState = "finished"
	// MatchStateAborted is used when a match ended without a result.
	MatchStateAborted MatchState = "aborted"
)

// Match message types.
const (
	// MessageTypeJoinMatch is received with MessageJoinMatch when a player wants to
	// join a match.
	MessageTypeJoinMatch MessageType = "join-match"
	// MessageTypeMatchJoined is sent with MessageMatchJoined as confirmation for
	// MessageTypeJoinMatch.
	MessageTypeMatchJoined MessageType = "match-joined"
	// MessageTypeSubmit is received with MessageSubmit for a player submission.
	MessageTypeSubmit MessageType = "submit"
	// MessageTypeSubmitAccepted is sent as confirmation that a submission was
	// accepted and is being evaluated.
	MessageTypeSubmitAccepted MessageType = "submit-accepted"
	// MessageTypeLeaveMatch is received when a player leaves a match.
	MessageTypeLeaveMatch MessageType = "leave-match"
	// MessageTypeResyncRequest is received when a client detected a sequence gap
	// and wants a full-state snapshot via MessageTypeFullState.
	MessageTypeResyncRequest MessageType = "resync-request"
	// MessageTypeFullState is sent with MessageFullState as answer to
	// MessageTypeResyncRequest.
	MessageTypeFullState MessageType = "full-state"
	// MessageTypeMatchStarted is broadcast with MessageMatchStarted when the second
	// player joined and the match clock started.
	MessageTypeMatchStarted MessageType = "match-started"
	// MessageTypeCountdown is broadcast with MessageCountdown at the mode's
	// cadence while the match is active.
	MessageTypeCountdown MessageType = "countdown"
	// MessageTypeProgressUpdate is broadcast with MessageProgressUpdate when a
	// slot's progress record changed.
	MessageTypeProgressUpdate MessageType = "progress-update"
	// MessageTypeSubmissionResult is broadcast with MessageSubmissionResult when a
	// submission was evaluated or failed evaluation.
	MessageTypeSubmissionResult MessageType = "submission-result"
	// MessageTypeMatchFinished is broadcast with MessageMatchFinished on the
	// terminal transition.
	MessageTypeMatchFinished MessageType = "match-finished"
)

// MessageJoinMatch is used with MessageTypeJoinMatch.
type MessageJoinMatch struct {
	// User is the id of the player who wants to join.
	User UserID `json:"user"`
}

// MessageMatchJoined is used with MessageTypeMatchJoined.
type MessageMatchJoined struct {
	// User is the id of the player who joined.
	User UserID `json:"user"`
	// Slot is the assigned participant slot (0 or 1).
	Slot int `json:"slot"`
}

// MessageSubmit is used with MessageTypeSubmit.
type MessageSubmit struct {
	// User is the id of the submitting player.
	User UserID `json:"user"`
	// Sequence is the per-slot monotonic sequence number of the submission.
	Sequence int `json:"sequence"`
	// Language is the programming language for coding-battle submissions.
	Language string `json:"language,omitempty"`
	// Code is the submitted code for coding-battle submissions.
	Code string `json:"code,omitempty"`
	// Question is the question index for rapid-fire submissions.
	Question int `json:"question"`
	// SelectedOption is the chosen option id for rapid-fire submissions.
	SelectedOption string `json:"selected_option,omitempty"`
}

// MessageSubmitAccepted is used with MessageTypeSubmitAccepted.
type MessageSubmitAccepted struct {
	// User is the id of the submitting player.
	User UserID `json:"user"`
	// Sequence is the sequence number of the accepted submission.
	Sequence int `json:"sequence"`
}

// MessageLeaveMatch is used with MessageTypeLeaveMatch.
type MessageLeaveMatch struct {
	// User is the id of the leaving player.
	User UserID `json:"user"`
}

// SlotState is the externally visible state of a participant slot. Used in
// broadcast events and full-state snapshots.
type SlotState struct {
	// User is the id of the participant.
	User UserID `json:"user"`
	// Connection is the connection status of the slot.
	Connection string `json:"connection"`
	// Progress is the mode-specific progress record.
	Progress json.RawMessage `json:"progress"`
	// Score is the mode's scalar score for the progress record.
	Score float64 `json:"score"`
}

// MessageMatchStarted is used with MessageTypeMatchStarted.
type MessageMatchStarted struct {
	// GameMode is the mode the match uses.
	GameMode GameMode `json:"game_mode"`
	// Start is the server timestamp of the match start.
	Start time.Time `json:"start"`
	// TimeLimitSec is the match time limit in seconds.
	TimeLimitSec int `json:"time_limit_sec"`
	// Slots are the participant slots in order.
	Slots []SlotState `json:"slots"`
}

// MessageCountdown is used with MessageTypeCountdown. The countdown is derived
// from the server-side clock and never authoritative on the client.
type MessageCountdown struct {
	// RemainingSec is the remaining match time in seconds.
	RemainingSec int `json:"remaining_sec"`
}

// MessageProgressUpdate is used with MessageTypeProgressUpdate.
type MessageProgressUpdate struct {
	// User is the id of the participant whose progress changed.
	User UserID `json:"user"`
	// Slots are the current participant slots in order.
	Slots []SlotState `json:"slots"`
	// RemainingSec is the remaining match time in seconds.
	RemainingSec int `json:"remaining_sec"`
}

// MessageSubmissionResult is used with MessageTypeSubmissionResult.
type MessageSubmissionResult struct {
	// User is the id of the submitting player.
	User UserID `json:"user"`
	// Sequence is the sequence number of the evaluated submission.
	Sequence int `json:"sequence"`
	// Evaluated describes whether the submission was evaluated. If false, the
	// evaluation failed with a recoverable error and the same sequence number may
	// be resubmitted.
	Evaluated bool `json:"evaluated"`
	// TestCasesPassed is the number of passed test cases for coding-battle
	// submissions.
	TestCasesPassed int `json:"test_cases_passed,omitempty"`
	// TotalTestCases is the total number of test cases for coding-battle
	// submissions.
	TotalTestCases int `json:"total_test_cases,omitempty"`
	// Question is the question index for rapid-fire submissions.
	Question int `json:"question"`
	// Correct describes whether a rapid-fire answer was correct.
	Correct bool `json:"correct"`
	// Error holds the recoverable error if Evaluated is false.
	Error *MessageError `json:"error,omitempty"`
}

// MessageMatchFinished is used with MessageTypeMatchFinished.
type MessageMatchFinished struct {
	// State is the terminal match state.
	State MatchState `json:"state"`
	// Reason is the termination reason.
	Reason string `json:"reason"`
	// Winner is the id of the winning player. Empty on draw or abort.
	Winner UserID `json:"winner,omitempty"`
	// Draw describes whether the match ended in a draw.
	Draw bool `json:"draw,omitempty"`
	// Slots are the final participant slots in order.
	Slots []SlotState `json:"slots"`
	// DurationSec is the match duration in seconds.
	DurationSec int `json:"duration_sec"`
	// RatingDeltas holds the applied rating deltas by user id.
	RatingDeltas map[UserID]int `json:"rating_deltas,omitempty"`
}

// MessageFullState is used with MessageTypeFullState.
type MessageFullState struct {
	// GameMode is the mode the match uses.
	GameMode GameMode `json:"game_mode"`
	// State is the current match state.
	State MatchState `json:"state"`
	// Seq is the sequence number of the last broadcast event that is covered by
	// this snapshot.
	Seq uint64 `json:"seq"`
	// Slots are the participant slots in order.
	Slots []SlotState `json:"slots"`
	// RemainingSec is the remaining match time in seconds. Zero when the match is
	// not active.
	RemainingSec int `json:"remaining_sec"`
}
