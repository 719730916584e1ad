// Provide basic message functionality.

package messages

import (
	"encoding/json"

	"github.com/lefinal/arena-server/errors"
)

// MessageType is the type of message and serves for using the correct parsing
// method.
type MessageType string

// MatchID is a UUID that is used to identify an arena match.
type MatchID string

// UserID is a UUID that is used to identify a stores.User.
type UserID string

// MessageContainer is a container for all messages that are sent and received.
// It holds some meta information as well as the actual payload.
type MessageContainer struct {
	// MessageType is the type of the message.
	MessageType MessageType `json:"message_type"`
	// MatchID is the optional id of the match the message belongs to.
	MatchID MatchID `json:"match_id,omitempty"`
	// Seq is the per-match monotonic sequence number for broadcast events. Clients
	// use it in order to detect gaps and request a resync. Zero for messages that
	// are not broadcast events.
	Seq uint64 `json:"seq,omitempty"`
	// Content is the actual message content.
	Content json.RawMessage `json:"content,omitempty"`
}

// All general message types.
const (
	// MessageTypeError is used for error messages. The content is being set to the
	// detailed error.
	MessageTypeError MessageType = "error"
	// MessageTypeHello is received with MessageHello for saying hello to the
	// server and associating the connection with a user.
	MessageTypeHello MessageType = "hello"
	// MessageTypeOK is used only for confirmation of actions that do not require a
	// detailed response.
	MessageTypeOK MessageType = "ok"
	// MessageTypeWelcome is sent to the client when he is welcomed at the server.
	// Used with MessageWelcome.
	MessageTypeWelcome MessageType = "welcome"
)

// MessageHello is used with MessageTypeHello.
type MessageHello struct {
	// User is the id of the user the connection belongs to.
	User UserID `json:"user"`
}

// MessageWelcome is used with MessageTypeWelcome.
type MessageWelcome struct {
	// User is the id of the user the server associated with the connection.
	User UserID `json:"user"`
}

// MessageError is used with MessageTypeError for errors that need to be sent to
// clients.
type MessageError struct {
	// Code is the error code from errors.Error.
	Code string `json:"code"`
	// Kind is the error kind from errors.Error.
	Kind string `json:"kind"`
	// Err is the error from errors.Error.
	Err string `json:"err"`
	// Message is the message from errors.Error.
	Message string `json:"message"`
	// Details are error details from errors.Error.
	Details map[string]interface{} `json:"details"`
}

// MessageErrorFromError creates a MessageError from the given error.
func MessageErrorFromError(err error) MessageError {
	e, _ := errors.Cast(err)
	if !errors.BlameUser(err) {
		return MessageError{
			Code:    string(e.Code),
			Message: "internal server error",
		}
	}
	return MessageError{
		Code:    string(e.Code),
		Kind:    string(e.Kind),
		Err:     e.Error(),
		Message: e.Message,
		Details: e.Details,
	}
}
