package messages

import (
	"encoding/json"

	"github.com/lefinal/arena-server/errors"
)

// ParseContainer parses a raw message into a MessageContainer. The content
// stays raw and is parsed via ParsePayload based on the message type.
func ParseContainer(raw []byte) (MessageContainer, error) {
	var container MessageContainer
	err := json.Unmarshal(raw, &container)
	if err != nil {
		return MessageContainer{}, errors.NewJSONError(err, "parse message container", true)
	}
	if container.MessageType == "" {
		return MessageContainer{}, errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindDecodeJSON,
			Message: "message container without message type",
			Details: errors.Details{"raw": string(raw)},
		}
	}
	return container, nil
}

// ParsePayload parses the content of the given MessageContainer into the
// passed target.
func ParsePayload(container MessageContainer, target interface{}) error {
	err := json.Unmarshal(container.Content, target)
	if err != nil {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindDecodeJSON,
			Err:     err,
			Message: "parse message payload",
			Details: errors.Details{
				"messageType": container.MessageType,
				"content":     string(container.Content),
			},
		}
	}
	return nil
}

// ComposeContainer builds a MessageContainer with the given payload.
func ComposeContainer(messageType MessageType, matchID MatchID, seq uint64, payload interface{}) (MessageContainer, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return MessageContainer{}, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindEncodeJSON,
			Err:     err,
			Message: "marshal message payload",
			Details: errors.Details{"messageType": messageType},
		}
	}
	return MessageContainer{
		MessageType: messageType,
		MatchID:     matchID,
		Seq:         seq,
		Content:     content,
	}, nil
}

// MarshalContainer does simple message marshalling.
func MarshalContainer(container MessageContainer) ([]byte, error) {
	raw, err := json.Marshal(container)
	if err != nil {
		return nil, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindEncodeJSON,
			Err:     err,
			Message: "marshal message container",
			Details: errors.Details{"messageType": container.MessageType},
		}
	}
	return raw, nil
}

// MarshalContainerMust does simple message marshalling and panics if an error
// occurs.
func MarshalContainerMust(container MessageContainer) []byte {
	raw, err := MarshalContainer(container)
	if err != nil {
		panic(err)
	}
	return raw
}
