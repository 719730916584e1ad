package errors

import (
	"fmt"
)

// NewResourceNotFoundError returns a new ErrNotFound error with kind
// KindResourceNotFound and the given message.
func NewResourceNotFoundError(message string, details Details) error {
	return Error{
		Code:    ErrNotFound,
		Kind:    KindResourceNotFound,
		Message: message,
		Details: details,
	}
}

// NewUnknownMatchError creates a new ErrNotFound error with kind
// KindUnknownMatch for the given match id.
func NewUnknownMatchError(matchID string) error {
	return Error{
		Code:    ErrNotFound,
		Kind:    KindUnknownMatch,
		Message: fmt.Sprintf("unknown match: %s", matchID),
		Details: Details{"matchID": matchID},
	}
}

// NewForbiddenMessageError creates a new ErrProtocolViolation error with kind
// KindForbiddenMessage.
func NewForbiddenMessageError(messageType string, content interface{}) error {
	return Error{
		Code:    ErrProtocolViolation,
		Kind:    KindForbiddenMessage,
		Message: fmt.Sprintf("forbidden message type: %s", messageType),
		Details: Details{
			"messageType": messageType,
			"content":     content,
		},
	}
}

// NewContextAbortedError creates a new ErrAborted error with kind
// KindContextAborted for the operation with the given name.
func NewContextAbortedError(operation string) error {
	return Error{
		Code:    ErrAborted,
		Kind:    KindContextAborted,
		Message: fmt.Sprintf("%s aborted due to context done", operation),
	}
}

// NewInternalError creates a new ErrInternal error with kind KindUnknown and
// the given message.
func NewInternalError(message string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindUnknown,
		Message: message,
		Details: details,
	}
}

// NewInternalErrorFromErr creates a new ErrInternal error with kind KindUnknown
// from the given error.
func NewInternalErrorFromErr(err error, message string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindUnknown,
		Err:     err,
		Message: message,
		Details: details,
	}
}

// NewJSONError creates a new ErrBadRequest error with kind KindDecodeJSON.
func NewJSONError(err error, message string, decode bool) error {
	kind := KindEncodeJSON
	if decode {
		kind = KindDecodeJSON
	}
	return Error{
		Code:    ErrBadRequest,
		Kind:    kind,
		Err:     err,
		Message: message,
	}
}

// Database error generators.

// NewQueryToSQLError creates a new ErrInternal error with kind KindDB for when
// building a query fails.
func NewQueryToSQLError(err error, details Details) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDB,
		Err:     err,
		Message: "query to sql",
		Details: details,
	}
}

// NewExecQueryError creates a new ErrInternal error with kind KindDB for a
// failed query execution.
func NewExecQueryError(err error, query string, details Details) error {
	if details == nil {
		details = make(Details)
	}
	details["query"] = query
	return Error{
		Code:    ErrInternal,
		Kind:    KindDB,
		Err:     err,
		Message: "exec query",
		Details: details,
	}
}

// NewScanSingleDBRowError creates a new ErrInternal error with kind KindDB for
// when scanning a single row fails.
func NewScanSingleDBRowError(message string, err error, details Details) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDB,
		Err:     err,
		Message: message,
		Details: details,
	}
}

// NewDBTxBeginError creates a new ErrInternal error with kind KindDB for when
// beginning a transaction fails.
func NewDBTxBeginError(err error) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDB,
		Err:     err,
		Message: "begin tx",
	}
}

// NewDBTxCommitError creates a new ErrInternal error with kind KindDB for when
// committing a transaction fails.
func NewDBTxCommitError(err error) error {
	return Error{
		Code:    ErrInternal,
		Kind:    KindDB,
		Err:     err,
		Message: "commit tx",
	}
}
