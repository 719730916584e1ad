package errors

type Code string

const (
	ErrAborted           Code = "aborted"
	ErrBadRequest        Code = "bad-request"
	ErrCommunication     Code = "communication"
	ErrProtocolViolation Code = "protocol-violation"
	ErrFatal             Code = "fatal"
	ErrNotFound          Code = "not-found"
	ErrInternal          Code = "internal"
	ErrUnexpected        Code = "unexpected"
)

type Kind string

const (
	// KindContextAborted is used when we were currently performing an operation but
	// the context got aborted.
	KindContextAborted Kind = "context-aborted"
	// KindDB is used for general database errors.
	KindDB Kind = "db"
	// KindDBRollback is used when rolling back a transaction fails.
	KindDBRollback Kind = "db-rollback"
	// KindDecodeJSON is used when a request body cannot be parsed as JSON.
	KindDecodeJSON Kind = "parse-request-body-as-json"
	// KindEncodeJSON is used when content cannot be encoded as JSON.
	KindEncodeJSON Kind = "encode-json"
	// KindForbiddenMessage is used when the protocol is being violated due to a
	// message with currently forbidden type.
	KindForbiddenMessage Kind = "forbidden-message"
	// KindGraceAlreadyRunning is used when a disconnect grace timer is started for
	// a slot that already has one running.
	KindGraceAlreadyRunning Kind = "grace-already-running"
	// KindInvalidAnswer is used when a rapid-fire answer references an unknown
	// question or option.
	KindInvalidAnswer Kind = "invalid-answer"
	// KindInvalidMatchConfig is used when invalid parameters are passed to match
	// creation.
	KindInvalidMatchConfig Kind = "invalid-match-config"
	// KindJudgeUnavailable is used when the judge collaborator could not be
	// reached, even after retrying. Recoverable for the submitter.
	KindJudgeUnavailable Kind = "judge-unavailable"
	// KindMalformedID is used when a passed ID is not in uuid.UUID format.
	KindMalformedID Kind = "malformed-id"
	// KindMatchFull is used when a player wants to join a match with no free
	// participant slot.
	KindMatchFull Kind = "match-full"
	// KindMatchNotActive is used for operations that require a running match.
	KindMatchNotActive Kind = "match-not-active"
	// KindMatchNotPending is used when a join is requested for a match that has
	// already started or ended.
	KindMatchNotPending Kind = "match-not-pending"
	// KindPlayerAlreadyJoined is used when a player wants to join a match but has
	// already joined.
	KindPlayerAlreadyJoined Kind = "player-already-joined"
	// KindPlayerNotJoined is used when a player has not joined the match yet.
	KindPlayerNotJoined Kind = "player-not-joined"
	// KindPlayerNotPaired is used when a player wants to join a match the
	// matchmaker did not pair him for.
	KindPlayerNotPaired Kind = "player-not-paired"
	// KindResourceNotFound is used when a requested resource does not exist.
	KindResourceNotFound Kind = "resource-not-found"
	// KindShouldNotHappen is used for internal invariant violations that are not
	// expected to occur under correct operation.
	KindShouldNotHappen Kind = "should-not-happen"
	// KindSequenceStale is used when a submission reuses an already seen sequence
	// number for the same slot.
	KindSequenceStale Kind = "sequence-stale"
	// KindSlotLocked is used when a slot still has a submission in flight.
	KindSlotLocked Kind = "slot-locked"
	// KindUnknown is used for different unknown type values that are too special
	// for creating separate error kinds.
	KindUnknown Kind = "unknown"
	// KindUnknownGameMode is used when a game mode is unknown.
	KindUnknownGameMode Kind = "unknown-game-mode"
	// KindUnknownMatch is used when an unknown match is being requested.
	KindUnknownMatch Kind = "unknown-match"
	// KindUnknownUser is used when an unknown user is being requested.
	KindUnknownUser Kind = "unknown-user"
)
