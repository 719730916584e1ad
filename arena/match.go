package arena

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/logging"
	"github.com/lefinal/arena-server/messages"
	"go.uber.org/zap"
)

// TerminationReason is the reason for a terminal match transition.
type TerminationReason string

const (
	// TerminationReasonCompleted is used when a slot met the mode's win condition
	// or both slots completed.
	TerminationReasonCompleted TerminationReason = "completed"
	// TerminationReasonTimedOut is used when the match clock expired.
	TerminationReasonTimedOut TerminationReason = "timed-out"
	// TerminationReasonForfeit is used when a disconnect grace period expired
	// while the peer was still connected.
	TerminationReasonForfeit TerminationReason = "forfeit"
	// TerminationReasonAborted is used when the match ended without a result.
	TerminationReasonAborted TerminationReason = "aborted"
)

// ConnectionState is the connection state of a participant slot.
type ConnectionState string

const (
	// ConnectionStateConnected is used while the participant is connected.
	ConnectionStateConnected ConnectionState = "connected"
	// ConnectionStateDisconnected is used while the participant's disconnect
	// grace timer runs.
	ConnectionStateDisconnected ConnectionState = "disconnected"
)

// ParticipantResult is the per-slot part of a MatchResult.
type ParticipantResult struct {
	// User is the id of the participant.
	User messages.UserID
	// Slot is the participant slot (0 or 1).
	Slot int
	// Score is the mode's final scalar score.
	Score float64
	// RatingBefore is the rating snapshot taken at join.
	RatingBefore int
	// RatingDelta is the applied rating delta.
	RatingDelta int
}

// MatchResult is created exactly once per match at the terminal transition.
// Aborted matches produce no MatchResult.
type MatchResult struct {
	// MatchID is the id of the match.
	MatchID messages.MatchID
	// GameMode is the mode the match used.
	GameMode messages.GameMode
	// Reason is the termination reason.
	Reason TerminationReason
	// Outcome is the resolved outcome.
	Outcome Outcome
	// Winner is the id of the winning player. Empty on draw.
	Winner messages.UserID
	// Draw describes whether the match ended in a draw.
	Draw bool
	// Start is the match start timestamp.
	Start time.Time
	// End is the timestamp of the terminal transition.
	End time.Time
	// Participants are the per-slot results in slot order.
	Participants [2]ParticipantResult
}

// participantSlot is the loop-owned state of a participant slot.
type participantSlot struct {
	// user is the id of the participant.
	user messages.UserID
	// connection is the current connection state.
	connection ConnectionState
	// progress is the mode-specific progress record.
	progress Progress
	// rating is the rating snapshot taken at join.
	rating int
	// lastSequence is the sequence number of the last successfully evaluated
	// submission. -1 when none was evaluated yet.
	lastSequence int
	// locked is set while a submission for the slot is in flight.
	locked bool
	// cancelGrace cancels the running disconnect grace timer. nil when none
	// runs.
	cancelGrace func()
}

// Match events. All state access happens through these via the event loop in
// match.run which serializes them into a total order.

type eventJoin struct {
	user messages.UserID
	// rating is the rating snapshot, loaded outside the loop.
	rating int
	reply  chan joinReply
}

type joinReply struct {
	slot int
	err  error
}

type eventSubmit struct {
	submission Submission
	reply      chan error
}

type eventLeave struct {
	user  messages.UserID
	reply chan error
}

type eventJudgeResult struct {
	slot          int
	submission    Submission
	evaluation    Evaluation
	evaluationErr error
}

type eventClockExpired struct{}

type eventGraceExpired struct {
	slot int
}

type eventCountdownTick struct{}

type eventSnapshot struct {
	reply chan messages.MessageFullState
}

// match is the per-match runtime. All fields below events are owned by the
// event loop goroutine.
type match struct {
	id          messages.MatchID
	mode        Mode
	users       [2]messages.UserID
	clock       clockwork.Clock
	gracePeriod time.Duration
	notifier    Notifier
	resultSink  ResultSink
	logger      *zap.Logger
	events      chan interface{}
	// done is closed when the match event loop has ended.
	done chan struct{}

	state         messages.MatchState
	slots         [2]*participantSlot
	seq           uint64
	start         time.Time
	end           time.Time
	matchClock    *matchClock
	stopCountdown func()
	result        *MatchResult
}

func newMatch(id messages.MatchID, mode Mode, users [2]messages.UserID, clock clockwork.Clock,
	gracePeriod time.Duration, notifier Notifier, resultSink ResultSink) *match {
	return &match{
		id:          id,
		mode:        mode,
		users:       users,
		clock:       clock,
		gracePeriod: gracePeriod,
		notifier:    notifier,
		resultSink:  resultSink,
		logger:      logging.ArenaLogger.With(zap.String("match", string(id))),
		events:      make(chan interface{}, 16),
		done:        make(chan struct{}),
		state:       messages.MatchStatePending,
	}
}

// run is the match event loop. It serializes all match events into a total
// order and keeps running for terminal matches until the context is canceled
// so that late events are still drained.
func (match *match) run(ctx context.Context) {
	defer close(match.done)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-match.events:
			match.handle(ctx, e)
		}
	}
}

func (match *match) handle(ctx context.Context, e interface{}) {
	switch e := e.(type) {
	case eventJoin:
		e.reply <- match.handleJoin(ctx, e)
	case eventSubmit:
		e.reply <- match.handleSubmit(ctx, e)
	case eventLeave:
		e.reply <- match.handleLeave(ctx, e)
	case eventJudgeResult:
		match.handleJudgeResult(ctx, e)
	case eventClockExpired:
		match.handleClockExpired(ctx)
	case eventGraceExpired:
		match.handleGraceExpired(ctx, e)
	case eventCountdownTick:
		match.handleCountdownTick()
	case eventSnapshot:
		e.reply <- match.snapshot()
	default:
		errors.Log(match.logger, errors.NewInternalError("unknown match event",
			errors.Details{"event": e}))
	}
}

// slotIndex is the slot index the user has joined. -1 when not joined.
func (match *match) slotIndex(user messages.UserID) int {
	for i, slot := range match.slots {
		if slot != nil && slot.user == user {
			return i
		}
	}
	return -1
}

// pairingIndex is the slot index the matchmaker paired the user for. -1 when
// the user is not part of the pairing.
func (match *match) pairingIndex(user messages.UserID) int {
	for i, paired := range match.users {
		if paired == user {
			return i
		}
	}
	return -1
}

func (match *match) handleJoin(ctx context.Context, e eventJoin) joinReply {
	pairing := match.pairingIndex(e.user)
	if pairing == -1 {
		if match.slots[0] != nil && match.slots[1] != nil {
			return joinReply{err: errors.Error{
				Code:    errors.ErrBadRequest,
				Kind:    errors.KindMatchFull,
				Message: "match has no free participant slot",
				Details: errors.Details{"user": e.user},
			}}
		}
		return joinReply{err: errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindPlayerNotPaired,
			Message: "user is not paired for this match",
			Details: errors.Details{"user": e.user},
		}}
	}
	// Reconnect of a disconnected slot while the grace timer runs.
	if match.state == messages.MatchStateActive && match.slots[pairing] != nil &&
		match.slots[pairing].connection == ConnectionStateDisconnected {
		slot := match.slots[pairing]
		slot.cancelGrace()
		slot.cancelGrace = nil
		slot.connection = ConnectionStateConnected
		match.logger.Info("participant reconnected", zap.String("user", string(e.user)))
		match.broadcast(messages.MessageTypeProgressUpdate, messages.MessageProgressUpdate{
			User:         e.user,
			Slots:        match.slotStates(),
			RemainingSec: match.remainingSec(),
		})
		return joinReply{slot: pairing}
	}
	if match.state != messages.MatchStatePending {
		return joinReply{err: errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindMatchNotPending,
			Message: "match does not accept joins anymore",
			Details: errors.Details{"state": match.state},
		}}
	}
	if match.slots[pairing] != nil {
		return joinReply{err: errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindPlayerAlreadyJoined,
			Message: "user has already joined",
			Details: errors.Details{"user": e.user},
		}}
	}
	match.slots[pairing] = &participantSlot{
		user:         e.user,
		connection:   ConnectionStateConnected,
		progress:     match.mode.InitialProgress(),
		rating:       e.rating,
		lastSequence: -1,
	}
	match.logger.Info("participant joined",
		zap.String("user", string(e.user)), zap.Int("slot", pairing))
	match.broadcast(messages.MessageTypeMatchJoined, messages.MessageMatchJoined{
		User: e.user,
		Slot: pairing,
	})
	if match.slots[0] != nil && match.slots[1] != nil {
		match.activate(ctx)
	}
	return joinReply{slot: pairing}
}

// activate transitions the match from pending to active, starts the match
// clock and the countdown broadcasts.
func (match *match) activate(ctx context.Context) {
	match.state = messages.MatchStateActive
	match.start = match.clock.Now()
	match.matchClock = startMatchClock(ctx, match.clock, match.mode.TimeLimit(), func() {
		select {
		case <-ctx.Done():
		case match.events <- eventClockExpired{}:
		}
	})
	match.stopCountdown = startCountdown(ctx, match.clock, match.mode.CountdownInterval(), func() {
		select {
		case <-ctx.Done():
		case match.events <- eventCountdownTick{}:
		}
	})
	match.logger.Info("match started",
		zap.String("gameMode", string(match.mode.GameMode())),
		zap.Duration("timeLimit", match.mode.TimeLimit()))
	match.broadcast(messages.MessageTypeMatchStarted, messages.MessageMatchStarted{
		GameMode:     match.mode.GameMode(),
		Start:        match.start,
		TimeLimitSec: int(match.mode.TimeLimit().Seconds()),
		Slots:        match.slotStates(),
	})
}

func (match *match) handleSubmit(ctx context.Context, e eventSubmit) error {
	if match.state != messages.MatchStateActive {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindMatchNotActive,
			Message: "match is not active",
			Details: errors.Details{"state": match.state},
		}
	}
	slotIndex := match.slotIndex(e.submission.User)
	if slotIndex == -1 {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindPlayerNotJoined,
			Message: "user has not joined the match",
			Details: errors.Details{"user": e.submission.User},
		}
	}
	slot := match.slots[slotIndex]
	if slot.connection == ConnectionStateDisconnected {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindPlayerNotJoined,
			Message: "slot is disconnected",
			Details: errors.Details{"user": e.submission.User},
		}
	}
	if e.submission.Sequence <= slot.lastSequence {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindSequenceStale,
			Message: "submission sequence number already evaluated",
			Details: errors.Details{
				"sequence":     e.submission.Sequence,
				"lastSequence": slot.lastSequence,
			},
		}
	}
	if slot.locked {
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindSlotLocked,
			Message: "slot still has a submission in flight",
			Details: errors.Details{"user": e.submission.User},
		}
	}
	err := match.mode.Validate(slot.progress, e.submission)
	if err != nil {
		return errors.Wrap(err, "validate submission", nil)
	}
	// Accepted. Evaluation runs outside the loop and re-enters as an
	// eventJudgeResult.
	slot.locked = true
	submission := e.submission
	go func() {
		evaluation, evaluationErr := match.mode.Evaluate(ctx, submission)
		select {
		case <-ctx.Done():
		case match.events <- eventJudgeResult{
			slot:          slotIndex,
			submission:    submission,
			evaluation:    evaluation,
			evaluationErr: evaluationErr,
		}:
		}
	}()
	return nil
}

func (match *match) handleJudgeResult(ctx context.Context, e eventJudgeResult) {
	if match.state != messages.MatchStateActive {
		match.logger.Info("dropping late judge result for terminal match",
			zap.String("state", string(match.state)),
			zap.String("user", string(e.submission.User)),
			zap.Int("sequence", e.submission.Sequence))
		return
	}
	slot := match.slots[e.slot]
	slot.locked = false
	if e.evaluationErr != nil {
		errors.Log(match.logger, errors.Wrap(e.evaluationErr, "evaluate submission", errors.Details{
			"user":     e.submission.User,
			"sequence": e.submission.Sequence,
		}))
		messageError := messages.MessageErrorFromError(e.evaluationErr)
		match.broadcast(messages.MessageTypeSubmissionResult, messages.MessageSubmissionResult{
			User:      e.submission.User,
			Sequence:  e.submission.Sequence,
			Evaluated: false,
			Error:     &messageError,
		})
		return
	}
	slot.lastSequence = e.submission.Sequence
	slot.progress = match.mode.Apply(slot.progress, e.evaluation)
	match.broadcast(messages.MessageTypeSubmissionResult, messages.MessageSubmissionResult{
		User:            e.submission.User,
		Sequence:        e.submission.Sequence,
		Evaluated:       true,
		TestCasesPassed: e.evaluation.TestCasesPassed,
		TotalTestCases:  e.evaluation.TotalTestCases,
		Question:        e.evaluation.Question,
		Correct:         e.evaluation.Correct,
	})
	match.broadcast(messages.MessageTypeProgressUpdate, messages.MessageProgressUpdate{
		User:         e.submission.User,
		Slots:        match.slotStates(),
		RemainingSec: match.remainingSec(),
	})
	if match.mode.IsWinning(slot.progress) {
		match.finish(ctx, TerminationReasonCompleted, Outcome(e.slot))
		return
	}
	if match.mode.IsComplete(match.slots[0].progress) && match.mode.IsComplete(match.slots[1].progress) {
		match.finish(ctx, TerminationReasonCompleted,
			match.mode.ResolveExpiry(match.slots[0].progress, match.slots[1].progress))
	}
}

func (match *match) handleLeave(ctx context.Context, e eventLeave) error {
	slotIndex := match.slotIndex(e.user)
	switch match.state {
	case messages.MatchStatePending:
		if slotIndex == -1 {
			return errors.Error{
				Code:    errors.ErrBadRequest,
				Kind:    errors.KindPlayerNotJoined,
				Message: "user has not joined the match",
				Details: errors.Details{"user": e.user},
			}
		}
		match.logger.Info("participant left pending match, aborting",
			zap.String("user", string(e.user)))
		match.abort()
		return nil
	case messages.MatchStateActive:
		if slotIndex == -1 {
			return errors.Error{
				Code:    errors.ErrBadRequest,
				Kind:    errors.KindPlayerNotJoined,
				Message: "user has not joined the match",
				Details: errors.Details{"user": e.user},
			}
		}
		slot := match.slots[slotIndex]
		if slot.connection == ConnectionStateDisconnected {
			return errors.Error{
				Code:    errors.ErrBadRequest,
				Kind:    errors.KindGraceAlreadyRunning,
				Message: "slot is already disconnected",
				Details: errors.Details{"user": e.user},
			}
		}
		slot.connection = ConnectionStateDisconnected
		peer := match.slots[1-slotIndex]
		if peer.connection == ConnectionStateDisconnected {
			match.logger.Info("both participants disconnected, aborting",
				zap.String("user", string(e.user)))
			match.abort()
			return nil
		}
		slot.cancelGrace = startGraceTimer(ctx, match.clock, match.gracePeriod, func() {
			select {
			case <-ctx.Done():
			case match.events <- eventGraceExpired{slot: slotIndex}:
			}
		})
		match.logger.Info("participant disconnected, grace timer started",
			zap.String("user", string(e.user)),
			zap.Duration("gracePeriod", match.gracePeriod))
		match.broadcast(messages.MessageTypeProgressUpdate, messages.MessageProgressUpdate{
			User:         e.user,
			Slots:        match.slotStates(),
			RemainingSec: match.remainingSec(),
		})
		return nil
	default:
		return errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindMatchNotActive,
			Message: "match has already ended",
			Details: errors.Details{"state": match.state},
		}
	}
}

func (match *match) handleGraceExpired(ctx context.Context, e eventGraceExpired) {
	if match.state != messages.MatchStateActive {
		match.logger.Debug("ignoring grace expiry for non-active match",
			zap.String("state", string(match.state)))
		return
	}
	slot := match.slots[e.slot]
	if slot.connection == ConnectionStateConnected {
		// Reconnected before the cancel took effect.
		match.logger.Debug("ignoring stale grace expiry",
			zap.String("user", string(slot.user)))
		return
	}
	slot.cancelGrace = nil
	peer := match.slots[1-e.slot]
	if peer.connection == ConnectionStateDisconnected {
		match.abort()
		return
	}
	match.logger.Info("grace period expired, forfeiting",
		zap.String("user", string(slot.user)),
		zap.String("winner", string(peer.user)))
	match.finish(ctx, TerminationReasonForfeit, Outcome(1-e.slot))
}

// handleClockExpired handles the match clock expiry. A judge result that was
// queued before the expiry has already been handled at this point, so a win
// racing the expiry always resolves first.
func (match *match) handleClockExpired(ctx context.Context) {
	if match.state != messages.MatchStateActive {
		match.logger.Debug("ignoring clock expiry for non-active match",
			zap.String("state", string(match.state)))
		return
	}
	match.finish(ctx, TerminationReasonTimedOut,
		match.mode.ResolveExpiry(match.slots[0].progress, match.slots[1].progress))
}

func (match *match) handleCountdownTick() {
	if match.state != messages.MatchStateActive {
		return
	}
	match.broadcast(messages.MessageTypeCountdown, messages.MessageCountdown{
		RemainingSec: match.remainingSec(),
	})
}

// finish performs the terminal transition to finished, creates the MatchResult
// and hands it to the result sink. A second terminal computation is an
// internal invariant violation and is refused.
func (match *match) finish(ctx context.Context, reason TerminationReason, outcome Outcome) {
	if match.result != nil || match.state == messages.MatchStateFinished ||
		match.state == messages.MatchStateAborted {
		errors.Log(match.logger, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindShouldNotHappen,
			Message: "second terminal computation for match",
			Details: errors.Details{
				"state":  match.state,
				"reason": reason,
			},
		})
		return
	}
	match.state = messages.MatchStateFinished
	match.end = match.clock.Now()
	match.stopTimers()
	deltaA, deltaB := ratingDeltas(match.slots[0].rating, match.slots[1].rating, outcome)
	var winner messages.UserID
	if outcome != OutcomeDraw {
		winner = match.slots[outcome].user
	}
	result := MatchResult{
		MatchID:  match.id,
		GameMode: match.mode.GameMode(),
		Reason:   reason,
		Outcome:  outcome,
		Winner:   winner,
		Draw:     outcome == OutcomeDraw,
		Start:    match.start,
		End:      match.end,
		Participants: [2]ParticipantResult{
			{
				User:         match.slots[0].user,
				Slot:         0,
				Score:        match.slots[0].progress.Score(),
				RatingBefore: match.slots[0].rating,
				RatingDelta:  deltaA,
			},
			{
				User:         match.slots[1].user,
				Slot:         1,
				Score:        match.slots[1].progress.Score(),
				RatingBefore: match.slots[1].rating,
				RatingDelta:  deltaB,
			},
		},
	}
	match.result = &result
	match.logger.Info("match finished",
		zap.String("reason", string(reason)),
		zap.String("winner", string(winner)),
		zap.Bool("draw", result.Draw))
	// Persisting must not block the event loop.
	go func() {
		err := match.resultSink.SaveMatchResult(ctx, result)
		if err != nil {
			errors.Log(match.logger, errors.Wrap(err, "save match result", nil))
		}
	}()
	match.broadcast(messages.MessageTypeMatchFinished, messages.MessageMatchFinished{
		State:       messages.MatchStateFinished,
		Reason:      string(reason),
		Winner:      winner,
		Draw:        result.Draw,
		Slots:       match.slotStates(),
		DurationSec: match.durationSec(),
		RatingDeltas: map[messages.UserID]int{
			result.Participants[0].User: deltaA,
			result.Participants[1].User: deltaB,
		},
	})
}

// abort performs the terminal transition to aborted. No MatchResult is
// created and no ratings change.
func (match *match) abort() {
	if match.state == messages.MatchStateFinished || match.state == messages.MatchStateAborted {
		errors.Log(match.logger, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindShouldNotHappen,
			Message: "abort for already terminal match",
			Details: errors.Details{"state": match.state},
		})
		return
	}
	match.state = messages.MatchStateAborted
	match.end = match.clock.Now()
	match.stopTimers()
	match.logger.Info("match aborted")
	match.broadcast(messages.MessageTypeMatchFinished, messages.MessageMatchFinished{
		State:       messages.MatchStateAborted,
		Reason:      string(TerminationReasonAborted),
		Slots:       match.slotStates(),
		DurationSec: match.durationSec(),
	})
}

// stopTimers stops the match clock, the countdown and all grace timers.
func (match *match) stopTimers() {
	if match.matchClock != nil {
		match.matchClock.Stop()
		match.matchClock = nil
	}
	if match.stopCountdown != nil {
		match.stopCountdown()
		match.stopCountdown = nil
	}
	for _, slot := range match.slots {
		if slot != nil && slot.cancelGrace != nil {
			slot.cancelGrace()
			slot.cancelGrace = nil
		}
	}
}

func (match *match) snapshot() messages.MessageFullState {
	return messages.MessageFullState{
		GameMode:     match.mode.GameMode(),
		State:        match.state,
		Seq:          match.seq,
		Slots:        match.slotStates(),
		RemainingSec: match.remainingSec(),
	}
}

// slotStates builds the externally visible slot states in slot order. Slots
// that were not joined yet are skipped.
func (match *match) slotStates() []messages.SlotState {
	states := make([]messages.SlotState, 0, 2)
	for _, slot := range match.slots {
		if slot == nil {
			continue
		}
		progress, err := json.Marshal(slot.progress)
		if err != nil {
			errors.Log(match.logger, errors.NewJSONError(err, "marshal slot progress", false))
			progress = []byte("{}")
		}
		states = append(states, messages.SlotState{
			User:       slot.user,
			Connection: string(slot.connection),
			Progress:   progress,
			Score:      slot.progress.Score(),
		})
	}
	return states
}

func (match *match) remainingSec() int {
	if match.matchClock == nil {
		return 0
	}
	return int(match.matchClock.Remaining().Seconds())
}

func (match *match) durationSec() int {
	if match.start.IsZero() {
		return 0
	}
	return int(match.end.Sub(match.start).Seconds())
}

// broadcast emits a broadcast event with the next per-match sequence number.
func (match *match) broadcast(messageType messages.MessageType, payload interface{}) {
	match.seq++
	container, err := messages.ComposeContainer(messageType, match.id, match.seq, payload)
	if err != nil {
		errors.Log(match.logger, err)
		return
	}
	match.notifier.Notify(match.id, container)
}
