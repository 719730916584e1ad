// Package arena provides the authoritative match session coordinator. Each
// match runs a serialized event loop that owns the match lifecycle, enforces
// timing, validates submissions and resolves the outcome.
package arena

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/judge"
	"github.com/lefinal/arena-server/logging"
	"github.com/lefinal/arena-server/messages"
	"go.uber.org/zap"
)

const (
	// DefaultGracePeriod is the default disconnect grace period.
	DefaultGracePeriod = 30 * time.Second
	// DefaultRetentionPeriod is the default time terminal matches are kept in the
	// arena for late judge results and snapshots before the janitor removes them.
	DefaultRetentionPeriod = 5 * time.Minute
	// janitorInterval is the interval for janitor runs.
	janitorInterval = time.Minute
)

// Notifier broadcasts sequenced match events to interested parties.
type Notifier interface {
	// Notify delivers the given broadcast event for the match.
	Notify(matchID messages.MatchID, container messages.MessageContainer)
}

// UserStore provides rating snapshots for joining participants.
type UserStore interface {
	// UserRatingByID retrieves the current rating of the user with the given id.
	UserRatingByID(ctx context.Context, userID messages.UserID) (int, error)
}

// ResultSink consumes match results. Called exactly once per finished match.
type ResultSink interface {
	// SaveMatchResult persists the result and applies the rating deltas.
	SaveMatchResult(ctx context.Context, result MatchResult) error
}

// Config is the configuration for an Arena.
type Config struct {
	// GracePeriod is the disconnect grace period. Defaults to
	// DefaultGracePeriod.
	GracePeriod time.Duration
	// RetentionPeriod is the retention for terminal matches. Defaults to
	// DefaultRetentionPeriod.
	RetentionPeriod time.Duration
}

// matchHandle associates a match with its lifetime. terminalSince is owned by
// the janitor.
type matchHandle struct {
	match         *match
	cancel        context.CancelFunc
	terminalSince time.Time
}

// Arena is the keyed registry of running matches. All match operations are
// forwarded into the per-match event loops.
type Arena struct {
	clock    clockwork.Clock
	notifier Notifier
	users    UserStore
	results  ResultSink
	judge    judge.Judge
	config   Config
	logger   *zap.Logger
	// running is closed when Run has started and lifetime is set.
	running  chan struct{}
	lifetime context.Context

	m       sync.RWMutex
	matches map[messages.MatchID]*matchHandle
}

// New creates a new Arena. Run must be called before matches can be created.
func New(clock clockwork.Clock, notifier Notifier, users UserStore, results ResultSink,
	matchJudge judge.Judge, config Config) *Arena {
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if config.RetentionPeriod <= 0 {
		config.RetentionPeriod = DefaultRetentionPeriod
	}
	return &Arena{
		clock:    clock,
		notifier: notifier,
		users:    users,
		results:  results,
		judge:    matchJudge,
		config:   config,
		logger:   logging.ArenaLogger,
		running:  make(chan struct{}),
		matches:  make(map[messages.MatchID]*matchHandle),
	}
}

// Run runs the arena until the given context is done. Match event loops are
// bound to this context. The janitor removes terminal matches after the
// retention period.
func (arena *Arena) Run(ctx context.Context) error {
	arena.lifetime = ctx
	close(arena.running)
	for {
		select {
		case <-ctx.Done():
			arena.m.Lock()
			for id, handle := range arena.matches {
				handle.cancel()
				delete(arena.matches, id)
			}
			arena.m.Unlock()
			return nil
		case <-arena.clock.After(janitorInterval):
			arena.clean(ctx)
		}
	}
}

// clean removes matches that have been terminal for longer than the retention
// period.
func (arena *Arena) clean(ctx context.Context) {
	arena.m.Lock()
	handles := make(map[messages.MatchID]*matchHandle, len(arena.matches))
	for id, handle := range arena.matches {
		handles[id] = handle
	}
	arena.m.Unlock()
	now := arena.clock.Now()
	for id, handle := range handles {
		snapshot, err := arena.snapshotFromMatch(ctx, handle.match)
		if err != nil {
			continue
		}
		if snapshot.State != messages.MatchStateFinished && snapshot.State != messages.MatchStateAborted {
			continue
		}
		if handle.terminalSince.IsZero() {
			handle.terminalSince = now
			continue
		}
		if now.Sub(handle.terminalSince) < arena.config.RetentionPeriod {
			continue
		}
		arena.logger.Debug("removing terminal match", zap.String("match", string(id)))
		handle.cancel()
		arena.m.Lock()
		delete(arena.matches, id)
		arena.m.Unlock()
	}
}

// CreateMatch creates a match for the two paired users with the given mode
// config and starts its event loop. The pairing itself happens outside the
// arena, joins from users that are not part of it are rejected.
func (arena *Arena) CreateMatch(_ context.Context, users [2]messages.UserID,
	modeConfig ModeConfig) (messages.MatchID, error) {
	select {
	case <-arena.running:
	default:
		return "", errors.NewInternalError("arena is not running", nil)
	}
	if users[0] == "" || users[1] == "" {
		return "", errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidMatchConfig,
			Message: "match requires two users",
		}
	}
	if users[0] == users[1] {
		return "", errors.Error{
			Code:    errors.ErrBadRequest,
			Kind:    errors.KindInvalidMatchConfig,
			Message: "match requires two distinct users",
			Details: errors.Details{"user": users[0]},
		}
	}
	mode, err := modeFor(modeConfig, arena.judge)
	if err != nil {
		return "", errors.Wrap(err, "build mode", nil)
	}
	matchID := messages.MatchID(uuid.New().String())
	matchCtx, cancel := context.WithCancel(arena.lifetime)
	newMatch := newMatch(matchID, mode, users, arena.clock, arena.config.GracePeriod,
		arena.notifier, arena.results)
	arena.m.Lock()
	arena.matches[matchID] = &matchHandle{
		match:  newMatch,
		cancel: cancel,
	}
	arena.m.Unlock()
	go newMatch.run(matchCtx)
	arena.logger.Info("match created",
		zap.String("match", string(matchID)),
		zap.String("gameMode", string(modeConfig.GameMode)),
		zap.String("userA", string(users[0])),
		zap.String("userB", string(users[1])))
	return matchID, nil
}

// matchByID retrieves the match with the given id.
func (arena *Arena) matchByID(matchID messages.MatchID) (*match, error) {
	arena.m.RLock()
	defer arena.m.RUnlock()
	handle, ok := arena.matches[matchID]
	if !ok {
		return nil, errors.NewUnknownMatchError(string(matchID))
	}
	return handle.match, nil
}

// forward sends the event into the match event loop.
func (arena *Arena) forward(ctx context.Context, m *match, event interface{}) error {
	select {
	case <-ctx.Done():
		return errors.NewContextAbortedError("forward match event")
	case <-m.done:
		return errors.NewUnknownMatchError(string(m.id))
	case m.events <- event:
		return nil
	}
}

// Join joins the user into the match and returns the assigned slot. The rating
// snapshot is loaded before the join event enters the match queue.
func (arena *Arena) Join(ctx context.Context, matchID messages.MatchID,
	userID messages.UserID) (int, error) {
	m, err := arena.matchByID(matchID)
	if err != nil {
		return 0, errors.Wrap(err, "match by id", nil)
	}
	rating, err := arena.users.UserRatingByID(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "user rating by id", errors.Details{"user": userID})
	}
	reply := make(chan joinReply, 1)
	err = arena.forward(ctx, m, eventJoin{
		user:   userID,
		rating: rating,
		reply:  reply,
	})
	if err != nil {
		return 0, errors.Wrap(err, "forward join event", nil)
	}
	select {
	case <-ctx.Done():
		return 0, errors.NewContextAbortedError("await join reply")
	case joined := <-reply:
		if joined.err != nil {
			return 0, errors.Wrap(joined.err, "join match", nil)
		}
		return joined.slot, nil
	}
}

// Submit hands the submission to the match. A nil return means the submission
// was accepted for evaluation, the verdict follows as a broadcast event.
func (arena *Arena) Submit(ctx context.Context, matchID messages.MatchID,
	submission Submission) error {
	m, err := arena.matchByID(matchID)
	if err != nil {
		return errors.Wrap(err, "match by id", nil)
	}
	reply := make(chan error, 1)
	err = arena.forward(ctx, m, eventSubmit{
		submission: submission,
		reply:      reply,
	})
	if err != nil {
		return errors.Wrap(err, "forward submit event", nil)
	}
	select {
	case <-ctx.Done():
		return errors.NewContextAbortedError("await submit reply")
	case err := <-reply:
		if err != nil {
			return errors.Wrap(err, "submit", nil)
		}
		return nil
	}
}

// Leave removes the user from the match. In pending matches this aborts the
// match, in active ones it starts the disconnect grace period.
func (arena *Arena) Leave(ctx context.Context, matchID messages.MatchID,
	userID messages.UserID) error {
	m, err := arena.matchByID(matchID)
	if err != nil {
		return errors.Wrap(err, "match by id", nil)
	}
	reply := make(chan error, 1)
	err = arena.forward(ctx, m, eventLeave{
		user:  userID,
		reply: reply,
	})
	if err != nil {
		return errors.Wrap(err, "forward leave event", nil)
	}
	select {
	case <-ctx.Done():
		return errors.NewContextAbortedError("await leave reply")
	case err := <-reply:
		if err != nil {
			return errors.Wrap(err, "leave match", nil)
		}
		return nil
	}
}

// Snapshot retrieves a full-state snapshot for the match. Used for client
// resyncs after detected sequence gaps.
func (arena *Arena) Snapshot(ctx context.Context, matchID messages.MatchID) (messages.MessageFullState, error) {
	m, err := arena.matchByID(matchID)
	if err != nil {
		return messages.MessageFullState{}, errors.Wrap(err, "match by id", nil)
	}
	return arena.snapshotFromMatch(ctx, m)
}

func (arena *Arena) snapshotFromMatch(ctx context.Context, m *match) (messages.MessageFullState, error) {
	reply := make(chan messages.MessageFullState, 1)
	err := arena.forward(ctx, m, eventSnapshot{reply: reply})
	if err != nil {
		return messages.MessageFullState{}, errors.Wrap(err, "forward snapshot event", nil)
	}
	select {
	case <-ctx.Done():
		return messages.MessageFullState{}, errors.NewContextAbortedError("await snapshot reply")
	case snapshot := <-reply:
		return snapshot, nil
	}
}
