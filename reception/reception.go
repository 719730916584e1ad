// Package reception greets websocket clients and relays their messages to the
// match coordinator. It keeps track of which client watches which match so
// that broadcast events reach everyone at the table.
package reception

import (
	"context"
	"sync"

	"github.com/lefinal/arena-server/arena"
	"github.com/lefinal/arena-server/client"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/logging"
	"github.com/lefinal/arena-server/messages"
	"go.uber.org/zap"
)

// Coordinator is the match coordination surface the Reception relays client
// requests to. Satisfied by arena.Arena.
type Coordinator interface {
	// Join adds the user to the match and returns the assigned slot.
	Join(ctx context.Context, matchID messages.MatchID, userID messages.UserID) (int, error)
	// Submit hands a submission to the match for evaluation.
	Submit(ctx context.Context, matchID messages.MatchID, submission arena.Submission) error
	// Leave removes the user from the match.
	Leave(ctx context.Context, matchID messages.MatchID, userID messages.UserID) error
	// Snapshot retrieves a full-state snapshot of the match.
	Snapshot(ctx context.Context, matchID messages.MatchID) (messages.MessageFullState, error)
}

// connection is the reception-side state of a connected client.
type connection struct {
	// client is the transport handle for the connection.
	client *client.Client
	// user is the user id from the hello message. Empty until the client said
	// hello.
	user messages.UserID
	// match is the match the client joined. Empty until the client joined one.
	match messages.MatchID
	// joined is set once the client joined a match and not cleared before the
	// client left it again.
	joined bool
	// closed is set in SayGoodbyeToClient. The hub closes the client's
	// send-channel right after the goodbye, so no send may happen once set.
	closed bool
}

// Reception implements client.Listener. It welcomes clients, relays their
// match requests to the Coordinator and fans broadcast events out to all
// clients watching the match. Register it as the arena's notifier so that
// broadcasts reach connected clients.
type Reception struct {
	// coordinator is where all match requests go.
	coordinator Coordinator
	// clients holds the connection state for each connected client.
	clients map[*client.Client]*connection
	// byMatch indexes connections by the match they joined for broadcast fan-out.
	byMatch map[messages.MatchID]map[*connection]struct{}
	// m locks clients and byMatch as well as the connection fields.
	m sync.RWMutex
}

// NewReception creates a Reception that relays to the given Coordinator.
func NewReception(coordinator Coordinator) *Reception {
	return &Reception{
		coordinator: coordinator,
		clients:     make(map[*client.Client]*connection),
		byMatch:     make(map[messages.MatchID]map[*connection]struct{}),
	}
}

// AcceptClient registers the client and serves its messages until the
// connection is gone or the given context is done.
func (r *Reception) AcceptClient(ctx context.Context, c *client.Client) {
	conn := &connection{client: c}
	r.m.Lock()
	r.clients[c] = conn
	r.m.Unlock()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-c.Receive:
			if !ok {
				return
			}
			container, err := messages.ParseContainer(raw)
			if err != nil {
				r.logAndSendError(conn, "", errors.Wrap(err, "parse message container", nil))
				continue
			}
			logging.MessageLogger.Debug(string(container.Content),
				zap.String("client_id", c.ID),
				zap.String("dir", "incoming"),
				zap.Any("match_id", container.MatchID),
				zap.Any("message_type", container.MessageType))
			err = r.handleMessage(ctx, conn, container)
			if err != nil {
				r.logAndSendError(conn, container.MatchID, err)
			}
		}
	}
}

// SayGoodbyeToClient removes the client from the registries. A client that
// joined a match leaves it, which triggers the disconnect grace period for
// active matches.
func (r *Reception) SayGoodbyeToClient(ctx context.Context, c *client.Client) {
	r.m.Lock()
	conn, ok := r.clients[c]
	if !ok {
		logging.ReceptionLogger.Warn("goodbye for unknown client", zap.String("client_id", c.ID))
		r.m.Unlock()
		return
	}
	delete(r.clients, c)
	conn.closed = true
	joined := conn.joined
	matchID := conn.match
	userID := conn.user
	if joined {
		r.dropFromMatch(conn)
	}
	r.m.Unlock()
	if !joined {
		return
	}
	err := r.coordinator.Leave(ctx, matchID, userID)
	if err != nil && !errors.Is(err, errors.KindMatchNotActive) {
		errors.Log(logging.ReceptionLogger, errors.Wrap(err, "leave match for disconnected client",
			errors.Details{"match": matchID, "user": userID}))
	}
}

// Notify fans the broadcast event out to all clients that joined the match.
// Slow clients are skipped so that match handling never stalls on a full send
// buffer.
func (r *Reception) Notify(matchID messages.MatchID, container messages.MessageContainer) {
	raw, err := messages.MarshalContainer(container)
	if err != nil {
		errors.Log(logging.ReceptionLogger, errors.Wrap(err, "marshal broadcast container", nil))
		return
	}
	r.m.RLock()
	defer r.m.RUnlock()
	for conn := range r.byMatch[matchID] {
		select {
		case conn.client.Send <- raw:
		default:
			logging.ReceptionLogger.Warn("dropping broadcast for slow client",
				zap.String("client_id", conn.client.ID),
				zap.Any("match_id", matchID),
				zap.Any("message_type", container.MessageType))
		}
	}
}

func (r *Reception) handleMessage(ctx context.Context, conn *connection, container messages.MessageContainer) error {
	switch container.MessageType {
	case messages.MessageTypeHello:
		return r.handleHello(conn, container)
	case messages.MessageTypeJoinMatch:
		return r.handleJoinMatch(ctx, conn, container)
	case messages.MessageTypeSubmit:
		return r.handleSubmit(ctx, conn, container)
	case messages.MessageTypeLeaveMatch:
		return r.handleLeaveMatch(ctx, conn, container)
	case messages.MessageTypeResyncRequest:
		return r.handleResyncRequest(ctx, conn, container)
	default:
		return errors.NewForbiddenMessageError(string(container.MessageType), container.Content)
	}
}

func (r *Reception) handleHello(conn *connection, container messages.MessageContainer) error {
	var hello messages.MessageHello
	err := messages.ParsePayload(container, &hello)
	if err != nil {
		return errors.Wrap(err, "parse hello message", nil)
	}
	if hello.User == "" {
		return errors.NewForbiddenMessageError(string(container.MessageType), container.Content)
	}
	r.m.Lock()
	conn.user = hello.User
	r.m.Unlock()
	logging.ReceptionLogger.Info("client said hello",
		zap.String("client_id", conn.client.ID),
		zap.Any("user", hello.User))
	return r.send(conn, messages.MessageTypeWelcome, "", messages.MessageWelcome{User: hello.User})
}

func (r *Reception) handleJoinMatch(ctx context.Context, conn *connection, container messages.MessageContainer) error {
	var joinMessage messages.MessageJoinMatch
	err := messages.ParsePayload(container, &joinMessage)
	if err != nil {
		return errors.Wrap(err, "parse join-match message", nil)
	}
	userID := joinMessage.User
	if userID == "" {
		r.m.RLock()
		userID = conn.user
		r.m.RUnlock()
	}
	if userID == "" || container.MatchID == "" {
		return errors.NewForbiddenMessageError(string(container.MessageType), container.Content)
	}
	slot, err := r.coordinator.Join(ctx, container.MatchID, userID)
	if err != nil {
		return errors.Wrap(err, "join match", errors.Details{"match": container.MatchID, "user": userID})
	}
	r.m.Lock()
	if conn.closed {
		// The client disconnected while the join was in flight. The goodbye could
		// not leave for it as it was not registered yet, so undo the join here.
		r.m.Unlock()
		err = r.coordinator.Leave(ctx, container.MatchID, userID)
		if err != nil {
			errors.Log(logging.ReceptionLogger, errors.Wrap(err, "leave match for client disconnected during join",
				errors.Details{"match": container.MatchID, "user": userID}))
		}
		return nil
	}
	if conn.joined && conn.match != container.MatchID {
		// Watching only one match per connection keeps fan-out bookkeeping simple.
		r.dropFromMatch(conn)
	}
	conn.user = userID
	conn.match = container.MatchID
	conn.joined = true
	matchConns, ok := r.byMatch[container.MatchID]
	if !ok {
		matchConns = make(map[*connection]struct{})
		r.byMatch[container.MatchID] = matchConns
	}
	matchConns[conn] = struct{}{}
	r.m.Unlock()
	return r.send(conn, messages.MessageTypeMatchJoined, container.MatchID, messages.MessageMatchJoined{
		User: userID,
		Slot: slot,
	})
}

func (r *Reception) handleSubmit(ctx context.Context, conn *connection, container messages.MessageContainer) error {
	var submitMessage messages.MessageSubmit
	err := messages.ParsePayload(container, &submitMessage)
	if err != nil {
		return errors.Wrap(err, "parse submit message", nil)
	}
	err = r.coordinator.Submit(ctx, container.MatchID, arena.Submission{
		User:           submitMessage.User,
		Sequence:       submitMessage.Sequence,
		Language:       submitMessage.Language,
		Code:           submitMessage.Code,
		Question:       submitMessage.Question,
		SelectedOption: submitMessage.SelectedOption,
	})
	if err != nil {
		return errors.Wrap(err, "submit", errors.Details{
			"match":    container.MatchID,
			"user":     submitMessage.User,
			"sequence": submitMessage.Sequence,
		})
	}
	return r.send(conn, messages.MessageTypeSubmitAccepted, container.MatchID, messages.MessageSubmitAccepted{
		User:     submitMessage.User,
		Sequence: submitMessage.Sequence,
	})
}

func (r *Reception) handleLeaveMatch(ctx context.Context, conn *connection, container messages.MessageContainer) error {
	var leaveMessage messages.MessageLeaveMatch
	err := messages.ParsePayload(container, &leaveMessage)
	if err != nil {
		return errors.Wrap(err, "parse leave-match message", nil)
	}
	err = r.coordinator.Leave(ctx, container.MatchID, leaveMessage.User)
	if err != nil {
		return errors.Wrap(err, "leave match", errors.Details{"match": container.MatchID, "user": leaveMessage.User})
	}
	r.m.Lock()
	if conn.joined && conn.match == container.MatchID {
		r.dropFromMatch(conn)
		conn.joined = false
		conn.match = ""
	}
	r.m.Unlock()
	return r.send(conn, messages.MessageTypeOK, container.MatchID, nil)
}

func (r *Reception) handleResyncRequest(ctx context.Context, conn *connection, container messages.MessageContainer) error {
	snapshot, err := r.coordinator.Snapshot(ctx, container.MatchID)
	if err != nil {
		return errors.Wrap(err, "snapshot match", errors.Details{"match": container.MatchID})
	}
	snapshotContainer, err := messages.ComposeContainer(messages.MessageTypeFullState, container.MatchID,
		snapshot.Seq, snapshot)
	if err != nil {
		return errors.Wrap(err, "compose full-state container", nil)
	}
	return r.sendContainer(conn, snapshotContainer)
}

// dropFromMatch removes the connection from the byMatch index. The caller must
// hold the write lock.
func (r *Reception) dropFromMatch(conn *connection) {
	matchConns, ok := r.byMatch[conn.match]
	if !ok {
		return
	}
	delete(matchConns, conn)
	if len(matchConns) == 0 {
		delete(r.byMatch, conn.match)
	}
}

func (r *Reception) send(conn *connection, messageType messages.MessageType, matchID messages.MatchID,
	payload interface{}) error {
	container, err := messages.ComposeContainer(messageType, matchID, 0, payload)
	if err != nil {
		return errors.Wrap(err, "compose message container", nil)
	}
	return r.sendContainer(conn, container)
}

// sendContainer marshals and sends the container to the client. The send
// happens under the read lock so that SayGoodbyeToClient cannot complete, and
// therefore the hub cannot close the send-channel, while a send is in flight.
// Sends for closed or slow clients are dropped.
func (r *Reception) sendContainer(conn *connection, container messages.MessageContainer) error {
	raw, err := messages.MarshalContainer(container)
	if err != nil {
		return errors.Wrap(err, "marshal message container", nil)
	}
	logging.MessageLogger.Debug(string(container.Content),
		zap.String("client_id", conn.client.ID),
		zap.String("dir", "outgoing"),
		zap.Any("match_id", container.MatchID),
		zap.Any("message_type", container.MessageType))
	r.m.RLock()
	defer r.m.RUnlock()
	if conn.closed {
		logging.ReceptionLogger.Debug("dropping reply for disconnected client",
			zap.String("client_id", conn.client.ID),
			zap.Any("message_type", container.MessageType))
		return nil
	}
	select {
	case conn.client.Send <- raw:
	default:
		logging.ReceptionLogger.Warn("dropping reply for slow client",
			zap.String("client_id", conn.client.ID),
			zap.Any("message_type", container.MessageType))
	}
	return nil
}

// logAndSendError logs the error and notifies the client with a message of
// type error. Errors that blame the user are only logged at debug level.
func (r *Reception) logAndSendError(conn *connection, matchID messages.MatchID, e error) {
	if errors.BlameUser(e) {
		logging.ReceptionLogger.Debug("client request rejected",
			zap.String("client_id", conn.client.ID),
			zap.String("reason", e.Error()))
	} else {
		errors.Log(logging.ReceptionLogger, e)
	}
	err := r.send(conn, messages.MessageTypeError, matchID, messages.MessageErrorFromError(e))
	if err != nil {
		errors.Log(logging.ReceptionLogger, errors.Wrap(err, "send error message", nil))
	}
}
