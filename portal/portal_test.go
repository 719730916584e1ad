package portal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/lefinal/arena-server/event"
	"github.com/lefinal/arena-server/messages"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const waitTimeout = 3 * time.Second

// mockMQTTRouter mocks mqttRouter with an in-memory handler registry.
type mockMQTTRouter struct {
	m        sync.Mutex
	handlers map[string]paho.MessageHandler
}

func newMockMQTTRouter() *mockMQTTRouter {
	return &mockMQTTRouter{handlers: make(map[string]paho.MessageHandler)}
}

func (router *mockMQTTRouter) RegisterHandler(topic string, handler paho.MessageHandler) {
	router.m.Lock()
	defer router.m.Unlock()
	router.handlers[topic] = handler
}

func (router *mockMQTTRouter) UnregisterHandler(topic string) {
	router.m.Lock()
	defer router.m.Unlock()
	delete(router.handlers, topic)
}

func (router *mockMQTTRouter) publish(topic string, payload []byte) {
	router.m.Lock()
	handler, ok := router.handlers[topic]
	router.m.Unlock()
	if !ok {
		return
	}
	handler(&paho.Publish{Topic: topic, Payload: payload})
}

type routerTestSuite struct {
	suite.Suite
	mqtt   *mockMQTTRouter
	router *router
}

func (suite *routerTestSuite) SetupTest() {
	suite.mqtt = newMockMQTTRouter()
	suite.router = newRouter(zap.NewNop(), suite.mqtt)
}

func (suite *routerTestSuite) TestForwardToAllSubscriptions() {
	lifetime, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwardA := make(chan event.Event[any], 1)
	forwardB := make(chan event.Event[any], 1)
	suite.router.subscribe(lifetime, "garden", forwardA)
	suite.router.subscribe(lifetime, "garden", forwardB)
	go suite.mqtt.publish("garden", []byte(`{"hello":"there"}`))
	for i, forward := range []chan event.Event[any]{forwardA, forwardB} {
		select {
		case <-time.After(waitTimeout):
			suite.Failf("timeout", "timeout while waiting for forwarded message %d", i)
		case e := <-forward:
			suite.Assert().Equal("garden", e.Publish.Topic, "forwarded topic should match")
		}
	}
}

func (suite *routerTestSuite) TestUnsubscribeUnregistersHandler() {
	lifetime, cancel := context.WithCancel(context.Background())
	forward := make(chan event.Event[any], 1)
	suite.router.subscribe(lifetime, "garden", forward)
	cancel()
	suite.Require().Eventually(func() bool {
		suite.mqtt.m.Lock()
		defer suite.mqtt.m.Unlock()
		_, ok := suite.mqtt.handlers["garden"]
		return !ok
	}, waitTimeout, 10*time.Millisecond, "handler should be unregistered after unsubscribe")
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(routerTestSuite))
}

type matchMonitorTestSuite struct {
	suite.Suite
	portal  *Stub
	monitor *MatchMonitor
}

func (suite *matchMonitorTestSuite) SetupTest() {
	suite.portal = &Stub{}
	suite.monitor = NewMatchMonitor(suite.portal)
}

func (suite *matchMonitorTestSuite) TestMirrorBroadcast() {
	suite.portal.On("Publish", mock.Anything, topicForMatchEvents("apple"), mock.Anything).Once()
	container, err := messages.ComposeContainer(messages.MessageTypeCountdown, "apple", 4,
		messages.MessageCountdown{RemainingSec: 12})
	suite.Require().Nil(err, "composing container should not fail")
	suite.monitor.Notify("apple", container)
	suite.portal.AssertExpectations(suite.T())
}

func (suite *matchMonitorTestSuite) TestAnnounceFinish() {
	suite.portal.On("Publish", mock.Anything, topicForMatchEvents("apple"), mock.Anything).Once()
	suite.portal.On("Publish", mock.Anything, topicForMatchFinished("apple"), mock.Anything).Once()
	container, err := messages.ComposeContainer(messages.MessageTypeMatchFinished, "apple", 9,
		messages.MessageMatchFinished{State: messages.MatchStateFinished, Reason: "completed", Winner: "ada"})
	suite.Require().Nil(err, "composing container should not fail")
	suite.monitor.Notify("apple", container)
	suite.portal.AssertExpectations(suite.T())
}

func (suite *matchMonitorTestSuite) TestAnnounceMirrorFailure() {
	suite.portal.On("Publish", mock.Anything, topicErrors, mock.AnythingOfType("event.ErrorEventPayload")).Once()
	suite.monitor.Notify("apple", messages.MessageContainer{
		MessageType: messages.MessageTypeCountdown,
		MatchID:     "apple",
		Seq:         4,
		Content:     json.RawMessage(`{broken`),
	})
	suite.portal.AssertExpectations(suite.T())
}

func TestMatchMonitor(t *testing.T) {
	suite.Run(t, new(matchMonitorTestSuite))
}
