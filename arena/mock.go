package arena

import (
	"context"
	"sync"

	"github.com/lefinal/arena-server/messages"
)

// MockNotifier is a Notifier for tests that records all broadcast events in
// order and signals each one via Notified.
type MockNotifier struct {
	m sync.Mutex
	// records holds all broadcast events in delivery order.
	records []messages.MessageContainer
	// Notified receives every delivered broadcast event.
	Notified chan messages.MessageContainer
}

// NewMockNotifier creates a MockNotifier with a generously buffered Notified
// channel so that broadcasts never block.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		Notified: make(chan messages.MessageContainer, 256),
	}
}

func (notifier *MockNotifier) Notify(_ messages.MatchID, container messages.MessageContainer) {
	notifier.m.Lock()
	notifier.records = append(notifier.records, container)
	notifier.m.Unlock()
	notifier.Notified <- container
}

// Records returns a copy of all recorded broadcast events.
func (notifier *MockNotifier) Records() []messages.MessageContainer {
	notifier.m.Lock()
	defer notifier.m.Unlock()
	records := make([]messages.MessageContainer, len(notifier.records))
	copy(records, notifier.records)
	return records
}

// MockUserStore is a UserStore for tests with static ratings.
type MockUserStore struct {
	// Ratings by user id. Users not contained fall back to DefaultRating.
	Ratings map[messages.UserID]int
	// DefaultRating is used for unknown users.
	DefaultRating int
}

func (store *MockUserStore) UserRatingByID(_ context.Context, userID messages.UserID) (int, error) {
	if rating, ok := store.Ratings[userID]; ok {
		return rating, nil
	}
	return store.DefaultRating, nil
}

// MockResultSink is a ResultSink for tests that records all consumed results
// and signals each one via Saved.
type MockResultSink struct {
	m sync.Mutex
	// results holds all consumed results in order.
	results []MatchResult
	// Saved receives every consumed result.
	Saved chan MatchResult
	// Fail is returned for SaveMatchResult calls if set.
	Fail error
}

// NewMockResultSink creates a MockResultSink with a buffered Saved channel.
func NewMockResultSink() *MockResultSink {
	return &MockResultSink{
		Saved: make(chan MatchResult, 16),
	}
}

func (sink *MockResultSink) SaveMatchResult(_ context.Context, result MatchResult) error {
	if sink.Fail != nil {
		return sink.Fail
	}
	sink.m.Lock()
	sink.results = append(sink.results, result)
	sink.m.Unlock()
	sink.Saved <- result
	return nil
}

// Results returns a copy of all consumed results.
func (sink *MockResultSink) Results() []MatchResult {
	sink.m.Lock()
	defer sink.m.Unlock()
	results := make([]MatchResult, len(sink.results))
	copy(results, sink.results)
	return results
}
