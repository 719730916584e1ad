package judge

import (
	"context"

	"github.com/lefinal/arena-server/errors"
)

// MockJudge is a Judge for tests. Judge calls forward the request to Requests
// and wait for a reply on Verdicts or Fail.
type MockJudge struct {
	// Requests receives every Request passed to Judge.
	Requests chan Request
	// Verdicts provides the Verdict to return for a Judge call.
	Verdicts chan Verdict
	// Fail provides errors to return instead of a Verdict. Judge selects over
	// Verdicts and Fail, so only feed one of them per call.
	Fail chan error
}

// NewMockJudge creates a MockJudge with unbuffered channels.
func NewMockJudge() *MockJudge {
	return &MockJudge{
		Requests: make(chan Request),
		Verdicts: make(chan Verdict),
		Fail:     make(chan error),
	}
}

// Judge forwards the request to Requests and returns whatever is fed via
// Verdicts or Fail.
func (m *MockJudge) Judge(ctx context.Context, request Request) (Verdict, error) {
	select {
	case <-ctx.Done():
		return Verdict{}, errors.NewContextAbortedError("forward judge request in mock")
	case m.Requests <- request:
	}
	select {
	case <-ctx.Done():
		return Verdict{}, errors.NewContextAbortedError("await judge verdict in mock")
	case verdict := <-m.Verdicts:
		return verdict, nil
	case err := <-m.Fail:
		return Verdict{}, err
	}
}

// StaticJudge is a Judge that always returns the same Verdict. Useful for
// tests that do not care about judge interaction details.
type StaticJudge struct {
	// Verdict is returned for every Judge call.
	Verdict Verdict
	// Err is returned instead if set.
	Err error
}

// Judge returns the static Verdict or Err.
func (s *StaticJudge) Judge(_ context.Context, _ Request) (Verdict, error) {
	if s.Err != nil {
		return Verdict{}, s.Err
	}
	return s.Verdict, nil
}
