// Package judge provides the client for the external judge collaborator which
// runs submitted code against test cases and returns verdicts.
package judge

import (
	"context"
)

// TestCaseResult holds the evaluation detail for a single test case.
type TestCaseResult struct {
	// Passed describes whether the test case passed.
	Passed bool `json:"passed"`
	// Expected is the expected output.
	Expected string `json:"expected"`
	// Actual is the actual output of the submitted code.
	Actual string `json:"actual"`
}

// Verdict is the aggregated result of judging one submission.
type Verdict struct {
	// Passed is the number of passed test cases.
	Passed int `json:"passed"`
	// Total is the total number of test cases.
	Total int `json:"total"`
	// PerTest holds the per-test details.
	PerTest []TestCaseResult `json:"per_test"`
}

// Request is a judge request for one submission.
type Request struct {
	// Language is the programming language of the submitted code.
	Language string `json:"language"`
	// Code is the submitted code.
	Code string `json:"code"`
	// TestCases are the opaque test-case references. The test cases themselves are
	// owned by the content collaborator.
	TestCases []string `json:"test_cases"`
}

// Judge runs submissions against test cases. Implementations must be safely
// retryable as the submission pipeline retries once on transport failure.
type Judge interface {
	// Judge evaluates the given Request. It respects the deadline of the passed
	// context.Context.
	Judge(ctx context.Context, request Request) (Verdict, error)
}
