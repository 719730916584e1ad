package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lefinal/arena-server/errors"
)

const (
	// DefaultRequestTimeout is the default timeout for a single judge request.
	DefaultRequestTimeout = 30 * time.Second
	// judgePath is the endpoint path for judging submissions.
	judgePath = "/v1/judge"
)

// HTTPJudge is a Judge that calls the judge collaborator via HTTP.
type HTTPJudge struct {
	// baseURL is the base URL of the judge collaborator.
	baseURL string
	// httpClient is the client used for requests. It carries the request timeout.
	httpClient *http.Client
}

// NewHTTPJudge creates a new HTTPJudge for the judge collaborator at the given
// base URL. A non-positive timeout falls back to DefaultRequestTimeout.
func NewHTTPJudge(baseURL string, timeout time.Duration) *HTTPJudge {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &HTTPJudge{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Judge POSTs the given Request to the judge collaborator and parses the
// returned Verdict. Transport failures are returned as errors.ErrCommunication
// with kind errors.KindJudgeUnavailable so that the submission pipeline can
// retry.
func (j *HTTPJudge) Judge(ctx context.Context, request Request) (Verdict, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return Verdict{}, errors.Error{
			Code:    errors.ErrInternal,
			Kind:    errors.KindEncodeJSON,
			Err:     err,
			Message: "marshal judge request",
		}
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+judgePath, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, errors.NewInternalErrorFromErr(err, "create judge request", errors.Details{"baseURL": j.baseURL})
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	response, err := j.httpClient.Do(httpRequest)
	if err != nil {
		return Verdict{}, errors.Error{
			Code:    errors.ErrCommunication,
			Kind:    errors.KindJudgeUnavailable,
			Err:     err,
			Message: "judge request failed",
			Details: errors.Details{"baseURL": j.baseURL},
		}
	}
	defer func() {
		_ = response.Body.Close()
	}()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(response.Body)
		return Verdict{}, errors.Error{
			Code:    errors.ErrCommunication,
			Kind:    errors.KindJudgeUnavailable,
			Message: fmt.Sprintf("judge returned status code %d", response.StatusCode),
			Details: errors.Details{
				"statusCode": response.StatusCode,
				"response":   string(responseBody),
			},
		}
	}
	var verdict Verdict
	err = json.NewDecoder(response.Body).Decode(&verdict)
	if err != nil {
		return Verdict{}, errors.Error{
			Code:    errors.ErrCommunication,
			Kind:    errors.KindJudgeUnavailable,
			Err:     err,
			Message: "decode judge response",
		}
	}
	return verdict, nil
}
