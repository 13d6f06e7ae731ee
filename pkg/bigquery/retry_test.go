package bigquery_test

import (
	"net/http"
	"testing"

	bq "cloud.google.com/go/bigquery"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/bigquery"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.code }

func apiError(code int, body string) error {
	return &googleapi.Error{Code: code, Body: body, Message: "request failed"}
}

func errorsBody(reason, message string) string {
	return `{"error":{"code":400,"message":"` + message + `","errors":[{"message":"` + message + `","domain":"global","reason":"` + reason + `"}]}}`
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "too many requests", err: apiError(http.StatusTooManyRequests, ""), expected: true},
		{name: "internal server error", err: apiError(http.StatusInternalServerError, ""), expected: true},
		{name: "service unavailable", err: apiError(http.StatusServiceUnavailable, ""), expected: true},
		{name: "status 200", err: apiError(200, errorsBody("backendError", "x")), expected: false},
		{name: "status 210", err: apiError(210, errorsBody("backendError", "x")), expected: false},
		{name: "status 299", err: apiError(299, errorsBody("backendError", "x")), expected: false},
		{name: "non-json message", err: errors.New("This is not a JSON"), expected: false},
		{name: "json without error field", err: errors.New(`{"message":"nope"}`), expected: false},
		{name: "json array", err: errors.New(`[1,2,3]`), expected: false},
		{
			name:     "invalid grant",
			err:      errors.New(`{"error":"invalid_grant","error_description":"Invalid JWT Signature."}`),
			expected: true,
		},
		{name: "other grant error", err: errors.New(`{"error":"access_denied"}`), expected: false},
		{name: "rate limit", err: errors.New(errorsBody("rateLimitExceeded", "Exceeded rate limits")), expected: true},
		{name: "user rate limit", err: errors.New(errorsBody("userRateLimitExceeded", "slow down")), expected: true},
		{name: "backend error", err: errors.New(errorsBody("backendError", "oops")), expected: true},
		{name: "job rate limit", err: errors.New(errorsBody("jobRateLimitExceeded", "too many jobs")), expected: true},
		{
			name:     "jobs.create permission",
			err:      errors.New(errorsBody("accessDenied", "Access Denied: User does not have bigquery.jobs.create permission")),
			expected: true,
		},
		{name: "unknown reason", err: errors.New(errorsBody("unknownReason", "weird")), expected: false},
		{name: "invalid query", err: errors.New(errorsBody("invalidQuery", "Syntax error")), expected: false},
		{name: "errors is not a list", err: errors.New(`{"error":{"errors":"backendError"}}`), expected: false},
		{
			name:     "googleapi body with retryable reason",
			err:      apiError(http.StatusBadRequest, errorsBody("rateLimitExceeded", "Exceeded rate limits")),
			expected: true,
		},
		{
			name:     "googleapi body with fatal reason",
			err:      apiError(http.StatusBadRequest, errorsBody("invalidQuery", "Syntax error")),
			expected: false,
		},
		{
			name:     "googleapi not found",
			err:      apiError(http.StatusNotFound, errorsBody("notFound", "Not found: Table")),
			expected: false,
		},
		{
			name: "oauth invalid grant",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusBadRequest},
				Body:     []byte(`{"error":"invalid_grant","error_description":"Invalid JWT Signature."}`),
			},
			expected: true,
		},
		{
			name: "oauth service unavailable",
			err: &oauth2.RetrieveError{
				Response: &http.Response{StatusCode: http.StatusServiceUnavailable},
			},
			expected: true,
		},
		{name: "status code method", err: &statusError{code: 429, msg: "slow down"}, expected: true},
		{name: "job error with retryable reason", err: &bq.Error{Reason: "backendError", Message: "boom"}, expected: true},
		{name: "job error with fatal reason", err: &bq.Error{Reason: "invalidQuery", Message: "Syntax error"}, expected: false},
		{
			name:     "wrapped googleapi error",
			err:      errors.Wrap(apiError(http.StatusServiceUnavailable, ""), "failed to run query"),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, bigquery.ShouldRetry(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected outcome.Kind
	}{
		{name: "nil", err: nil, expected: outcome.OK},
		{name: "timeout", err: &bq.Error{Reason: "timeout", Message: "Job timed out after 1 sec"}, expected: outcome.Timeout},
		{name: "retryable", err: apiError(http.StatusServiceUnavailable, ""), expected: outcome.Retryable},
		{name: "fatal", err: errors.New("Syntax error"), expected: outcome.Fatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, bigquery.Classify(tt.err, nil))
			require.Equal(t, tt.expected, bigquery.Classify(tt.err, bigquery.ShouldRetry))
		})
	}

	t.Run("custom retry policy", func(t *testing.T) {
		always := func(error) bool { return true }
		never := func(error) bool { return false }

		require.Equal(t, outcome.Retryable, bigquery.Classify(errors.New("Syntax error"), always))
		require.Equal(t, outcome.Fatal, bigquery.Classify(apiError(http.StatusServiceUnavailable, ""), never))
		require.Equal(t, outcome.Timeout, bigquery.Classify(errors.New("Job timed out after 1 sec"), always))
	})
}
