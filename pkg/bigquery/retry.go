package bigquery

import (
	"net/http"
	"slices"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	// jobsCreatePermission shows up while a freshly granted IAM role is still
	// propagating. The check passes once propagation finishes.
	jobsCreatePermission = "bigquery.jobs.create"

	// jobTimeoutMarker is the prefix of the message BigQuery reports for a job
	// that exceeded its JobTimeout.
	jobTimeoutMarker = "Job timed out after"
)

var (
	retryStatusCodes = []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
	}

	retryReasons = []string{
		"rateLimitExceeded",
		"userRateLimitExceeded",
		"backendError",
		"jobRateLimitExceeded",
	}
)

// ShouldRetry reports whether a failed warehouse call is worth repeating.
//
// The policy is an allow-list: transport codes 429, 500 and 503, expired OAuth
// grants, and error entries whose reason is a rate-limit or backend error (or
// whose message names the jobs.create permission) are retried. Everything else,
// including reasons this function has never seen, is not.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if code, ok := statusCode(err); ok {
		if slices.Contains(retryStatusCodes, code) {
			return true
		}
		if code >= 200 && code < 300 {
			return false
		}
	}

	var jobErr *bigquery.Error
	if errors.As(err, &jobErr) && retryableEntry(jobErr.Reason, jobErr.Message) {
		return true
	}

	var body any
	if err := json.Unmarshal([]byte(responseBody(err)), &body); err != nil {
		return false
	}

	doc, ok := body.(map[string]any)
	if !ok {
		return false
	}

	rawError, ok := doc["error"]
	if !ok {
		return false
	}

	// {"error":"invalid_grant","error_description":"Invalid JWT Signature."}
	if grant, ok := rawError.(string); ok {
		return strings.Contains(grant, "invalid_grant")
	}

	errorDoc, ok := rawError.(map[string]any)
	if !ok {
		return false
	}

	entries, ok := errorDoc["errors"].([]any)
	if !ok {
		return false
	}

	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		reason, _ := fields["reason"].(string)
		message, _ := fields["message"].(string)
		if retryableEntry(reason, message) {
			return true
		}
	}

	return false
}

// Classify tags a warehouse error with its outcome kind. retry decides which
// failures are transient; nil means ShouldRetry. Job timeouts are never
// Retryable.
func Classify(err error, retry func(error) bool) outcome.Kind {
	if retry == nil {
		retry = ShouldRetry
	}

	switch {
	case err == nil:
		return outcome.OK
	case IsJobTimeout(err):
		return outcome.Timeout
	case retry(err):
		return outcome.Retryable
	default:
		return outcome.Fatal
	}
}

// IsJobTimeout reports whether err is BigQuery killing a job that ran longer
// than its JobTimeout.
func IsJobTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), jobTimeoutMarker)
}

func retryableEntry(reason, message string) bool {
	return slices.Contains(retryReasons, reason) || strings.Contains(message, jobsCreatePermission)
}

func statusCode(err error) (int, bool) {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}

	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) && tokenErr.Response != nil {
		return tokenErr.Response.StatusCode, true
	}

	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) {
		return coded.StatusCode(), true
	}

	return 0, false
}

func responseBody(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		return apiErr.Body
	}

	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) && len(tokenErr.Body) > 0 {
		return string(tokenErr.Body)
	}

	return err.Error()
}
