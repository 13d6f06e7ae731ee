package bigquery

import (
	"cloud.google.com/go/bigquery"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/pseudomuto/bqtransform/pkg/outcome"
	"google.golang.org/api/googleapi"
)

// ErrorMessage extracts the human readable message from a warehouse error:
// error.message from a JSON error document when there is one, otherwise the
// error text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var tagged *outcome.Error
	if errors.As(err, &tagged) && tagged.Kind == outcome.Timeout {
		return tagged.Message
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if msg, ok := jsonErrorMessage(apiErr.Body); ok {
			return msg
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}

	var jobErr *bigquery.Error
	if errors.As(err, &jobErr) && jobErr.Message != "" {
		return jobErr.Message
	}

	if msg, ok := jsonErrorMessage(err.Error()); ok {
		return msg
	}

	return err.Error()
}

func jsonErrorMessage(body string) (string, bool) {
	if body == "" {
		return "", false
	}

	var doc struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal([]byte(body), &doc); err != nil || doc.Error.Message == "" {
		return "", false
	}

	return doc.Error.Message, true
}
