package client

import (
	"net/http"
)

// Outcome is the classification of a single transport attempt. The set of
// variants is closed: Success, RateLimited, ClientError and NetworkFailure.
type Outcome interface {
	outcome()
}

// Success is a 2xx response.
type Success struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RateLimited is a 429 response. RetryAfter holds the raw Retry-After header.
type RateLimited struct {
	RetryAfter    string
	HasRetryAfter bool
}

// ClientError is any non-2xx response other than 429, including 5xx.
type ClientError struct {
	StatusCode int
	Body       []byte
}

// NetworkFailure means no response was received.
type NetworkFailure struct {
	Err error
}

func (Success) outcome()        {}
func (RateLimited) outcome()    {}
func (ClientError) outcome()    {}
func (NetworkFailure) outcome() {}

// Classify derives the Outcome of one attempt from its response, body and
// transport error. resp is ignored when err is non-nil.
func Classify(resp *http.Response, body []byte, err error) Outcome {
	if err != nil {
		return NetworkFailure{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Success{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	case resp.StatusCode == http.StatusTooManyRequests:
		values := resp.Header.Values("Retry-After")
		if len(values) == 0 {
			return RateLimited{}
		}
		return RateLimited{RetryAfter: values[0], HasRetryAfter: true}
	default:
		return ClientError{StatusCode: resp.StatusCode, Body: body}
	}
}
