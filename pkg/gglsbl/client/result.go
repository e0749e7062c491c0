package client

import (
	"encoding/json"
	"fmt"
)

// Outcome classifies the result of a call.
type Outcome int

const (
	// Found means the service answered 200.
	Found Outcome = iota
	// NotFound means the lookup service answered 404.
	NotFound
	// Error means the service answered with an unexpected status code.
	Error
	// Timeout means the service did not answer within the client timeout.
	Timeout
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Error:
		return "error"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// PayloadKind tells which field of a Payload is set.
type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadJSON
	PayloadText
)

// Payload is a decoded response body: either a JSON value or raw text.
type Payload struct {
	Kind PayloadKind
	JSON any
	Text string
}

// JSONPayload wraps a decoded JSON value.
func JSONPayload(v any) Payload {
	return Payload{Kind: PayloadJSON, JSON: v}
}

// TextPayload wraps a body that could not be decoded as JSON.
func TextPayload(s string) Payload {
	return Payload{Kind: PayloadText, Text: s}
}

// Value returns the JSON value or the text, whichever is set.
func (p Payload) Value() any {
	switch p.Kind {
	case PayloadJSON:
		return p.JSON
	case PayloadText:
		return p.Text
	default:
		return nil
	}
}

// Result is what Lookup and ServiceStatus return.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
	Payload    Payload
}

// OK reports whether the call produced a payload worth printing.
func (r *Result) OK() bool {
	return r != nil && (r.Outcome == Found || r.Outcome == NotFound)
}

func newResult(o Outcome, resp *Response, p Payload) *Result {
	return &Result{
		Outcome:    o,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Payload:    p,
	}
}

// decodeJSON accepts exactly one JSON value, surrounded by optional
// whitespace.
func decodeJSON(body []byte) (Payload, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return JSONPayload(v), nil
}
