// Package api defines the node's request/response wire contract: a
// CBOR-encoded envelope dispatched on (method, path) through a
// declarative route table.
package api

import (
	"fmt"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// Method is the request verb.
type Method uint8

const (
	Get Method = iota + 1
	Post
	Put
	Delete
)

func (m Method) String() string {
	switch m {
	case Get:
		return "GET"
	case Post:
		return "POST"
	case Put:
		return "PUT"
	case Delete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Response status codes.
const (
	StatusOK            = 200
	StatusBadRequest    = 400
	StatusNotFound      = 404
	StatusConflict      = 409
	StatusInternalError = 500
)

// Request is the inbound envelope.
type Request struct {
	ID      uint32 `cbor:"1,keyasint"`
	Method  Method `cbor:"2,keyasint"`
	Path    string `cbor:"3,keyasint"`
	HasBody bool   `cbor:"4,keyasint"`
	Body    []byte `cbor:"5,keyasint,omitempty"`
}

// Response is the outbound envelope. ID always echoes the request.
type Response struct {
	ID      uint32 `cbor:"1,keyasint"`
	Status  int    `cbor:"2,keyasint"`
	HasBody bool   `cbor:"3,keyasint"`
	Body    []byte `cbor:"4,keyasint,omitempty"`
}

var nextID atomic.Uint32

// NewRequest builds a request envelope with a fresh id. A non-nil body
// is CBOR-encoded in place.
func NewRequest(method Method, path string, body any) (Request, error) {
	req := Request{
		ID:     nextID.Add(1),
		Method: method,
		Path:   path,
	}
	if body != nil {
		buf, err := cbor.Marshal(body)
		if err != nil {
			return Request{}, fmt.Errorf("encode request body: %w", err)
		}
		req.HasBody = true
		req.Body = buf
	}
	return req, nil
}

// OK builds a 200 response echoing id, with an optional encoded body.
func OK(id uint32, body any) (Response, error) {
	res := Response{ID: id, Status: StatusOK}
	if body != nil {
		buf, err := cbor.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("encode response body: %w", err)
		}
		res.HasBody = true
		res.Body = buf
	}
	return res, nil
}

// Error builds a response with the given status and a plain-text body.
func Error(id uint32, status int, text string) Response {
	body, _ := cbor.Marshal(text)
	return Response{ID: id, Status: status, HasBody: true, Body: body}
}

// Encode serializes an envelope.
func Encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

// DecodeRequest parses an inbound request envelope.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := cbor.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// DecodeResponse parses an inbound response envelope.
func DecodeResponse(data []byte) (Response, error) {
	var res Response
	if err := cbor.Unmarshal(data, &res); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return res, nil
}

// DecodeBody parses a CBOR body into out.
func DecodeBody(data []byte, out any) error {
	if err := cbor.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// Text extracts a plain-text body from a response, for error messages.
func (r Response) Text() string {
	if !r.HasBody {
		return ""
	}
	var s string
	if err := cbor.Unmarshal(r.Body, &s); err != nil {
		return fmt.Sprintf("<%d bytes>", len(r.Body))
	}
	return s
}
