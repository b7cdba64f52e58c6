// response.go wraps a parsed API response.

package api

import (
	"errors"

	"github.com/tidwall/gjson"
)

var (
	errNotJSON   = errors.New("body is not valid JSON")
	errNotObject = errors.New("body is not a JSON object")
)

// Response is a successful or failed API response.
//
// A response body is a JSON object carrying either a "success" object or an
// "error" object, plus the protocol version marker "v".
type Response struct {
	statusCode int
	raw        []byte
	root       gjson.Result
}

// parseResponse validates the body strictly. Anything that is not a JSON
// object is rejected so callers can tell format failures from API errors.
func parseResponse(statusCode int, body []byte) (*Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, errNotJSON
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, errNotObject
	}
	return &Response{statusCode: statusCode, raw: body, root: root}, nil
}

// Get returns a field of the success object. The key uses gjson path syntax,
// so nested fields can be addressed as "project.name".
func (r *Response) Get(key string) gjson.Result {
	return r.Success().Get(key)
}

// Has reports whether the success object contains the key.
func (r *Response) Has(key string) bool {
	return r.Get(key).Exists()
}

// Success returns the success object, or an empty result when absent.
func (r *Response) Success() gjson.Result {
	return r.root.Get("success")
}

// Version returns the protocol version marker, "-" when missing.
func (r *Response) Version() string {
	v := r.root.Get("v")
	if !v.Exists() {
		return "-"
	}
	return v.String()
}

// StatusCode returns the HTTP status code of the response.
func (r *Response) StatusCode() int {
	return r.statusCode
}

// Raw returns the raw response body.
func (r *Response) Raw() []byte {
	return r.raw
}

// apiError extracts the structured error, if any.
func (r *Response) apiError(method string) *APIError {
	errObj := r.root.Get("error")
	if !errObj.Exists() || errObj.Type == gjson.Null {
		return nil
	}

	code := int(errObj.Get("code").Int())
	message := errObj.Get("message").String()
	exc := errObj.Get("exc").String()
	if code == ErrorCodeValidation && exc != "" {
		message = message + " Additional exception information: " + exc
	}

	return &APIError{
		Method:   method,
		Code:     code,
		Message:  message,
		Status:   int(errObj.Get("status").Int()),
		Exc:      exc,
		Response: r,
	}
}
