// transport_http.go implements the network transport.

package gatey

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/strongdm/gatey-go/pkg/gatey/api"
)

// MethodEventCapture is the API method events are submitted to.
const MethodEventCapture = "event.capture"

// HTTPTransport sends events to the Gatey API with project authentication.
type HTTPTransport struct {
	gateway *api.Gateway
}

// NewHTTPTransport creates a network transport. The gateway credentials must
// carry a project id and a server or client secret.
func NewHTTPTransport(gw *api.Gateway) (*HTTPTransport, error) {
	if gw == nil {
		return nil, &ConfigError{Field: "gateway", Reason: "network transport requires an API gateway"}
	}
	auth := gw.Auth()
	if auth.ProjectID == "" {
		return nil, &ConfigError{Field: "project_id", Reason: "network transport requires a project id"}
	}
	if auth.ServerSecret == "" && auth.ClientSecret == "" {
		return nil, &ConfigError{Field: "secret", Reason: "network transport requires a server or client secret"}
	}
	return &HTTPTransport{gateway: gw}, nil
}

// Send submits the event. API rejections are returned as *api.APIError,
// network and format failures as *api.ResponseError.
func (t *HTTPTransport) Send(ctx context.Context, event Event) error {
	params, err := eventParams(event)
	if err != nil {
		return &TransportError{Transport: "http", Err: err}
	}
	_, err = t.gateway.CallMethod(ctx, MethodEventCapture, params, api.WithProjectAuth())
	return err
}

// eventParams encodes the structured event fields as JSON query parameters.
func eventParams(event Event) (url.Values, error) {
	params := url.Values{}
	params.Set("level", event.Level)

	if event.Message != "" {
		b, err := json.Marshal(event.Message)
		if err != nil {
			return nil, err
		}
		params.Set("message", string(b))
	}
	if event.Exception != nil {
		b, err := json.Marshal(event.Exception)
		if err != nil {
			return nil, err
		}
		params.Set("exception", string(b))
	}

	tags := event.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	params.Set("tags", string(b))
	return params, nil
}
