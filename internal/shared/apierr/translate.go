package apierr

import (
	"context"
	"errors"
)

// Response is the external error shape.
type Response struct {
	Type    Kind                   `json:"type"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Response renders the error for clients.
func (e *Error) Response() Response {
	if e.Kind == KindAggregate {
		nested := make([]Response, len(e.Errors))
		for i, member := range e.Errors {
			nested[i] = member.Response()
		}
		return Response{
			Type:    e.Kind,
			Message: e.Message,
			Data:    map[string]interface{}{"errors": nested},
		}
	}

	resp := Response{Type: e.Kind, Message: e.Message}
	if len(e.Data) > 0 {
		resp.Data = make(map[string]interface{}, len(e.Data))
		for k, v := range e.Data {
			resp.Data[k] = v
		}
	}
	return resp
}

// Translate maps any error to an HTTP status and a client response.
// Context expiry is reported as a coordination fault with an unknown outcome
// because the remote operation may still complete.
func Translate(err error) (int, Response) {
	if err == nil {
		return 0, Response{}
	}

	apiErr, ok := As(err)
	if !ok {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			apiErr = Wrap(KindCoordinationFault, "Operation abandoned before completion", err).
				With("outcome", "unknown")
		} else {
			apiErr = Internal(err)
		}
	}

	return apiErr.Kind.Status(), apiErr.Response()
}
