package llm

import "fmt"

// ConfigError means the tenant's model endpoint is not set up; the user
// has to fix the configuration before any request can go out.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "model service not configured: " + e.Reason
}

// ErrorKind classifies a failed model request.
type ErrorKind string

const (
	KindConnection ErrorKind = "connection"
	KindTimeout    ErrorKind = "timeout"
	KindHTTP       ErrorKind = "http"
	KindMalformed  ErrorKind = "malformed"
	KindUnexpected ErrorKind = "unexpected"
)

// ClientError is a failed request to the model service. It is surfaced
// verbatim to the caller and never retried.
type ClientError struct {
	Kind     ErrorKind
	Endpoint string
	Status   int
	Detail   string
}

func (e *ClientError) Error() string {
	switch e.Kind {
	case KindConnection:
		return fmt.Sprintf("cannot reach model server (%s): %s", e.Endpoint, e.Detail)
	case KindTimeout:
		return fmt.Sprintf("timeout talking to model server (%s)", e.Endpoint)
	case KindHTTP:
		return fmt.Sprintf("model server returned HTTP %d: %s", e.Status, e.Detail)
	case KindMalformed:
		return fmt.Sprintf("unexpected model response: %s", e.Detail)
	default:
		return fmt.Sprintf("unexpected error talking to model server: %s", e.Detail)
	}
}
