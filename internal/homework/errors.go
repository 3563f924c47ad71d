package homework

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the bot knows how to handle.
// Callers switch on Kind instead of matching concrete error types.
type Kind int

const (
	Unclassified Kind = iota
	EndpointUnreachable
	MalformedPayload
	EmptyResponse
	UnexpectedShape
	MissingField
	UnknownStatus
	DeliveryFailed
	ConfigurationMissing
)

var kindNames = [...]string{
	Unclassified:         "unclassified",
	EndpointUnreachable:  "endpoint_unreachable",
	MalformedPayload:     "malformed_payload",
	EmptyResponse:        "empty_response",
	UnexpectedShape:      "unexpected_shape",
	MissingField:         "missing_field",
	UnknownStatus:        "unknown_status",
	DeliveryFailed:       "delivery_failed",
	ConfigurationMissing: "configuration_missing",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Recoverable reports whether the poll loop keeps running after this kind.
func (k Kind) Recoverable() bool { return k != ConfigurationMissing }

// Error is the tagged failure carried between components.
type Error struct {
	Kind    Kind
	Context string
	Err     error
	// Message, when set, is the chat text shown as is by Render.
	Message string
}

func (e *Error) Error() string {
	switch {
	case e.Context != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	case e.Context != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: MissingField}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Context == "" && t.Err == nil && t.Message == ""
}

// KindOf extracts the kind from err. Foreign errors are Unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unclassified
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	ctx := format
	if len(args) > 0 {
		ctx = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Context: ctx, Err: cause}
}

func Unreachable(cause error, format string, args ...any) error {
	return newError(EndpointUnreachable, cause, format, args...)
}

// Rejected is an EndpointUnreachable failure with a fixed chat text, for
// endpoints that answer but refuse the request.
func Rejected(cause error, message, endpoint string) error {
	return &Error{Kind: EndpointUnreachable, Context: endpoint, Err: cause, Message: message}
}

func Malformed(cause error, format string, args ...any) error {
	return newError(MalformedPayload, cause, format, args...)
}

func Empty(format string, args ...any) error {
	return newError(EmptyResponse, nil, format, args...)
}

func Shape(format string, args ...any) error {
	return newError(UnexpectedShape, nil, format, args...)
}

func Missing(field string) error {
	return newError(MissingField, nil, "%s", field)
}

func Unknown(status string) error {
	return newError(UnknownStatus, nil, "%s", status)
}

func Delivery(cause error, format string, args ...any) error {
	return newError(DeliveryFailed, cause, format, args...)
}

func ConfigMissing(name string) error {
	return newError(ConfigurationMissing, nil, "%s", name)
}
