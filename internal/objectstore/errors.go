package objectstore

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind is the normalized category of a backend failure.
type Kind int

const (
	// KindUnexpected covers every failure without a more specific kind.
	KindUnexpected Kind = iota
	// KindObjectNotFound means the object (or its bucket) does not exist.
	KindObjectNotFound
	// KindObjectPermissionDenied means the credentials may not access the object.
	KindObjectPermissionDenied
)

func (k Kind) String() string {
	switch k {
	case KindUnexpected:
		return "Unexpected"
	case KindObjectNotFound:
		return "ObjectNotFound"
	case KindObjectPermissionDenied:
		return "ObjectPermissionDenied"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ClassifyStatus maps an HTTP status code to a kind and a retryable verdict.
//
// Server-side failures that are usually transient (500, 502, 503, 504) are
// retryable; everything else is not.
func ClassifyStatus(status int) (Kind, bool) {
	switch status {
	case http.StatusNotFound:
		return KindObjectNotFound, false
	case http.StatusForbidden:
		return KindObjectPermissionDenied, false
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return KindUnexpected, true
	default:
		return KindUnexpected, false
	}
}

// ContextValue is one diagnostic entry attached to an Error.
type ContextValue struct {
	Key   string
	Value string
}

// Error is the normalized error produced for a failed backend call.
//
// Values are immutable once built; the With* and SetTemporary methods return
// modified copies.
type Error struct {
	// Kind is the normalized failure category.
	Kind Kind

	// Message is the human-readable description, backend-sourced when available.
	Message string

	// Retryable reports whether re-issuing the call may succeed. It depends on
	// the status of the failed response only.
	Retryable bool

	// Context holds diagnostics such as the response status line and headers.
	Context []ContextValue

	// Op is the operation that failed (e.g., "Append", "Close", "Head").
	Op string

	// Key is the object key, if known.
	Key string

	// Err is the underlying error, if any.
	Err error
}

// NewError creates a non-retryable error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) clone() *Error {
	c := *e
	c.Context = append([]ContextValue(nil), e.Context...)
	return &c
}

// WithContext returns a copy of e with a diagnostic entry appended.
func (e *Error) WithContext(key, value string) *Error {
	c := e.clone()
	c.Context = append(c.Context, ContextValue{Key: key, Value: value})
	return c
}

// WithOperation returns a copy of e annotated with the failed operation and key.
func (e *Error) WithOperation(op, key string) *Error {
	c := e.clone()
	c.Op = op
	c.Key = key
	return c
}

// WithSource returns a copy of e wrapping err.
func (e *Error) WithSource(err error) *Error {
	c := e.clone()
	c.Err = err
	return c
}

// SetTemporary returns a copy of e marked retryable.
func (e *Error) SetTemporary() *Error {
	c := e.clone()
	c.Retryable = true
	return c
}

// Temporary reports whether the error is retryable.
func (e *Error) Temporary() bool {
	return e.Retryable
}

// ContextValue returns the first context value stored under key.
func (e *Error) ContextValue(key string) (string, bool) {
	for _, cv := range e.Context {
		if cv.Key == key {
			return cv.Value, true
		}
	}
	return "", false
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("objectstore: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Key != "" {
			fmt.Fprintf(&b, " %q", e.Key)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Retryable {
		b.WriteString(" (temporary)")
	} else {
		b.WriteString(" (permanent)")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Context) > 0 {
		b.WriteString(" {")
		for i, cv := range e.Context {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(cv.Key)
			b.WriteString(": ")
			b.WriteString(cv.Value)
		}
		b.WriteString("}")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindObjectNotFound
	case ErrAccessDenied:
		return e.Kind == KindObjectPermissionDenied
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnexpected when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// ErrorDocument holds the fields of a structured backend error response.
// Any field may be empty.
type ErrorDocument struct {
	Code      string
	Message   string
	RequestID string
	HostID    string
}

func (d ErrorDocument) String() string {
	return fmt.Sprintf("code: %q, message: %q, request_id: %q, host_id: %q",
		d.Code, d.Message, d.RequestID, d.HostID)
}

// StatusLine formats status as it appears on the wire, e.g. "503 Service Unavailable".
func StatusLine(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%d %s", status, text)
	}
	return fmt.Sprintf("%d", status)
}

// FormatHeaders renders header as "Name: value" pairs sorted by name.
func FormatHeaders(header http.Header) string {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+strings.Join(header[name], ","))
	}
	return strings.Join(parts, "; ")
}
