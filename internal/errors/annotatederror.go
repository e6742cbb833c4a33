package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// annotatedError includes more context than a plain error that is useful for troubleshooting.
type annotatedError struct {
	// msg is the error message.
	msg string
	// pc is the program counter for the location of the error provided by runtime.Callers.
	pc uintptr
	// attrs are slog attributes that are added to the log event to provide more context for the error.
	attrs []slog.Attr
	// err is the wrapped error, nil for errors created with New.
	err error
}

func newAnnotated(msg string, err error, attrs []slog.Attr) *annotatedError {
	var pcs [1]uintptr
	// Skip runtime.Callers, this function and the exported constructor.
	runtime.Callers(3, pcs[:]) //nolint:mnd // see above
	return &annotatedError{
		msg:   msg,
		pc:    pcs[0],
		attrs: attrs,
		err:   err,
	}
}

// New creates an error with the given message and attributes.
func New(msg string, attrs ...slog.Attr) error {
	return newAnnotated(msg, nil, attrs)
}

// NewSentinel creates a plain error without other context that can be detected with errors.Is.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// Wrap adds a message and attributes to err. Wrap returns nil when err is nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return newAnnotated(msg, err, attrs)
}

// Error implements error interface.
func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %s", e.msg, e.err.Error())
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

func (e *annotatedError) source() slog.Attr {
	frames := runtime.CallersFrames([]uintptr{e.pc})
	frame, _ := frames.Next()
	return slog.String("source", fmt.Sprintf("%s:%d", frame.File, frame.Line))
}

// LogValue formats the error for useful logging.
func (e *annotatedError) LogValue() slog.Value {
	attrs := append([]slog.Attr{slog.String("msg", e.Error()), e.source()}, e.attrs...)
	return slog.GroupValue(attrs...)
}

// SlogError collects the message, the attributes of every annotated error in the chain and the source location of
// the innermost annotated error into a single "error" group.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	var (
		attrs  []any
		source slog.Attr
	)
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		var annotated *annotatedError
		if ae, ok := cur.(*annotatedError); ok { //nolint:errorlint // walking the chain manually
			annotated = ae
		}
		if annotated == nil {
			continue
		}
		for _, a := range annotated.attrs {
			attrs = append(attrs, a)
		}
		source = annotated.source()
	}
	args := append([]any{slog.String("msg", err.Error())}, attrs...)
	if source.Key != "" {
		args = append(args, source)
	}
	return slog.Group("error", args...)
}

// As exposes stdlib errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is exposes stdlib errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Unwrap exposes stdlib errors.Unwrap.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join exposes stdlib errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
