package prediction

import (
	"fmt"
	"strings"
)

// Kind discriminates pipeline failures so callers never parse messages.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindMissingFeature
	KindUnknownCategory
	KindPrediction
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindMissingFeature:
		return "MissingFeatureError"
	case KindUnknownCategory:
		return "UnknownCategoryError"
	case KindPrediction:
		return "PredictionError"
	default:
		return "UnknownError"
	}
}

// ClientFault reports whether the failure was caused by the request rather
// than by the loaded artifacts.
func (k Kind) ClientFault() bool {
	return k == KindValidation || k == KindMissingFeature || k == KindUnknownCategory
}

// Error is the only error type the pipeline returns.
type Error struct {
	Kind    Kind
	Field   string   // offending field, when there is one
	Value   any      // offending value, when there is one
	Missing []string // absent columns for KindMissingFeature, in column order
	Student int      // 1-based batch row; 0 for single requests
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Student > 0 {
		fmt.Fprintf(&b, "student %d: ", e.Student)
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// atRow tags err with a batch row index if it is a pipeline error.
func atRow(err error, student int) error {
	if pe, ok := err.(*Error); ok {
		tagged := *pe
		tagged.Student = student
		return &tagged
	}
	return err
}

func validationError(field string, value any, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Value: value, Msg: fmt.Sprintf(format, args...)}
}

func missingFeatureError(missing []string) *Error {
	return &Error{
		Kind:    KindMissingFeature,
		Missing: missing,
		Msg:     fmt.Sprintf("Missing required features: %s", strings.Join(missing, ", ")),
	}
}

func unknownCategoryError(field, value string, allowed []string) *Error {
	msg := fmt.Sprintf("Invalid value for %s: %q is not a known category", field, value)
	if len(allowed) > 0 {
		msg += fmt.Sprintf(" (expected one of %s)", strings.Join(allowed, ", "))
	}
	return &Error{Kind: KindUnknownCategory, Field: field, Value: value, Msg: msg}
}

func predictionError(err error) *Error {
	return &Error{Kind: KindPrediction, Msg: "Prediction failed", Err: err}
}
