package services

import (
	"errors"
	"net/http"

	"github.com/gradecast/predictor-service/internal/prediction"
)

// GenericErrorMessage is the only text clients see for uncategorized failures.
const GenericErrorMessage = "An unexpected error occurred. Please try again later."

// ErrorBody is the error payload shared by HTTP responses and NATS replies.
// Detail and Error carry the same message for older and newer clients.
type ErrorBody struct {
	Detail          string   `json:"detail"`
	Error           string   `json:"error"`
	ErrorType       string   `json:"error_type"`
	Field           string   `json:"field,omitempty"`
	Value           any      `json:"value,omitempty"`
	MissingFeatures []string `json:"missing_features,omitempty"`
	Student         int      `json:"student,omitempty"`
}

func messageBody(errType, msg string) ErrorBody {
	return ErrorBody{Detail: msg, Error: msg, ErrorType: errType}
}

// NewErrorBody translates err into an HTTP status and payload. Client faults
// are 400, artifact failures 500, an uninitialized service 503. Anything
// uncategorized becomes a generic 500 with no detail.
func NewErrorBody(err error) (int, ErrorBody) {
	var pe *prediction.Error
	switch {
	case errors.As(err, &pe):
		if !pe.Kind.ClientFault() {
			body := messageBody(pe.Kind.String(), pe.Msg)
			body.Student = pe.Student
			return http.StatusInternalServerError, body
		}
		body := messageBody(pe.Kind.String(), pe.Error())
		body.Field = pe.Field
		body.Value = pe.Value
		body.MissingFeatures = pe.Missing
		body.Student = pe.Student
		return http.StatusBadRequest, body

	case errors.Is(err, ErrNotReady):
		return http.StatusServiceUnavailable, messageBody("ServiceUnavailable", "Model is not loaded")

	default:
		return http.StatusInternalServerError, messageBody("InternalError", GenericErrorMessage)
	}
}
