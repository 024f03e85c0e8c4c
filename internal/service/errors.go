package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure of the query layer
type ErrorKind int

const (
	UnexpectedFailure ErrorKind = iota
	ConfigLoadFailure
	StoreConnectionFailure
	MissingParameter
	InvalidParameter
	InvalidUnit
	InvalidDateFormat
	InvalidRange
	QueryPreparationFailure
)

var kindNames = map[ErrorKind]string{
	UnexpectedFailure:       "unexpected_failure",
	ConfigLoadFailure:       "config_load_failure",
	StoreConnectionFailure:  "store_connection_failure",
	MissingParameter:        "missing_parameter",
	InvalidParameter:        "invalid_parameter",
	InvalidUnit:             "invalid_unit",
	InvalidDateFormat:       "invalid_date_format",
	InvalidRange:            "invalid_range",
	QueryPreparationFailure: "query_preparation_failure",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Validation reports whether the kind is a request validation error
func (k ErrorKind) Validation() bool {
	switch k {
	case MissingParameter, InvalidParameter, InvalidUnit, InvalidDateFormat, InvalidRange:
		return true
	}
	return false
}

// Error is a classified failure carrying the client-facing message and the
// offending parameters to echo back
type Error struct {
	Kind    ErrorKind
	Message string
	Echo    map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, echo map[string]interface{}) *Error {
	return &Error{Kind: kind, Message: message, Echo: echo}
}

// KindOf returns the kind of err, UnexpectedFailure for unclassified errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return UnexpectedFailure
}
