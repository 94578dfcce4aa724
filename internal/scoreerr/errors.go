// Package scoreerr defines the error taxonomy shared by the normalizer,
// selector and mode scorer.
package scoreerr

import (
	"errors"
	"fmt"
)

// Kind separates request-level validation failures (never retried) from
// startup configuration failures (always surfaced to an operator).
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
)

// Code identifies the specific failure.
type Code string

// Validation codes. InvalidTemperature is also raised with the
// configuration kind for a bad configured temperature.
const (
	InvalidSchemaID    Code = "InvalidSchemaId"
	OutOfRangeTScore   Code = "OutOfRangeTScore"
	NoConversionPath   Code = "NoConversionPath"
	InvalidPercentile  Code = "InvalidPercentile"
	InvalidRawScore    Code = "InvalidRawScore"
	InvalidWeight      Code = "InvalidWeight"
	NoValidItems       Code = "NoValidItems"
	UnknownIdentifier  Code = "UnknownIdentifier"
	OutOfRangeGate     Code = "OutOfRangeGate"
	InvalidZScore      Code = "InvalidZScore"
	InvalidTemperature Code = "InvalidTemperature"
)

// Configuration codes.
const (
	MissingWeightTable Code = "MissingWeightTable"
	MalformedTableRow  Code = "MalformedTableRow"
	InvalidDelimiter   Code = "InvalidDelimiter"
)

// Error is a classified scoring error. Subject names the offending item,
// identifier, table or file when one exists.
type Error struct {
	Kind    Kind
	Code    Code
	Subject string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a validation error with a formatted message.
func Validation(code Code, subject, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// Configuration returns a configuration error with a formatted message.
func Configuration(code Code, subject, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Code: code, Subject: subject, Err: fmt.Errorf(format, args...)}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsValidation reports whether err (or any error in its chain) is a
// validation error.
func IsValidation(err error) bool {
	se, ok := As(err)
	return ok && se.Kind == KindValidation
}

// IsConfiguration reports whether err (or any error in its chain) is a
// configuration error.
func IsConfiguration(err error) bool {
	se, ok := As(err)
	return ok && se.Kind == KindConfiguration
}

// CodeOf returns the code of the first classified error in err's chain, or
// the empty code.
func CodeOf(err error) Code {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
