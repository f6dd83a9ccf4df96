package oaipmh

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Code is the machine readable error code of the protocol (3.6 Error and
// Exception Conditions).
type Code string

const (
	BadArgument             Code = "badArgument"
	BadResumptionToken      Code = "badResumptionToken"
	BadVerb                 Code = "badVerb"
	CannotDisseminateFormat Code = "cannotDisseminateFormat"
	IDDoesNotExist          Code = "idDoesNotExist"
	NoRecordsMatch          Code = "noRecordsMatch"
	NoMetadataFormats       Code = "noMetadataFormats"
	NoSetHierarchy          Code = "noSetHierarchy"
)

// Error wraps OAI error codes and messages. Repositories return it to signal
// conditions like an unknown identifier, the provider renders it as an error
// element.
type Error struct {
	Code    Code
	Message string
}

// NewError formats a message for the given code.
func NewError(code Code, format string, a ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, a...)}
}

// Error to satisfy interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether any error in err's chain is an *Error with code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IdentifierUnknown is the error a repository returns for an identifier it
// does not know.
func IdentifierUnknown(identifier string) *Error {
	return NewError(IDDoesNotExist,
		"The value of the identifier argument is unknown or illegal in this repository: %s", identifier)
}

// TokenInvalid is the error a repository returns for a resumption token it
// cannot continue from.
func TokenInvalid(token string) *Error {
	return NewError(BadResumptionToken,
		"The value of the resumptionToken argument is invalid or expired: %s", token)
}

// FormatUnavailable is returned when a metadata format is not supported by the
// item or by the repository.
func FormatUnavailable() *Error {
	return NewError(CannotDisseminateFormat,
		"The metadata format identified by the value given for the metadataPrefix argument "+
			"is not supported by the item or by the repository.")
}

// runChecks runs every check, even after one failed, and combines all
// failures in the order of the checks.
func runChecks(checks ...func() error) error {
	var err error
	for _, check := range checks {
		err = multierr.Append(err, check())
	}
	return err
}

// asProtocolError returns err as *Error. Errors that are not protocol errors
// keep their message and are reported as badArgument, the only code the schema
// allows for unspecific failures. The boolean is false in that case.
func asProtocolError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return &Error{Code: BadArgument, Message: err.Error()}, false
}
