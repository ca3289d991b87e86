package composable_error

import (
	"fmt"
)

type ComposableError struct {
	code    string
	message string
}

func (ce ComposableError) Error() string {
	return fmt.Sprintf("[%s] %s", ce.code, ce.message)
}

func GetCode(err error) string {
	ce, ok := err.(ComposableError)
	if !ok {
		return "DEFAULT"
	}
	return ce.code
}

// ComposeWith prefixes an upstream composable error with the caller's code
// and message; plain errors pass through untouched
func ComposeWith(err error, code string, message string) error {
	ce, ok := err.(ComposableError)
	if !ok {
		return err
	}
	if code != "" {
		ce.code = code + "_" + ce.code
	}
	if message != "" {
		ce.message = message + ", " + ce.message
	}
	return ce
}

func New(code string, message string) ComposableError {
	return ComposableError{
		code:    code,
		message: message,
	}
}

// Newf is New with a formatted message
func Newf(code string, format string, args ...interface{}) ComposableError {
	return ComposableError{
		code:    code,
		message: fmt.Sprintf(format, args...),
	}
}
