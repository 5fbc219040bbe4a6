package config

import (
	"fmt"
	"strings"
)

// Error codes for configuration validation.
const (
	ErrSchema     = "E201" // value violates the CUE schema
	ErrDescriptor = "E202" // loggable_type is not a reference field descriptor
	ErrExclude    = "E203" // exclude expression does not compile
	ErrClassPath  = "E204" // hook_classpath entry is not a directory
	ErrSyntax     = "E205" // file could not be decoded
)

// ValidationError represents one problem found in a configuration.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors collects every problem found in one configuration.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error carries code.
func (errs ValidationErrors) Has(code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}
