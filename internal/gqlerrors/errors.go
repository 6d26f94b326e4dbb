package gqlerrors

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Codes reported in extensions.code.
const (
	ParseFailed            = "GRAPHQL_PARSE_FAILED"
	ValidationFailed       = "GRAPHQL_VALIDATION_FAILED"
	SchemaMismatch         = "SCHEMA_MISMATCH"
	ArgumentCoercionFailed = "ARGUMENT_COERCION_FAILED"
	ResolverFailed         = "RESOLVER_ERROR"
	BadRequest             = "BAD_REQUEST"
	Undefined              = "UNDEFINED_ERROR"
)

type Location struct {
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

// Error represents a graphql error
type Error struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the error the graphql error was built from, if any.
func (e *Error) Unwrap() error { return e.cause }

// Code returns extensions.code or Undefined.
func (e *Error) Code() string {
	if code, ok := e.Extensions["code"].(string); ok {
		return code
	}
	return Undefined
}

// New returns a graphql error with the given code and message
func New(code, message string) *Error {
	return &Error{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}
}

// Wrap returns a graphql error with the given code carrying err as its cause.
// If err already is an *Error it is returned unchanged.
func Wrap(code string, err error) *Error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	e := New(code, err.Error())
	e.cause = err
	return e
}

// WithPath returns a copy of e located at path.
func (e *Error) WithPath(path []any) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// IsCode reports whether err is a graphql error carrying code.
func IsCode(err error, code string) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Code() == code
}

// ErrorList represents a list of errors
type ErrorList []*Error

// ExtendErrorList adds provided err as *Error
func ExtendErrorList(errs ErrorList, err error) ErrorList {
	return append(errs, FormatError(err)...)
}

// Error returns a string representation of each error
func (list ErrorList) Error() string {
	acc := make([]string, len(list))
	for i, err := range list {
		acc[i] = err.Error()
	}
	return strings.Join(acc, ". ")
}

// FormatError flattens err into graphql errors. Parser and validator errors
// keep their locations; anything else becomes a single Undefined error.
func FormatError(err error) ErrorList {
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case ErrorList:
		var list ErrorList
		for _, inner := range e {
			list = append(list, FormatError(inner)...)
		}
		return list
	case *Error:
		return ErrorList{e}
	case *gqlerror.Error:
		ext := e.Extensions
		if len(ext) == 0 {
			ext = map[string]any{"code": Undefined}
		}
		return ErrorList{{
			Message:    e.Message,
			Locations:  lo.Map(e.Locations, func(loc gqlerror.Location, _ int) Location { return Location(loc) }),
			Path:       lo.Map(e.Path, func(el ast.PathElement, _ int) any { return pathElement(el) }),
			Extensions: ext,
			cause:      e,
		}}
	case gqlerror.List:
		var list ErrorList
		for _, inner := range e {
			list = append(list, FormatError(inner)...)
		}
		return list
	default:
		return ErrorList{Wrap(Undefined, err)}
	}
}

// FormatWithCode is FormatError with code filled in on every error that
// does not already carry one.
func FormatWithCode(err error, code string) ErrorList {
	list := FormatError(err)
	for i, e := range list {
		if e.Code() != Undefined {
			continue
		}
		cp := *e
		cp.Extensions = lo.Assign(e.Extensions, map[string]any{"code": code})
		list[i] = &cp
	}
	return list
}

func pathElement(el ast.PathElement) any {
	switch v := el.(type) {
	case ast.PathIndex:
		return int(v)
	case ast.PathName:
		return string(v)
	}
	return el
}
