package executor

import (
	"encoding/json"

	gqlerrors "github.com/hanpama/membergraph/internal/gqlerrors"
)

// ExecutionResult represents the result of executing a GraphQL query.
//
// A result produced before execution started (unknown operation, bad
// variables) has no data entry at all; once execution starts data is always
// present, possibly null.
type ExecutionResult struct {
	Data   any
	Errors gqlerrors.ErrorList

	executed bool
}

// Executed reports whether any part of the operation ran.
func (r *ExecutionResult) Executed() bool { return r.executed }

func (r *ExecutionResult) MarshalJSON() ([]byte, error) {
	if !r.executed {
		return json.Marshal(struct {
			Errors gqlerrors.ErrorList `json:"errors,omitempty"`
		}{r.Errors})
	}
	return json.Marshal(struct {
		Data   any                 `json:"data"`
		Errors gqlerrors.ErrorList `json:"errors,omitempty"`
	}{r.Data, r.Errors})
}

func requestError(code, message string) *ExecutionResult {
	return &ExecutionResult{Errors: gqlerrors.ErrorList{gqlerrors.New(code, message)}}
}
