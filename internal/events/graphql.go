package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

// GraphQLFinish is emitted after executing a GraphQL operation. Rejected is
// set when the document failed parsing or validation and nothing ran.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Rejected      bool
	Errors        []error
	Duration      time.Duration
}

// DepthRejected is emitted when an operation nests deeper than allowed.
type DepthRejected struct {
	OperationName string
	MaxDepth      int
	Violations    int
}
