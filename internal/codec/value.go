// Package codec implements the length-prefixed, type-tagged wire framing
// used between reddb clients and the server. The framing is modeled on
// RESP: a single ASCII tag byte selects simple string (+), error (-),
// integer (:), bulk string ($), array (*), or dictionary (%).
package codec

import "fmt"

// ErrorValue is the distinguished tagged error variant. It is encoded as a
// '-' frame and never conflated with a Go-level error: handlers return it
// as data, the codec just knows how to serialize it.
type ErrorValue struct {
	Message string
}

func (e ErrorValue) Error() string { return e.Message }

// NewError builds an ErrorValue with a formatted message.
func NewError(format string, args ...any) ErrorValue {
	return ErrorValue{Message: fmt.Sprintf(format, args...)}
}

// Array is the ordered-sequence value (encoded as '*').
type Array []any

// Dict is the mapping value (encoded as '%'). Key order on the wire follows
// Go's map iteration order for the non-deterministic case; callers that
// need deterministic output should build the dict from a sorted source.
type Dict map[string]any
