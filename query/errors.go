package query

import (
	"errors"
	"fmt"
)

var ErrParse = errors.New("malformed search request")

type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("JSON parse error - %s", e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}
