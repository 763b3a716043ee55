package kvdb

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("key not found")
	ErrInvalidKey    = errors.New("invalid key")
	ErrAlreadyExists = errors.New("key already exists")
)

type InvalidKeyError struct {
	Key    string
	Reason string
}

type NotFoundError struct {
	Key string
}

type AlreadyExistsError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid key %s: %s", e.Key, e.Reason)
}

func (e *InvalidKeyError) Is(target error) bool {
	return target == ErrInvalidKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s", e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("key already exists: %s", e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}
