package dberrors

import (
	"errors"
	"fmt"
)

var (
	ErrMissing   = errors.New("record is missing")
	ErrDuplicate = errors.New("record already exists")

	// optimistic concurrency control lost the race.
	ErrConflict = errors.New("record is updated by someone else")

	// the request named an identifier the store cannot even look up.
	ErrInvalid = errors.New("request is invalid")
)

// requested record is missing.
type Missing struct {
	Table    string
	Identity string
}

var _ error = Missing{}

func (m Missing) Error() string {
	return fmt.Sprintf("%s is not found in %s", m.Identity, m.Table)
}

func (m Missing) Unwrap() error {
	return ErrMissing
}

// a record with the same identity exists already.
type Duplicate struct {
	Table    string
	Identity string
}

var _ error = Duplicate{}

func (d Duplicate) Error() string {
	return fmt.Sprintf("%s already exists in %s", d.Identity, d.Table)
}

func (d Duplicate) Unwrap() error {
	return ErrDuplicate
}

// an update named a revision which is no more current.
type Conflict struct {
	Table    string
	Identity string
}

var _ error = Conflict{}

func (c Conflict) Error() string {
	return fmt.Sprintf("%s in %s is updated by someone else", c.Identity, c.Table)
}

func (c Conflict) Unwrap() error {
	return ErrConflict
}
