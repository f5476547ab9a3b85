package main

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// partitionKey groups every record into the single flat todo collection.
const partitionKey = "todo"

var (
	ErrNotFound      = errors.New("todo not found")
	ErrValidation    = errors.New("invalid todo")
	ErrSerialization = errors.New("malformed request body")
	ErrPersistence   = errors.New("persistence failure")
)

// ToDo - Model of a single to-do item
type ToDo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	IsComplete bool   `json:"isComplete"`
}

// completionPatch is the body accepted when toggling completion.
type completionPatch struct {
	IsComplete *bool `json:"isComplete"`
}

// Filter selects items by completion state.
type Filter struct {
	IncludeCompleted bool
	IncludeActive    bool
}

// AllToDos matches every item.
var AllToDos = Filter{IncludeCompleted: true, IncludeActive: true}

// Matches reports whether t passes the filter.
func (f Filter) Matches(t ToDo) bool {
	return (!t.IsComplete && f.IncludeActive) || (t.IsComplete && f.IncludeCompleted)
}

// Empty reports whether no item can ever match.
func (f Filter) Empty() bool {
	return !f.IncludeCompleted && !f.IncludeActive
}

// newID returns a fresh item identifier.
func newID() string {
	return uuid.NewString()
}

// validateID rejects ids that cannot be addressed as a single path segment.
func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id is blank", ErrValidation)
	}
	for _, r := range id {
		if strings.ContainsRune(`/\#?`, r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: id %q contains %q", ErrValidation, id, r)
		}
	}
	return nil
}

// isClientError reports whether err was caused by the request rather than the service.
func isClientError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrSerialization)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	return nil
}
