package locator

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means nothing satisfied the discriminator, usually because the
	// page layout drifted.
	ErrNotFound = errors.New("locator: not found")
	// ErrMalformed means the document could not be parsed at all.
	ErrMalformed = errors.New("locator: malformed document")
)

type NotFoundError struct {
	Discriminator Discriminator
	// Tables is the number of tables in the document, -1 for json documents.
	Tables int
	// Closest is the header row most similar to the wanted substring, only set
	// for HeaderContains.
	Closest string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrNotFound.Error(), e.Discriminator)
	if e.Tables >= 0 {
		msg += fmt.Sprintf(" (document has %d tables)", e.Tables)
	}
	if e.Closest != "" {
		msg += fmt.Sprintf(" (closest header: %q)", e.Closest)
	}
	return msg
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
