package executor

import (
	"errors"
	"fmt"
)

// Precondition failures. Retrying any of these unchanged fails identically,
// so the drain loop treats them as final for the affected mutation.
var (
	// ErrAlreadyContributed means the user already has an image in this
	// sit's collection (one contribution per user per sit).
	ErrAlreadyContributed = errors.New("user already contributed an image to this sit")

	// ErrTooFarFromSit means the photo's location exceeds the proximity
	// threshold from the sit's location.
	ErrTooFarFromSit = errors.New("photo location is too far from the sit")
)

// DuplicateSitError reports that a sit already exists within the
// minimum-separation radius of the requested location. SitID names the
// conflicting sit when known, so callers can redirect the user to "add a
// photo to the existing sit" instead of hard-failing.
type DuplicateSitError struct {
	SitID string
}

func (e *DuplicateSitError) Error() string {
	if e.SitID != "" {
		return fmt.Sprintf("a sit already exists at this location (sit %s)", e.SitID)
	}
	return "a sit already exists at this location"
}

// IsPrecondition reports whether err is a business-rule failure that would
// fail identically on retry.
func IsPrecondition(err error) bool {
	var dup *DuplicateSitError
	return errors.As(err, &dup) ||
		errors.Is(err, ErrAlreadyContributed) ||
		errors.Is(err, ErrTooFarFromSit)
}
