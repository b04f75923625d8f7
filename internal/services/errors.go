// Package services defines the business logic of the matchmaking engine:
// eligibility evaluation, the chat-request lifecycle, and the filter wizard.
// This file centralizes common service-level error values so that they can
// be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; mapping
// them onto user-visible bot/API replies is the command layer's job.
package services

import (
	"errors"
	"fmt"
	"time"
)

// Lookup errors.
var (
	// ErrReceiverNotFound indicates that the requested receiver profile does
	// not exist. Receiver existence is mandatory for eligibility evaluation:
	// absence is surfaced, never treated as "allowed".
	ErrReceiverNotFound = errors.New("receiver not found")

	// ErrRequestNotFound indicates that the referenced chat request does not
	// exist.
	ErrRequestNotFound = errors.New("chat request not found")

	// ErrProfileNotFound is the sentinel ProfileStore implementations wrap
	// (or return) when a user has no profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// Lifecycle errors.
var (
	// ErrPartnerBusy is returned when either party of a request already has an
	// active chat. At accept time the request has additionally been resolved
	// to expired before this error is surfaced; it is never left dangling.
	ErrPartnerBusy = errors.New("partner no longer available")

	// ErrStateConflict is returned when an accept/reject/block call races a
	// transition that already resolved the request. Terminal statuses are
	// written exactly once; the loser of the race gets this error and the
	// stored status is left unchanged.
	ErrStateConflict = errors.New("request already resolved")

	// ErrRateLimited is returned when a sender exceeds the request-creation
	// token bucket.
	ErrRateLimited = errors.New("too many chat requests, slow down")
)

// Wizard errors.
var (
	// ErrNoWizardSession is returned when a step method is called for a user
	// with no draft in progress.
	ErrNoWizardSession = errors.New("no filter setup in progress")

	// ErrStepOrder is returned when a wizard step receives input meant for a
	// different step. The draft is left untouched.
	ErrStepOrder = errors.New("unexpected step input")

	// ErrInvalidChoice is returned when a wizard step receives a value outside
	// its accepted set. The step re-prompts without advancing.
	ErrInvalidChoice = errors.New("invalid choice")

	// ErrLocationRequired is returned when a radius distance class is chosen
	// by a user whose profile carries no location, and by the evaluator when
	// a sender without a location hits a radius-filtered receiver.
	ErrLocationRequired = errors.New("set your location first")

	// ErrAgeBoundsInvalid is returned when the wizard's maximum age is below
	// the recorded minimum. The step re-prompts without advancing.
	ErrAgeBoundsInvalid = errors.New("maximum age must not be below minimum age")
)

// EligibilityError reports a denial by the receiver's filter. Reason is the
// user-facing explanation; Code is the bounded check identifier used for
// metrics labels.
type EligibilityError struct {
	Code   string
	Reason string
}

// Error implements the error interface.
func (e *EligibilityError) Error() string { return e.Reason }

// CooldownError reports that the sender re-requested the same receiver
// before the configured interval elapsed. Remaining is how long until the
// pair may be requested again.
type CooldownError struct {
	Remaining time.Duration
}

// Error implements the error interface.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active, try again in %s", e.Remaining.Round(time.Second))
}
