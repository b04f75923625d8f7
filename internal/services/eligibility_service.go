// Package services – EligibilityService
//
// This file implements the EligibilityService, which decides whether a
// sender may reach a receiver at all: the receiver's stored filter is
// evaluated against the sender's profile (gender, geo distance, age band).
// Checks short-circuit on the first failure, each with a distinct
// user-facing reason.
//
// One behavior here is deliberate and easy to mistake for a bug: on any
// internal lookup failure the evaluator fails OPEN and allows the request.
// Matchmaking availability is prioritized over filter strictness: a broken
// filter store must never take matchmaking down. Receiver absence is the
// exception: that is a NotFound condition surfaced to the caller.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
	"github.com/tbourn/go-anonchat-backend/internal/geo"
	"github.com/tbourn/go-anonchat-backend/internal/repo"
)

// ProfileStore is the external profile collaborator. Implementations return
// an error satisfying errors.Is(err, ErrProfileNotFound) when the user does
// not exist.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// FilterStore is the read side of the filter persistence consumed by the
// evaluator. A missing row is reported as repo.ErrNotFound and treated as an
// entirely unset filter.
type FilterStore interface {
	GetFilter(ctx context.Context, userID string) (*domain.ChatFilter, error)
}

// Denial codes, bounded for metrics labels.
const (
	DenyGender   = "gender"
	DenyRegion   = "region"
	DenyLocation = "location"
	DenyDistance = "distance"
	DenyAge      = "age"
)

// Decision is the outcome of an eligibility evaluation. Reason and Code are
// set only when Allowed is false.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

func deny(code, reason string) Decision {
	return Decision{Allowed: false, Code: code, Reason: reason}
}

var allowed = Decision{Allowed: true}

// EligibilityService evaluates a receiver's chat filter against a sender's
// profile.
type EligibilityService struct {
	// Profiles resolves user profiles (external collaborator).
	Profiles ProfileStore
	// Filters resolves stored chat filters.
	Filters FilterStore
	// Log receives fail-open warnings.
	Log zerolog.Logger
}

// NewEligibilityService constructs an EligibilityService.
func NewEligibilityService(profiles ProfileStore, filters FilterStore, log zerolog.Logger) *EligibilityService {
	return &EligibilityService{Profiles: profiles, Filters: filters, Log: log}
}

// CanRequest decides whether senderID may send a chat request to receiverID.
//
// Semantics:
//   - Receiver absence is ErrReceiverNotFound, surfaced to the caller.
//   - An entirely unset filter allows unconditionally.
//   - Checks run in order gender → distance → age and short-circuit on the
//     first denial, each with its own reason string.
//   - Radius classes deny a sender with no location ("set your location"),
//     but fail open when the RECEIVER has no location: the filter is
//     unenforceable, and an unenforceable filter never blocks anyone.
//   - Any internal store failure fails open (see package comment).
func (s *EligibilityService) CanRequest(ctx context.Context, senderID, receiverID string) (Decision, error) {
	receiver, err := s.Profiles.GetProfile(ctx, receiverID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return Decision{}, ErrReceiverNotFound
		}
		s.failOpen(receiverID, "receiver profile lookup", err)
		return allowed, nil
	}

	filter, err := s.Filters.GetFilter(ctx, receiverID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.failOpen(receiverID, "filter lookup", err)
		}
		// No filter configured: everyone is welcome.
		return allowed, nil
	}
	if filter.Unset() {
		return allowed, nil
	}

	sender, err := s.Profiles.GetProfile(ctx, senderID)
	if err != nil {
		// The sender is the acting user; a missing or unreadable profile here
		// is an internal inconsistency, not a filter denial.
		s.failOpen(senderID, "sender profile lookup", err)
		return allowed, nil
	}

	if d := checkGender(filter, sender); !d.Allowed {
		return d, nil
	}
	if d := checkDistance(filter, sender, receiver); !d.Allowed {
		return d, nil
	}
	if d := checkAge(filter, sender); !d.Allowed {
		return d, nil
	}
	return allowed, nil
}

func checkGender(f *domain.ChatFilter, sender *domain.Profile) Decision {
	if f.Gender == domain.GenderUnset || f.Gender == domain.GenderAll {
		return allowed
	}
	if sender.Gender != f.Gender {
		return deny(DenyGender, fmt.Sprintf("this user only accepts requests from %s users", f.Gender))
	}
	return allowed
}

func checkDistance(f *domain.ChatFilter, sender, receiver *domain.Profile) Decision {
	switch f.DistanceClass {
	case domain.DistanceSameRegion:
		if sender.Region != receiver.Region {
			return deny(DenyRegion, "this user only accepts requests from their own region")
		}
	case domain.DistanceNotSameRegion:
		if sender.Region == receiver.Region {
			return deny(DenyRegion, "this user does not accept requests from their own region")
		}
	case domain.DistanceWithin100Km, domain.DistanceWithin10Km:
		radius, _ := f.DistanceClass.RadiusKm()
		if sender.Location == nil {
			return deny(DenyLocation, "set your location to contact this user")
		}
		if receiver.Location == nil {
			// Unenforceable without the owner's coordinates: fail open.
			return allowed
		}
		d := geo.DistanceKm(
			sender.Location.Latitude, sender.Location.Longitude,
			receiver.Location.Latitude, receiver.Location.Longitude,
		)
		// Boundary is inclusive: exactly radius km passes.
		if d > radius {
			return deny(DenyDistance, fmt.Sprintf("this user only accepts requests from within %.0f km", radius))
		}
	}
	return allowed
}

func checkAge(f *domain.ChatFilter, sender *domain.Profile) Decision {
	if !f.AgeBandSet() {
		return allowed
	}
	if sender.Age < *f.MinAge || sender.Age > *f.MaxAge {
		return deny(DenyAge, fmt.Sprintf("this user only accepts requests from users aged %d to %d", *f.MinAge, *f.MaxAge))
	}
	return allowed
}

func (s *EligibilityService) failOpen(userID, during string, err error) {
	s.Log.Warn().
		Err(err).
		Str("user_id", userID).
		Str("during", during).
		Msg("eligibility check failed open")
}
