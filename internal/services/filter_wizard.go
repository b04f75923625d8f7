// Package services – FilterWizard
//
// This file implements the FilterWizard, the guided multi-step flow a user
// walks through to configure their eligibility filter: gender → distance →
// age-min → age-max → confirmation. The draft lives in memory per user and
// touches the persisted ChatFilter exactly once, at confirmation. An
// abandoned or half-finished wizard never leaves partial state behind, and
// the evaluator can never observe a filter mid-edit.
//
// Steps re-prompt on invalid input (ErrInvalidChoice, ErrAgeBoundsInvalid)
// without advancing or corrupting the draft, and Back re-enters the prior
// step with the draft intact.
package services

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
)

// FilterWriter is the write side of filter persistence consumed by the
// wizard. Implemented by GormFilterStore.
type FilterWriter interface {
	UpsertFilter(ctx context.Context, f *domain.ChatFilter) error
	ClearFilter(ctx context.Context, userID string) error
}

// WizardStep identifies where a draft session currently is.
type WizardStep int

// Wizard steps, in walk order.
const (
	StepGender WizardStep = iota
	StepDistance
	StepAgeMin
	StepAgeMax
	StepConfirm
)

// String returns the step name used in logs and prompts.
func (s WizardStep) String() string {
	switch s {
	case StepGender:
		return "gender"
	case StepDistance:
		return "distance"
	case StepAgeMin:
		return "age_min"
	case StepAgeMax:
		return "age_max"
	case StepConfirm:
		return "confirm"
	}
	return "unknown"
}

// AgeAll is the SelectAge input that waives both age bounds.
const AgeAll = "all"

// draft is one user's in-progress filter.
type draft struct {
	step   WizardStep
	filter domain.ChatFilter
}

// FilterWizard manages per-user filter drafts.
//
// The sessions map is guarded by a mutex; each user's walk is sequential by
// nature (one person typing), so the lock is only ever contended across
// different users.
type FilterWizard struct {
	// Filters persists the confirmed draft.
	Filters FilterWriter
	// Profiles backs the location precondition of radius distance classes.
	Profiles ProfileStore
	// PromptLocale controls the casing of choice labels in step prompts.
	PromptLocale language.Tag
	// Log is the wizard logger.
	Log zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*draft
}

// NewFilterWizard constructs a FilterWizard.
func NewFilterWizard(filters FilterWriter, profiles ProfileStore, log zerolog.Logger) *FilterWizard {
	return &FilterWizard{
		Filters:      filters,
		Profiles:     profiles,
		PromptLocale: language.Und,
		Log:          log,
		sessions:     make(map[string]*draft),
	}
}

// PromptLocaleOrDefault returns the configured prompt locale, defaulting to
// English when unset.
func (w *FilterWizard) PromptLocaleOrDefault() language.Tag {
	if w.PromptLocale == language.Und {
		return language.English
	}
	return w.PromptLocale
}

// Prompt renders the user-facing prompt for a step. Choice labels are derived
// from the stored enum values and title-cased for display.
func (w *FilterWizard) Prompt(step WizardStep) string {
	caser := cases.Title(w.PromptLocaleOrDefault())
	label := func(vals ...string) string {
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			out = append(out, caser.String(strings.ReplaceAll(v, "_", " ")))
		}
		return strings.Join(out, ", ")
	}
	switch step {
	case StepGender:
		return "Who may send you chat requests? " +
			label(string(domain.GenderMale), string(domain.GenderFemale), string(domain.GenderAll))
	case StepDistance:
		return "From how far away? " +
			label(string(domain.DistanceSameRegion), string(domain.DistanceNotSameRegion),
				string(domain.DistanceWithin100Km), string(domain.DistanceWithin10Km), string(domain.DistanceAll))
	case StepAgeMin:
		return `Minimum age? Enter a number, or "` + AgeAll + `" for any age.`
	case StepAgeMax:
		return "Maximum age? Enter a number."
	case StepConfirm:
		return "Save this filter?"
	}
	return ""
}

// Start begins (or restarts) a draft for userID at the gender step.
// An existing draft is discarded.
func (w *FilterWizard) Start(userID string) WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sessions[userID] = &draft{step: StepGender, filter: domain.ChatFilter{UserID: userID}}
	return StepGender
}

// Step reports the current step of userID's draft; ok is false when no
// draft is in progress. Sessions are resumable: a user may come back at any
// time and continue where they left off.
func (w *FilterWizard) Step(userID string) (WizardStep, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.sessions[userID]
	if !ok {
		return 0, false
	}
	return d.step, true
}

// Abandon drops userID's draft without touching the persisted filter.
func (w *FilterWizard) Abandon(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, userID)
}

// SelectGender records the gender choice and advances to the distance step.
func (w *FilterWizard) SelectGender(_ context.Context, userID string, choice domain.Gender) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.draftAt(userID, StepGender)
	if err != nil {
		return err
	}
	if !choice.Valid() {
		return ErrInvalidChoice
	}
	d.filter.Gender = choice
	d.step = StepDistance
	return nil
}

// SelectDistance records the distance class and advances to the age steps.
// A radius class requires the acting user to already have a location; if
// absent, the step aborts with ErrLocationRequired and does not advance.
func (w *FilterWizard) SelectDistance(ctx context.Context, userID string, choice domain.DistanceClass) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, err := w.draftAt(userID, StepDistance)
	if err != nil {
		return err
	}
	if !choice.Valid() {
		return ErrInvalidChoice
	}
	if _, radius := choice.RadiusKm(); radius {
		p, err := w.Profiles.GetProfile(ctx, userID)
		if err != nil {
			// Store failures bubble up so the caller can retry the step.
			return err
		}
		if p.Location == nil {
			// Without coordinates of their own, the user's radius filter
			// could never be enforced.
			return ErrLocationRequired
		}
	}
	d.filter.DistanceClass = choice
	d.step = StepAgeMin
	return nil
}

// SelectAge is the two-phase age entry.
//
// At the age-min step, input is either AgeAll (waives both bounds and jumps
// straight to confirmation) or the minimum age. At the age-max
// step, input is the maximum age and must not be below the recorded
// minimum (ErrAgeBoundsInvalid re-prompts the same step).
func (w *FilterWizard) SelectAge(_ context.Context, userID, input string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.sessions[userID]
	if !ok {
		return ErrNoWizardSession
	}
	if d.step != StepAgeMin && d.step != StepAgeMax {
		return ErrStepOrder
	}

	input = strings.TrimSpace(strings.ToLower(input))
	if input == AgeAll {
		if d.step != StepAgeMin {
			return ErrStepOrder
		}
		d.filter.MinAge = nil
		d.filter.MaxAge = nil
		d.step = StepConfirm
		return nil
	}

	age, err := strconv.Atoi(input)
	if err != nil || age < 0 {
		return ErrInvalidChoice
	}

	if d.step == StepAgeMin {
		d.filter.MinAge = &age
		d.step = StepAgeMax
		return nil
	}
	if d.filter.MinAge != nil && age < *d.filter.MinAge {
		return ErrAgeBoundsInvalid
	}
	d.filter.MaxAge = &age
	d.step = StepConfirm
	return nil
}

// Confirm persists the accumulated draft as the user's ChatFilter in one
// write and clears the session. Only valid at the confirmation step.
func (w *FilterWizard) Confirm(ctx context.Context, userID string, visible bool) error {
	w.mu.Lock()
	d, err := w.draftAt(userID, StepConfirm)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	f := d.filter
	f.Visible = visible
	w.mu.Unlock()

	// Persist outside the session lock; the draft is only discarded once the
	// write succeeded, so a store failure keeps the wizard resumable.
	if err := w.Filters.UpsertFilter(ctx, &f); err != nil {
		return err
	}

	w.mu.Lock()
	delete(w.sessions, userID)
	w.mu.Unlock()

	w.Log.Info().
		Str("user_id", userID).
		Str("gender", string(f.Gender)).
		Str("distance_class", string(f.DistanceClass)).
		Bool("visible", f.Visible).
		Msg("chat filter saved")
	return nil
}

// Back re-enters the previous step with the draft intact. At the first step
// it is a no-op. Stepping back from confirmation skips the age-max step
// when the user had chosen "all" ages.
func (w *FilterWizard) Back(userID string) (WizardStep, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.sessions[userID]
	if !ok {
		return 0, ErrNoWizardSession
	}
	switch d.step {
	case StepGender:
		// already at the first step
	case StepConfirm:
		if d.filter.MinAge == nil {
			d.step = StepAgeMin
		} else {
			d.step = StepAgeMax
		}
	default:
		d.step--
	}
	return d.step, nil
}

// Clear zeroes the user's persisted filter (fields only, the row stays) and
// drops any draft in progress.
func (w *FilterWizard) Clear(ctx context.Context, userID string) error {
	w.Abandon(userID)
	return w.Filters.ClearFilter(ctx, userID)
}

// draftAt returns userID's draft if it exists and sits at want.
// Callers hold w.mu.
func (w *FilterWizard) draftAt(userID string, want WizardStep) (*draft, error) {
	d, ok := w.sessions[userID]
	if !ok {
		return nil, ErrNoWizardSession
	}
	if d.step != want {
		return nil, ErrStepOrder
	}
	return d, nil
}
