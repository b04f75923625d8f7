// Package services – RequestService
//
// This file implements the RequestService, the chat-request lifecycle state
// machine: creation (eligibility, cooldown, busy pre-check), viewing, and
// terminal resolution (accept / reject / block / expire). The hard invariant
// lives in Accept: a user is in at most one active chat, ever, even under
// concurrent accept attempts. Accept therefore re-checks the busy predicate
// for both parties inside the same transaction that flips the status, and a
// striped per-user lock keeps the predicate authoritative through the
// post-commit chat opening.
//
// Service-level errors (ErrRequestNotFound, ErrStateConflict, ErrPartnerBusy,
// CooldownError, EligibilityError, …) are returned for predictable cases so
// the command layer can map them to user replies consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-anonchat-backend/internal/domain"
	"github.com/tbourn/go-anonchat-backend/internal/metrics"
	"github.com/tbourn/go-anonchat-backend/internal/notify"
	"github.com/tbourn/go-anonchat-backend/internal/ratelimit"
	"github.com/tbourn/go-anonchat-backend/internal/repo"
)

// tracerName identifies spans emitted by this package.
const tracerName = "github.com/tbourn/go-anonchat-backend/internal/services"

// RequestStore defines the persistence contract required by RequestService.
// Functions take the *gorm.DB handle explicitly so the service can run them
// against a transaction-bound handle.
type RequestStore interface {
	// Create inserts a new pending request for the ordered pair.
	Create(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.ChatRequest, error)

	// Get fetches a request by ID; missing rows yield repo.ErrNotFound.
	Get(ctx context.Context, db *gorm.DB, id uint) (*domain.ChatRequest, error)

	// LastBetween returns the most recent request of the ordered pair,
	// any outcome; repo.ErrNotFound when the pair has no history.
	LastBetween(ctx context.Context, db *gorm.DB, senderID, receiverID string) (*domain.ChatRequest, error)

	// MarkViewed flips pending → viewed; false means no row changed.
	MarkViewed(ctx context.Context, db *gorm.DB, id uint, at time.Time) (bool, error)

	// Resolve writes a terminal status, guarded to non-terminal rows;
	// false means a concurrent transition won.
	Resolve(ctx context.Context, db *gorm.DB, id uint, to domain.RequestStatus, connected bool, at time.Time) (bool, error)

	// SetNotificationRef stores the delivery handle of the receiver
	// notification.
	SetNotificationRef(ctx context.Context, db *gorm.DB, id uint, ref string) error

	// CountPending / ListPendingPage project the receiver's open inbox.
	CountPending(ctx context.Context, db *gorm.DB, receiverID string) (int64, error)
	ListPendingPage(ctx context.Context, db *gorm.DB, receiverID string, offset, limit int) ([]domain.ChatRequest, error)

	// PendingStats returns count plus newest CreatedAt of the open inbox.
	PendingStats(ctx context.Context, db *gorm.DB, receiverID string) (int64, *time.Time, error)
}

// ActiveChatStore answers the busy predicate. Accept evaluates it on the
// transaction handle; Create evaluates it on the plain handle as an
// advisory pre-check only.
type ActiveChatStore interface {
	UserInActiveChat(ctx context.Context, db *gorm.DB, userID string) (bool, error)
}

// EligibilityChecker is the gate every creation attempt passes first.
// Implemented by EligibilityService.
type EligibilityChecker interface {
	CanRequest(ctx context.Context, senderID, receiverID string) (Decision, error)
}

// ChatOpener opens the actual chat session once an accept has committed.
type ChatOpener interface {
	OpenChat(ctx context.Context, userAID, userBID string) (chatID string, err error)
}

// BlockRegistry records a durable block relationship (external collaborator).
type BlockRegistry interface {
	RegisterBlock(ctx context.Context, blockerID, blockedID string) error
}

// RequestService orchestrates the chat-request lifecycle.
type RequestService struct {
	// DB is the GORM handle used for persistence and transactions.
	DB *gorm.DB
	// Requests is the chat-request persistence boundary.
	Requests RequestStore
	// Sessions answers the busy predicate.
	Sessions ActiveChatStore
	// Eligibility gates creation attempts.
	Eligibility EligibilityChecker
	// Opener opens the chat after a committed accept.
	Opener ChatOpener
	// Blocks is invoked after a committed block; optional.
	Blocks BlockRegistry
	// Notifier receives fire-and-forget lifecycle events; optional.
	Notifier notify.Notifier
	// Limiter caps per-sender creation attempts; optional.
	Limiter *ratelimit.Limiter

	// Cooldown is the minimum interval between requests of the same ordered
	// pair, measured from the previous request's creation, any outcome.
	Cooldown time.Duration

	// DefaultPageSize is used by ListPending when the caller passes no usable
	// page size.
	DefaultPageSize int

	// Log is the service logger.
	Log zerolog.Logger

	locks pairLocks
	now   func() time.Time
}

// NewRequestService constructs a RequestService wired to the GORM-backed
// stores with sane defaults. Callers replace collaborators as needed.
func NewRequestService(db *gorm.DB, elig EligibilityChecker, opener ChatOpener, log zerolog.Logger) *RequestService {
	return &RequestService{
		DB:              db,
		Requests:        GormRequestStore{},
		Sessions:        GormActiveChatStore{},
		Eligibility:     elig,
		Opener:          opener,
		Notifier:        notify.LogNotifier{Log: log},
		Cooldown:        30 * time.Minute,
		DefaultPageSize: 20,
		Log:             log,
		now:             time.Now,
	}
}

// Create attempts a new chat request from senderID to receiverID.
//
// Gates, in order, each with its own failure:
//  1. per-sender rate limit (ErrRateLimited),
//  2. receiver's eligibility filter (EligibilityError, or
//     ErrReceiverNotFound when the receiver does not exist),
//  3. the per-pair cooldown window (CooldownError with remaining time),
//  4. an advisory busy pre-check of both parties (ErrPartnerBusy). This one
//     is early rejection only; the authoritative guard runs at accept time.
//
// On success the request is inserted in pending and the receiver is
// notified asynchronously.
func (s *RequestService) Create(ctx context.Context, senderID, receiverID string) (*domain.ChatRequest, error) {
	if s.Limiter != nil && !s.Limiter.Allow("sender:"+senderID) {
		return nil, ErrRateLimited
	}

	dec, err := s.Eligibility.CanRequest(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if !dec.Allowed {
		metrics.RequestDenied(dec.Code)
		s.Log.Debug().
			Str("sender_id", senderID).
			Str("receiver_id", receiverID).
			Str("code", dec.Code).
			Msg("chat request denied by filter")
		return nil, &EligibilityError{Code: dec.Code, Reason: dec.Reason}
	}

	// Only the most recent request of this ordered pair matters; older ones
	// never extend the window.
	last, err := s.Requests.LastBetween(ctx, s.DB, senderID, receiverID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if last != nil {
		if remaining := s.Cooldown - s.now().UTC().Sub(last.CreatedAt); remaining > 0 {
			metrics.CooldownHit()
			return nil, &CooldownError{Remaining: remaining}
		}
	}

	for _, uid := range [2]string{senderID, receiverID} {
		busy, err := s.Sessions.UserInActiveChat(ctx, s.DB, uid)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, ErrPartnerBusy
		}
	}

	req, err := s.Requests.Create(ctx, s.DB, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	metrics.RequestCreated()
	s.Log.Info().
		Uint("request_id", req.ID).
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Msg("chat request created")

	s.dispatch(notify.Notification{
		Event:     notify.EventRequestReceived,
		UserID:    receiverID,
		PartnerID: senderID,
		RequestID: req.ID,
	}, true)
	return req, nil
}

// MarkViewed transitions a request from pending to viewed. Calling it on a
// request already past pending is an idempotent no-op; a missing request is
// ErrRequestNotFound.
func (s *RequestService) MarkViewed(ctx context.Context, id uint) error {
	ok, err := s.Requests.MarkViewed(ctx, s.DB, id, s.now().UTC())
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	// Nothing flipped: distinguish "already viewed or resolved" from "absent".
	if _, err := s.Requests.Get(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	return nil
}

// Accept resolves a request in the receiver's favor.
//
// The busy predicate for both parties is re-checked INSIDE the same
// transaction that flips the status; the pre-check at creation time proves
// nothing by now, since a competing accept may have completed meanwhile.
// If either party turned out busy, the request is resolved to expired and
// committed (never silently dropped), and ErrPartnerBusy is returned with
// the updated request. Otherwise the request becomes accepted/connected and,
// after the commit, the chat session is opened via the ChatOpener.
//
// The stripe locks for both users are held from before the transaction
// until the chat session exists, so a later accept sharing a user observes
// the busy predicate already true.
func (s *RequestService) Accept(ctx context.Context, id uint) (*domain.ChatRequest, error) {
	start := time.Now()
	defer func() { metrics.ObserveAccept(time.Since(start).Seconds()) }()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "RequestService.Accept")
	defer span.End()
	span.SetAttributes(attribute.Int64("request.id", int64(id)))

	// Load once, unlocked, to learn the pair to lock. State may be stale;
	// everything is re-read inside the transaction.
	peek, err := s.Requests.Get(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	unlock := s.locks.lock(peek.SenderID, peek.ReceiverID)
	defer unlock()

	var (
		out     *domain.ChatRequest
		expired bool
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.Requests.Get(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if cur.Status.Terminal() {
			return ErrStateConflict
		}

		busySender, err := s.Sessions.UserInActiveChat(ctx, tx, cur.SenderID)
		if err != nil {
			return err
		}
		busyReceiver, err := s.Sessions.UserInActiveChat(ctx, tx, cur.ReceiverID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if busySender || busyReceiver {
			ok, err := s.Requests.Resolve(ctx, tx, id, domain.StatusExpired, false, now)
			if err != nil {
				return err
			}
			if !ok {
				return ErrStateConflict
			}
			cur.Status = domain.StatusExpired
			cur.RespondedAt = &now
			out, expired = cur, true
			return nil
		}

		ok, err := s.Requests.Resolve(ctx, tx, id, domain.StatusAccepted, true, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStateConflict
		}
		cur.Status = domain.StatusAccepted
		cur.Connected = true
		cur.RespondedAt = &now
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	if expired {
		metrics.RequestResolved(string(domain.StatusExpired))
		s.Log.Info().
			Uint("request_id", id).
			Msg("accept found a party busy, request expired")
		s.dispatch(notify.Notification{
			Event:     notify.EventRequestExpired,
			UserID:    out.SenderID,
			PartnerID: out.ReceiverID,
			RequestID: id,
		}, false)
		return out, ErrPartnerBusy
	}

	// Still under the stripe locks: the session row must exist before any
	// competing accept re-evaluates the busy predicate.
	chatID, err := s.Opener.OpenChat(ctx, out.SenderID, out.ReceiverID)
	if err != nil {
		// The accept is committed; only the session opening failed. Surface
		// it so the command layer can recover, but never roll the terminal
		// status back.
		s.Log.Error().
			Err(err).
			Uint("request_id", id).
			Msg("chat open failed after accept commit")
		return out, fmt.Errorf("open chat: %w", err)
	}
	metrics.RequestResolved(string(domain.StatusAccepted))
	metrics.ChatOpened()
	s.Log.Info().
		Uint("request_id", id).
		Str("chat_id", chatID).
		Msg("chat request accepted")

	for _, n := range []notify.Notification{
		{Event: notify.EventRequestAccepted, UserID: out.SenderID, PartnerID: out.ReceiverID, RequestID: id, ChatID: chatID},
		{Event: notify.EventRequestAccepted, UserID: out.ReceiverID, PartnerID: out.SenderID, RequestID: id, ChatID: chatID},
	} {
		s.dispatch(n, false)
	}
	return out, nil
}

// Reject resolves a request against the sender. Allowed from any
// non-terminal state.
func (s *RequestService) Reject(ctx context.Context, id uint) (*domain.ChatRequest, error) {
	return s.resolve(ctx, id, domain.StatusRejected)
}

// Block resolves a request like Reject and additionally registers the block
// relationship with the external registry. The lifecycle itself only marks
// the request; a registry failure is logged, not propagated, since the mark
// has already committed.
func (s *RequestService) Block(ctx context.Context, id uint) (*domain.ChatRequest, error) {
	req, err := s.resolve(ctx, id, domain.StatusBlocked)
	if err != nil {
		return nil, err
	}
	if s.Blocks != nil {
		if err := s.Blocks.RegisterBlock(ctx, req.ReceiverID, req.SenderID); err != nil {
			s.Log.Warn().
				Err(err).
				Uint("request_id", id).
				Msg("block registry call failed")
		}
	}
	return req, nil
}

// resolve writes a terminal status from any non-terminal state, atomically.
func (s *RequestService) resolve(ctx context.Context, id uint, to domain.RequestStatus) (*domain.ChatRequest, error) {
	var out *domain.ChatRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := s.Requests.Get(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if cur.Status.Terminal() {
			return ErrStateConflict
		}
		now := s.now().UTC()
		ok, err := s.Requests.Resolve(ctx, tx, id, to, false, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrStateConflict
		}
		cur.Status = to
		cur.RespondedAt = &now
		out = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RequestResolved(string(to))
	s.Log.Info().
		Uint("request_id", id).
		Str("status", string(to)).
		Msg("chat request resolved")
	if to == domain.StatusRejected {
		s.dispatch(notify.Notification{
			Event:     notify.EventRequestRejected,
			UserID:    out.SenderID,
			PartnerID: out.ReceiverID,
			RequestID: id,
		}, false)
	}
	// A block sends the sender nothing. They simply never hear back.
	return out, nil
}

// ListPending returns a page of requests awaiting userID's response
// (status pending or viewed), newest first, plus the total count.
// It applies defaults for invalid page/pageSize.
func (s *RequestService) ListPending(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.DefaultPageSize
		if pageSize <= 0 {
			pageSize = 20
		}
	}
	offset := (page - 1) * pageSize

	total, err := s.Requests.CountPending(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatRequest{}, 0, nil
	}

	items, err := s.Requests.ListPendingPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// CountPending returns how many requests await userID's response.
func (s *RequestService) CountPending(ctx context.Context, userID string) (int64, error) {
	return s.Requests.CountPending(ctx, s.DB, userID)
}

// PendingStats returns the open-inbox count and the CreatedAt of the newest
// entry, for badge rendering by the command layer.
func (s *RequestService) PendingStats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return s.Requests.PendingStats(ctx, s.DB, userID)
}

// dispatch fires a notification without blocking the caller. It runs on a
// detached context: the lifecycle transaction has already committed and a
// canceled request context must not suppress delivery. When storeRef is set,
// a returned delivery handle is recorded on the request row, best effort.
func (s *RequestService) dispatch(n notify.Notification, storeRef bool) {
	if s.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ref, err := s.Notifier.Notify(ctx, n)
		if err != nil {
			s.Log.Warn().
				Err(err).
				Str("event", string(n.Event)).
				Uint("request_id", n.RequestID).
				Msg("notification delivery failed")
			return
		}
		if storeRef && ref != "" {
			if err := s.Requests.SetNotificationRef(ctx, s.DB, n.RequestID, ref); err != nil {
				s.Log.Warn().
					Err(err).
					Uint("request_id", n.RequestID).
					Msg("could not record notification ref")
			}
		}
	}()
}
