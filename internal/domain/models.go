// Package domain defines the persistence models for the chat-request
// matchmaking engine. These types are mapped with GORM and form the core
// data layer of the application: the receiver-owned eligibility filter,
// the chat request itself, and the active chat session rows against which
// the single-active-chat invariant is enforced.
package domain

import "time"

// Gender is a profile attribute and a filter choice. The empty value means
// "unset" on a filter and "unknown" on a profile.
type Gender string

// Gender values accepted by profiles and filters.
const (
	GenderUnset  Gender = ""
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	// GenderAll is only meaningful on a filter: accept senders of any gender.
	GenderAll Gender = "all"
)

// Valid reports whether g is an acceptable filter choice.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderAll:
		return true
	}
	return false
}

// DistanceClass is the geographic restriction a receiver may place on
// incoming requests. Region classes compare profile regions by string
// equality; radius classes compare great-circle distance between the two
// profiles' coordinates.
type DistanceClass string

// DistanceClass values.
const (
	DistanceUnset         DistanceClass = ""
	DistanceSameRegion    DistanceClass = "same_region"
	DistanceNotSameRegion DistanceClass = "not_same_region"
	DistanceWithin100Km   DistanceClass = "within_100km"
	DistanceWithin10Km    DistanceClass = "within_10km"
	DistanceAll           DistanceClass = "all"
)

// Valid reports whether d is an acceptable filter choice.
func (d DistanceClass) Valid() bool {
	switch d {
	case DistanceSameRegion, DistanceNotSameRegion, DistanceWithin100Km, DistanceWithin10Km, DistanceAll:
		return true
	}
	return false
}

// RadiusKm returns the radius limit for a radius class and true, or (0, false)
// for region classes, "all", and unset.
func (d DistanceClass) RadiusKm() (float64, bool) {
	switch d {
	case DistanceWithin100Km:
		return 100, true
	case DistanceWithin10Km:
		return 10, true
	}
	return 0, false
}

// RequestStatus is the lifecycle state of a chat request.
//
// The machine is pending → viewed → {accepted | rejected | blocked | expired}.
// The four resolution states are terminal: a terminal status is written
// exactly once and no transition leaves it.
type RequestStatus string

// RequestStatus values.
const (
	StatusPending  RequestStatus = "pending"
	StatusViewed   RequestStatus = "viewed"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
	StatusBlocked  RequestStatus = "blocked"
	StatusExpired  RequestStatus = "expired"
)

// Terminal reports whether s admits no further transition.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRejected, StatusBlocked, StatusExpired:
		return true
	}
	return false
}

// NonTerminalStatuses enumerates the states a request may still be resolved
// from. Guarded status UPDATEs use it as their WHERE predicate.
var NonTerminalStatuses = []RequestStatus{StatusPending, StatusViewed}

// GeoPoint is a latitude/longitude pair attached to a profile. It is
// optional; a profile without coordinates cannot satisfy (as sender) or
// enforce (as receiver) a radius distance class.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Profile is the snapshot of a user returned by the external profile
// collaborator. It is not a persistence model of this module; user storage
// lives outside the matchmaking core.
type Profile struct {
	UserID   string    `json:"user_id"`
	Gender   Gender    `json:"gender"`
	Age      int       `json:"age"`
	Region   string    `json:"region"`
	Location *GeoPoint `json:"location,omitempty"`
}

// ChatFilter is the receiver-owned rule set gating who may send them a chat
// request. One row per user; the wizard overwrites it idempotently and
// "deletes" it by zeroing the fields, never by removing the row (the filter
// is logically owned by the user record).
//
// An entirely unset filter means the receiver accepts everyone.
type ChatFilter struct {
	UserID        string        `json:"user_id"        gorm:"type:varchar(64);primaryKey"`
	Gender        Gender        `json:"gender"         gorm:"type:varchar(16);not null;default:''"`
	DistanceClass DistanceClass `json:"distance_class" gorm:"type:varchar(24);not null;default:''"`
	MinAge        *int          `json:"min_age,omitempty"`
	MaxAge        *int          `json:"max_age,omitempty"`
	Visible       bool          `json:"visible"        gorm:"not null;default:false"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TableName returns the database table name for ChatFilter.
func (ChatFilter) TableName() string { return "chat_filters" }

// Unset reports whether no restricting field is set, in which case
// eligibility evaluation is skipped entirely and the request is allowed.
func (f *ChatFilter) Unset() bool {
	if f == nil {
		return true
	}
	return (f.Gender == GenderUnset || f.Gender == GenderAll) &&
		(f.DistanceClass == DistanceUnset || f.DistanceClass == DistanceAll) &&
		f.MinAge == nil && f.MaxAge == nil
}

// AgeBandSet reports whether the age check is enforceable: both bounds must
// be present, a single bound is ignored.
func (f *ChatFilter) AgeBandSet() bool {
	return f != nil && f.MinAge != nil && f.MaxAge != nil
}

// ChatRequest is one sender→receiver chat attempt.
//
// Fields:
//   - ID: auto-increment primary key.
//   - SenderID / ReceiverID: the ordered user pair. The composite index on
//     (sender_id, receiver_id, created_at) serves cooldown lookups; the one
//     on (receiver_id, status) serves pending-inbox projections.
//   - Status: lifecycle state, see RequestStatus.
//   - Connected: true only for accepted requests whose chat was opened.
//   - NotificationRef: opaque handle of the delivery notification, if any.
//   - ViewedAt / RespondedAt: set by the corresponding transitions.
//
// Rows are never deleted; resolved requests are retained for cooldown and
// audit lookups.
type ChatRequest struct {
	ID              uint          `json:"id"          gorm:"primaryKey;autoIncrement"`
	SenderID        string        `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_pair_created,priority:1"`
	ReceiverID      string        `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_pair_created,priority:2;index:idx_receiver_status,priority:1"`
	Status          RequestStatus `json:"status"      gorm:"type:varchar(16);not null;default:'pending';index:idx_receiver_status,priority:2;check:status IN ('pending','viewed','accepted','rejected','blocked','expired')"`
	Connected       bool          `json:"connected"   gorm:"not null;default:false"`
	NotificationRef string        `json:"notification_ref,omitempty" gorm:"type:varchar(128)"`
	CreatedAt       time.Time     `json:"created_at"  gorm:"index:idx_pair_created,priority:3"`
	UpdatedAt       time.Time     `json:"updated_at"`
	ViewedAt        *time.Time    `json:"viewed_at,omitempty"`
	RespondedAt     *time.Time    `json:"responded_at,omitempty"`
}

// TableName returns the database table name for ChatRequest.
func (ChatRequest) TableName() string { return "chat_requests" }

// Session status values.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// ChatSession is an opened one-to-one chat. The busy predicate ("user U is
// in an active chat") that the accept path re-verifies transactionally is
// "a chat_sessions row in state active names U on either side".
type ChatSession struct {
	ID        string     `json:"id"        gorm:"type:char(36);primaryKey"`
	UserAID   string     `json:"user_a_id" gorm:"type:varchar(64);not null;index"`
	UserBID   string     `json:"user_b_id" gorm:"type:varchar(64);not null;index"`
	Status    string     `json:"status"    gorm:"type:varchar(16);not null;default:'active';index;check:status IN ('active','closed')"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// TableName returns the database table name for ChatSession.
func (ChatSession) TableName() string { return "chat_sessions" }
