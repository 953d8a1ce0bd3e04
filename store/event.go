package store

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyScope is returned when an event query carries no owner scope.
var ErrEmptyScope = errors.New("owner scope is required")

// ErrEventNotFound is returned when an id does not exist inside the owner scope.
var ErrEventNotFound = errors.New("event not found")

// OwnerScope distinguishes a personal event set from a shared family event set.
// When FamilyID is set it takes precedence over UserID.
type OwnerScope struct {
	UserID   int32
	FamilyID *int32
}

// IsZero reports whether the scope identifies no owner at all.
func (s OwnerScope) IsZero() bool {
	return s.UserID == 0 && (s.FamilyID == nil || *s.FamilyID == 0)
}

// IsFamily reports whether the scope targets the shared family set.
func (s OwnerScope) IsFamily() bool {
	return s.FamilyID != nil && *s.FamilyID != 0
}

// Event is the object representing a calendar event.
type Event struct {
	ID             int32
	UID            string
	CreatorID      int32
	FamilyID       *int32
	RowStatus      RowStatus
	CreatedTs      int64
	UpdatedTs      int64
	Title          string
	Description    string
	Location       string
	StartTs        int64
	EndTs          *int64
	AllDay         bool
	Timezone       string
	RecurrenceRule *string
	RecurrenceText *string
}

// FindEvent is the find condition for events.
type FindEvent struct {
	ID    *int32
	UID   *string
	Scope OwnerScope

	// TitleEquals matches the title case-insensitively.
	TitleEquals *string
	// TitleContains matches titles containing the term case-insensitively.
	TitleContains *string

	RowStatus *RowStatus

	// StartTsAfter keeps events starting at or after the timestamp.
	StartTsAfter *int64

	// OrderByStartDesc orders by start_ts descending; ascending otherwise.
	OrderByStartDesc bool
	Limit            *int
}

// UpdateEvent is the update request for an event.
type UpdateEvent struct {
	ID    int32
	Scope OwnerScope

	UpdatedTs   *int64
	RowStatus   *RowStatus
	Title       *string
	Description *string
	Location    *string
	StartTs     *int64
	EndTs       *int64
	// ClearEndTs makes the event open-ended; it wins over EndTs.
	ClearEndTs     bool
	AllDay         *bool
	Timezone       *string
	RecurrenceRule *string
	RecurrenceText *string
}

// DeleteEvent is the delete request for an event.
type DeleteEvent struct {
	ID    int32
	Scope OwnerScope
}

// CreateEvent creates a new event.
func (s *Store) CreateEvent(ctx context.Context, create *Event) (*Event, error) {
	return s.driver.CreateEvent(ctx, create)
}

// ListEvents lists events with filter.
func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, error) {
	if find.Scope.IsZero() {
		return nil, ErrEmptyScope
	}
	return s.driver.ListEvents(ctx, find)
}

// GetEvent returns the first event matching find, or nil when nothing matches.
func (s *Store) GetEvent(ctx context.Context, find *FindEvent) (*Event, error) {
	limit := 1
	f := *find
	f.Limit = &limit
	list, err := s.ListEvents(ctx, &f)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpdateEvent updates an event inside its owner scope.
func (s *Store) UpdateEvent(ctx context.Context, update *UpdateEvent) error {
	if update.Scope.IsZero() {
		return ErrEmptyScope
	}
	return s.driver.UpdateEvent(ctx, update)
}

// DeleteEvent deletes an event inside its owner scope.
func (s *Store) DeleteEvent(ctx context.Context, delete *DeleteEvent) error {
	if delete.Scope.IsZero() {
		return ErrEmptyScope
	}
	return s.driver.DeleteEvent(ctx, delete)
}

// StartTime returns the event start as time.Time in the event timezone when known.
func (e *Event) StartTime() time.Time {
	return time.Unix(e.StartTs, 0).In(e.location())
}

// EndTime returns the event end, or nil for open-ended events.
func (e *Event) EndTime() *time.Time {
	if e.EndTs == nil {
		return nil
	}
	t := time.Unix(*e.EndTs, 0).In(e.location())
	return &t
}

func (e *Event) location() *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsRecurring reports whether the event carries a recurrence.
func (e *Event) IsRecurring() bool {
	return (e.RecurrenceRule != nil && *e.RecurrenceRule != "") ||
		(e.RecurrenceText != nil && *e.RecurrenceText != "")
}
