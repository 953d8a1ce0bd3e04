package v1

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/familycal/internal/errors"
	"github.com/hrygo/familycal/plugin/ai/aitime"
	"github.com/hrygo/familycal/plugin/ai/intent"
	"github.com/hrygo/familycal/server/service/calendar"
	"github.com/hrygo/familycal/store"
)

// maxListRange bounds the span of a range listing.
const maxListRange = 366 * 24 * time.Hour

type EventResponse struct {
	ID             int32      `json:"id"`
	UID            string     `json:"uid"`
	FamilyID       *int32     `json:"family_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	Start          time.Time  `json:"start"`
	End            *time.Time `json:"end,omitempty"`
	AllDay         bool       `json:"all_day"`
	Timezone       string     `json:"timezone"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	RecurrenceText string     `json:"recurrence_text,omitempty"`
	CreatedTs      int64      `json:"created_ts"`
	UpdatedTs      int64      `json:"updated_ts"`
}

type EventInstanceResponse struct {
	Event     *EventResponse `json:"event"`
	Start     time.Time      `json:"start"`
	End       *time.Time     `json:"end,omitempty"`
	Recurring bool           `json:"recurring"`
}

// CreateEvent stores a confirmed preview as a new event.
// POST /api/v1/events
func (s *APIV1Service) CreateEvent(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	var preview intent.EventPreview
	if err := c.Bind(&preview); err != nil {
		return respondError(c, errors.InvalidArgument("malformed request body"))
	}
	preview.ID = nil

	event, err := s.Calendar.ConfirmPreview(c.Request().Context(), scope, &preview)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, convertEvent(event))
}

// UpdateEvent applies a confirmed preview to an existing event.
// PUT /api/v1/events/:id
func (s *APIV1Service) UpdateEvent(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := eventIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	var preview intent.EventPreview
	if err := c.Bind(&preview); err != nil {
		return respondError(c, errors.InvalidArgument("malformed request body"))
	}
	preview.ID = &id

	event, err := s.Calendar.ConfirmPreview(c.Request().Context(), scope, &preview)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertEvent(event))
}

// GetEvent returns one event.
// GET /api/v1/events/:id
func (s *APIV1Service) GetEvent(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := eventIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	event, err := s.Calendar.GetEvent(c.Request().Context(), scope, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, convertEvent(event))
}

// DeleteEvent removes one event.
// DELETE /api/v1/events/:id
func (s *APIV1Service) DeleteEvent(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := eventIDParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Calendar.DeleteEvent(c.Request().Context(), scope, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SearchEvents lists events whose title matches q.
// GET /api/v1/events/search?q=soccer&limit=5
func (s *APIV1Service) SearchEvents(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil {
			return respondError(c, errors.InvalidArgument("invalid limit"))
		}
	}
	events, err := s.Calendar.SearchEvents(c.Request().Context(), scope, c.QueryParam("q"), limit)
	if err != nil {
		return respondError(c, err)
	}
	resp := convertEvents(events)
	if resp == nil {
		resp = []*EventResponse{}
	}
	return c.JSON(http.StatusOK, resp)
}

// ListEvents returns event instances in a range, expanding recurrences.
// GET /api/v1/events?start=2025-03-01&end=2025-04-01
func (s *APIV1Service) ListEvents(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	loc := time.UTC
	if l, err := time.LoadLocation(s.Profile.Timezone); err == nil {
		loc = l
	}
	start, err := parseRangeBound(c.QueryParam("start"), loc)
	if err != nil {
		return respondError(c, err)
	}
	end, err := parseRangeBound(c.QueryParam("end"), loc)
	if err != nil {
		return respondError(c, err)
	}
	if end.Sub(start) > maxListRange {
		return respondError(c, errors.InvalidArgument("range must not exceed one year"))
	}

	instances, err := s.Calendar.FindEvents(c.Request().Context(), scope, start, end)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]*EventInstanceResponse, 0, len(instances))
	for _, instance := range instances {
		resp = append(resp, convertInstance(instance))
	}
	return c.JSON(http.StatusOK, resp)
}

// ExportEvents serves the actor's events as an iCalendar feed.
// GET /api/v1/events/export.ics
func (s *APIV1Service) ExportEvents(c echo.Context) error {
	scope, err := actorScope(c)
	if err != nil {
		return respondError(c, err)
	}
	var buf bytes.Buffer
	if err := s.Calendar.ExportICS(c.Request().Context(), scope, &buf); err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="familycal.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

// parseRangeBound accepts RFC 3339 timestamps or YYYY-MM-DD days in loc.
func parseRangeBound(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.InvalidArgument("start and end are required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(aitime.DateLayout, raw, loc); err == nil {
		return t, nil
	}
	return time.Time{}, errors.InvalidArgument("invalid range bound " + strconv.Quote(raw))
}

func convertEvent(event *store.Event) *EventResponse {
	resp := &EventResponse{
		ID:          event.ID,
		UID:         event.UID,
		FamilyID:    event.FamilyID,
		Title:       event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.StartTime(),
		End:         event.EndTime(),
		AllDay:      event.AllDay,
		Timezone:    event.Timezone,
		CreatedTs:   event.CreatedTs,
		UpdatedTs:   event.UpdatedTs,
	}
	if event.RecurrenceRule != nil {
		resp.RecurrenceRule = *event.RecurrenceRule
	}
	if event.RecurrenceText != nil {
		resp.RecurrenceText = *event.RecurrenceText
	}
	return resp
}

func convertInstance(instance *calendar.EventInstance) *EventInstanceResponse {
	return &EventInstanceResponse{
		Event:     convertEvent(instance.Event),
		Start:     instance.Start,
		End:       instance.End,
		Recurring: instance.Recurring,
	}
}
