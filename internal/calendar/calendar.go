// ABOUTME: Read-only Google Calendar integration
// ABOUTME: Surfaces upcoming events alongside tasks on the board

package calendar

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// lookahead is how far into the future events are fetched.
const lookahead = 5 * 24 * time.Hour

// Event is a calendar entry shaped like a task for the board. IDs carry a
// "cal_" prefix so clients can tell them apart from task rows.
type Event struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	EventStart  string `json:"event_start"`
	EventEnd    string `json:"event_end"`
	AssignedBy  string `json:"assigned_by"`
	CreatedAt   string `json:"created_at"`
}

// Client fetches upcoming events from one calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
	logger     *slog.Logger
}

// New creates a client from base64-encoded service account credentials.
// calendarID defaults to "primary".
func New(ctx context.Context, credentialsBase64, calendarID string) (*Client, error) {
	creds, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("decoding calendar credentials: %w", err)
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON(creds),
		option.WithScopes(gcal.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	return newClient(svc, calendarID), nil
}

func newClient(svc *gcal.Service, calendarID string) *Client {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{
		svc:        svc,
		calendarID: calendarID,
		logger:     slog.Default().With("component", "calendar"),
	}
}

// UpcomingEvents returns events starting within the lookahead window. It
// never propagates errors: a broken calendar must not take the task board
// down with it.
func (c *Client) UpcomingEvents(ctx context.Context) []Event {
	if c == nil {
		return nil
	}

	now := time.Now().UTC()
	result, err := c.svc.Events.List(c.calendarID).
		Context(ctx).
		TimeMin(now.Format(time.RFC3339)).
		TimeMax(now.Add(lookahead).Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		// Keep the log minimal so credentials never leak into it.
		c.logger.Warn("calendar fetch failed", "error", err.Error())
		return nil
	}

	events := make([]Event, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, Event{
			ID:          "cal_" + shortID(item.Id),
			Title:       eventTitle(item),
			Description: item.Description,
			Status:      "EVENT",
			EventStart:  eventTime(item.Start),
			EventEnd:    eventTime(item.End),
			AssignedBy:  "calendar",
			CreatedAt:   eventCreated(item, now),
		})
	}
	return events
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func eventTitle(item *gcal.Event) string {
	if item.Summary == "" {
		return "Untitled Event"
	}
	return item.Summary
}

// eventTime prefers the timed start/end, falling back to the all-day date.
func eventTime(t *gcal.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

func eventCreated(item *gcal.Event, now time.Time) string {
	if item.Created != "" {
		return item.Created
	}
	return now.Format(time.RFC3339)
}
