package calendar

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	googleRefPrefix = "gcal:"
	googleURIPrefix = "gcal://"
)

// Google books directly into a Google Calendar. Refs look like
// "gcal:<calendar id>?duration=30&open=09:00&close=17:00" (hours in UTC).
type Google struct {
	svc      *gcal.Service
	interval time.Duration
}

func NewGoogle(ctx context.Context, accessToken string, interval time.Duration, opts ...option.ClientOption) (*Google, error) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	opts = append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}, opts...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &Google{svc: svc, interval: interval}, nil
}

type googleRef struct {
	calendarID  string
	duration    time.Duration
	open, close time.Duration
}

func parseGoogleRef(ref string) (googleRef, error) {
	if ref == "" {
		return googleRef{}, ErrNoCalendarRef
	}
	if !strings.HasPrefix(ref, googleRefPrefix) {
		return googleRef{}, ErrForeignURI
	}
	id, rawQuery, _ := strings.Cut(strings.TrimPrefix(ref, googleRefPrefix), "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil || id == "" {
		return googleRef{}, fmt.Errorf("invalid google calendar ref %q", ref)
	}

	out := googleRef{calendarID: id, duration: 30 * time.Minute, open: 9 * time.Hour, close: 17 * time.Hour}
	if v := q.Get("duration"); v != "" {
		mins, err := strconv.Atoi(v)
		if err != nil || mins <= 0 {
			return googleRef{}, fmt.Errorf("invalid duration in ref %q", ref)
		}
		out.duration = time.Duration(mins) * time.Minute
	}
	for key, dst := range map[string]*time.Duration{"open": &out.open, "close": &out.close} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		t, err := time.Parse("15:04", v)
		if err != nil {
			return googleRef{}, fmt.Errorf("invalid %s in ref %q", key, ref)
		}
		*dst = time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
	}
	if out.close <= out.open {
		return googleRef{}, fmt.Errorf("empty working window in ref %q", ref)
	}
	return out, nil
}

func (g *Google) AvailableSlots(ctx context.Context, ref string, from, to time.Time) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		r, err := parseGoogleRef(ref)
		if err != nil {
			yield(Slot{}, err)
			return
		}
		from, to = from.UTC(), to.UTC()

		for day := from.Truncate(24 * time.Hour); day.Before(to); day = day.Add(24 * time.Hour) {
			open, close := day.Add(r.open), day.Add(r.close)
			if open.Before(from) {
				open = from
			}
			if close.After(to) {
				close = to
			}
			if !close.After(open) {
				continue
			}

			busy, err := g.busy(ctx, r.calendarID, open, close)
			if err != nil {
				yield(Slot{}, err)
				return
			}
			for _, s := range chopSlots(day.Add(r.open), open, close, r.duration, g.interval, busy) {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

// chopSlots lays slots of length d every step from anchor, keeping those that
// fit in [open, close) and miss every busy period.
func chopSlots(anchor, open, close time.Time, d, step time.Duration, busy []Slot) []Slot {
	var out []Slot
	for s := anchor; !s.Add(d).After(close); s = s.Add(step) {
		if s.Before(open) {
			continue
		}
		slot := Slot{Start: s, End: s.Add(d)}
		if overlapsAny(slot, busy) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

func overlapsAny(s Slot, busy []Slot) bool {
	for _, b := range busy {
		if s.Start.Before(b.End) && b.Start.Before(s.End) {
			return true
		}
	}
	return false
}

func (g *Google) busy(ctx context.Context, calendarID string, from, to time.Time) ([]Slot, error) {
	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, ErrNotFound
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("freebusy %s: %s", calendarID, cal.Errors[0].Reason)
	}

	out := make([]Slot, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err1 := time.Parse(time.RFC3339, p.Start)
		end, err2 := time.Parse(time.RFC3339, p.End)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, Slot{Start: start.UTC(), End: end.UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (g *Google) Schedule(ctx context.Context, ref string, slot Slot, invitee Invitee) (*ScheduledEvent, error) {
	r, err := parseGoogleRef(ref)
	if err != nil {
		return nil, err
	}
	if slot.End.IsZero() {
		slot.End = slot.Start.Add(r.duration)
	}

	busy, err := g.busy(ctx, r.calendarID, slot.Start.UTC(), slot.End.UTC())
	if err != nil {
		return nil, err
	}
	if overlapsAny(slot, busy) {
		return nil, ErrSlotUnavailable
	}

	var desc strings.Builder
	for q, a := range invitee.Answers {
		fmt.Fprintf(&desc, "%s: %s\n", q, a)
	}
	ev, err := g.svc.Events.Insert(r.calendarID, &gcal.Event{
		Summary:     "Session with " + invitee.Name,
		Description: desc.String(),
		Start:       &gcal.EventDateTime{DateTime: slot.Start.UTC().Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: slot.End.UTC().Format(time.RFC3339)},
		Attendees:   []*gcal.EventAttendee{{Email: invitee.Email, DisplayName: invitee.Name}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	eventURI := googleEventURI(r.calendarID, ev.Id)
	return &ScheduledEvent{
		EventURI:   eventURI,
		InviteeURI: eventURI + "/invitees/" + url.PathEscape(invitee.Email),
		Start:      slot.Start.UTC(),
		End:        slot.End.UTC(),
		Contact:    contactOf(invitee),
		Answers:    invitee.Answers,
	}, nil
}

func (g *Google) GetScheduledEvent(ctx context.Context, eventURI, inviteeURI string) (*ScheduledEvent, error) {
	calendarID, eventID, err := parseGoogleEventURI(eventURI)
	if err != nil {
		return nil, err
	}
	email, ok := strings.CutPrefix(inviteeURI, eventURI+"/invitees/")
	if !ok {
		return nil, ErrForeignURI
	}
	email, err = url.PathUnescape(email)
	if err != nil {
		return nil, ErrForeignURI
	}

	ev, err := g.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	out := &ScheduledEvent{EventURI: eventURI, InviteeURI: inviteeURI}
	if ev.Start != nil {
		out.Start, _ = time.Parse(time.RFC3339, ev.Start.DateTime)
		out.Start = out.Start.UTC()
	}
	if ev.End != nil {
		out.End, _ = time.Parse(time.RFC3339, ev.End.DateTime)
		out.End = out.End.UTC()
	}
	for _, a := range ev.Attendees {
		if strings.EqualFold(a.Email, email) {
			out.Contact.Name = a.DisplayName
			out.Contact.Email = a.Email
			return out, nil
		}
	}
	return nil, ErrNotFound
}

func googleEventURI(calendarID, eventID string) string {
	return googleURIPrefix + url.PathEscape(calendarID) + "/events/" + url.PathEscape(eventID)
}

func parseGoogleEventURI(uri string) (string, string, error) {
	rest, ok := strings.CutPrefix(uri, googleURIPrefix)
	if !ok {
		return "", "", ErrForeignURI
	}
	cal, event, ok := strings.Cut(rest, "/events/")
	if !ok || cal == "" || event == "" || strings.Contains(event, "/") {
		return "", "", ErrForeignURI
	}
	calendarID, err1 := url.PathUnescape(cal)
	eventID, err2 := url.PathUnescape(event)
	if err1 != nil || err2 != nil {
		return "", "", ErrForeignURI
	}
	return calendarID, eventID, nil
}
