package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultCalendlyURL = "https://api.calendly.com"
	// Calendly refuses availability ranges longer than a week.
	calendlyWindow = 7 * 24 * time.Hour
)

// Calendly talks to the Calendly v2 REST API with a personal access token.
// Session type calendar refs are event type URIs.
type Calendly struct {
	baseURL string
	http    *http.Client
}

func NewCalendly(ctx context.Context, baseURL, token string) *Calendly {
	if baseURL == "" {
		baseURL = defaultCalendlyURL
	}
	return &Calendly{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})),
	}
}

type calendlyAvailableTimes struct {
	Collection []struct {
		Status            string    `json:"status"`
		InviteesRemaining int       `json:"invitees_remaining"`
		StartTime         time.Time `json:"start_time"`
		SchedulingURL     string    `json:"scheduling_url"`
	} `json:"collection"`
}

type calendlyEventType struct {
	Resource struct {
		URI      string `json:"uri"`
		Name     string `json:"name"`
		Duration int    `json:"duration"`
	} `json:"resource"`
}

type calendlyEvent struct {
	Resource struct {
		URI       string    `json:"uri"`
		Status    string    `json:"status"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
	} `json:"resource"`
}

type calendlyQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Position int    `json:"position"`
}

type calendlyInvitee struct {
	Resource struct {
		URI                 string       `json:"uri"`
		Event               string       `json:"event"`
		Name                string       `json:"name"`
		Email               string       `json:"email"`
		QuestionsAndAnswers []calendlyQA `json:"questions_and_answers"`
	} `json:"resource"`
}

func (c *Calendly) AvailableSlots(ctx context.Context, ref string, from, to time.Time) iter.Seq2[Slot, error] {
	return func(yield func(Slot, error) bool) {
		if ref == "" {
			yield(Slot{}, ErrNoCalendarRef)
			return
		}
		if err := c.ownURI(ref); err != nil {
			yield(Slot{}, err)
			return
		}

		var et calendlyEventType
		if err := c.do(ctx, http.MethodGet, ref, nil, &et); err != nil {
			yield(Slot{}, err)
			return
		}
		length := time.Duration(et.Resource.Duration) * time.Minute

		for start := from; start.Before(to); start = start.Add(calendlyWindow) {
			end := start.Add(calendlyWindow)
			if end.After(to) {
				end = to
			}

			q := url.Values{}
			q.Set("event_type", ref)
			q.Set("start_time", start.UTC().Format(time.RFC3339))
			q.Set("end_time", end.UTC().Format(time.RFC3339))

			var page calendlyAvailableTimes
			if err := c.do(ctx, http.MethodGet, c.baseURL+"/event_type_available_times?"+q.Encode(), nil, &page); err != nil {
				yield(Slot{}, err)
				return
			}
			for _, t := range page.Collection {
				if t.Status != "available" || t.InviteesRemaining < 1 {
					continue
				}
				slot := Slot{Start: t.StartTime.UTC(), End: t.StartTime.UTC().Add(length), Handle: t.SchedulingURL}
				if !yield(slot, nil) {
					return
				}
			}
		}
	}
}

func (c *Calendly) Schedule(ctx context.Context, ref string, slot Slot, invitee Invitee) (*ScheduledEvent, error) {
	if ref == "" {
		return nil, ErrNoCalendarRef
	}
	if err := c.ownURI(ref); err != nil {
		return nil, err
	}

	qas := make([]calendlyQA, 0, len(invitee.Answers))
	for q, a := range invitee.Answers {
		qas = append(qas, calendlyQA{Question: q, Answer: a})
	}
	body := map[string]any{
		"event_type": ref,
		"start_time": slot.Start.UTC().Format(time.RFC3339),
		"invitee": map[string]string{
			"name":     invitee.Name,
			"email":    invitee.Email,
			"timezone": "UTC",
		},
	}
	if len(qas) > 0 {
		body["questions_and_answers"] = qas
	}

	var created calendlyInvitee
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/invitees", body, &created); err != nil {
		return nil, err
	}
	return c.GetScheduledEvent(ctx, created.Resource.Event, created.Resource.URI)
}

func (c *Calendly) GetScheduledEvent(ctx context.Context, eventURI, inviteeURI string) (*ScheduledEvent, error) {
	if err := c.ownURI(eventURI); err != nil {
		return nil, err
	}
	if err := c.ownURI(inviteeURI); err != nil {
		return nil, err
	}

	var ev calendlyEvent
	if err := c.do(ctx, http.MethodGet, eventURI, nil, &ev); err != nil {
		return nil, err
	}
	var inv calendlyInvitee
	if err := c.do(ctx, http.MethodGet, inviteeURI, nil, &inv); err != nil {
		return nil, err
	}
	if inv.Resource.Event != "" && inv.Resource.Event != eventURI {
		return nil, fmt.Errorf("calendly invitee %s belongs to another event", inviteeURI)
	}

	out := &ScheduledEvent{
		EventURI:   eventURI,
		InviteeURI: inviteeURI,
		Start:      ev.Resource.StartTime.UTC(),
		End:        ev.Resource.EndTime.UTC(),
	}
	out.Contact.Name = inv.Resource.Name
	out.Contact.Email = inv.Resource.Email
	if len(inv.Resource.QuestionsAndAnswers) > 0 {
		out.Answers = make(map[string]string, len(inv.Resource.QuestionsAndAnswers))
		for _, qa := range inv.Resource.QuestionsAndAnswers {
			out.Answers[qa.Question] = qa.Answer
		}
	}
	return out, nil
}

// ownURI keeps the bearer token from being sent anywhere but Calendly.
func (c *Calendly) ownURI(uri string) error {
	if !strings.HasPrefix(uri, c.baseURL+"/") {
		return ErrForeignURI
	}
	return nil
}

func (c *Calendly) do(ctx context.Context, method, uri string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calendly %s %s: %w", method, uri, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return ErrSlotUnavailable
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("calendly %s %s: status %d: %s", method, uri, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
