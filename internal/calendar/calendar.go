// Package calendar adapts external scheduling providers to the narrow
// capability the booking flow needs: list open slots, book one, and read back
// what was booked.
package calendar

import (
	"context"
	"errors"
	"iter"
	"time"

	"builderhub/internal/domain"
)

var (
	ErrNoCalendarRef   = errors.New("session type has no calendar reference")
	ErrSlotUnavailable = errors.New("slot is no longer available")
	ErrNotFound        = errors.New("calendar resource not found")
	ErrForeignURI      = errors.New("uri does not belong to the calendar provider")
)

// Slot is an open time window. Handle is provider specific and must be passed
// back unchanged when scheduling.
type Slot struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Handle string    `json:"handle,omitempty"`
}

type Invitee struct {
	Name    string            `json:"name"`
	Email   string            `json:"email"`
	Answers map[string]string `json:"answers,omitempty"`
}

type ScheduledEvent struct {
	EventURI   string            `json:"event_uri"`
	InviteeURI string            `json:"invitee_uri"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	Contact    domain.Contact    `json:"contact"`
	Answers    map[string]string `json:"answers,omitempty"`
}

type Calendar interface {
	// AvailableSlots lazily walks open slots of ref between from and to. The
	// sequence stops at the first error.
	AvailableSlots(ctx context.Context, ref string, from, to time.Time) iter.Seq2[Slot, error]
	Schedule(ctx context.Context, ref string, slot Slot, invitee Invitee) (*ScheduledEvent, error)
	GetScheduledEvent(ctx context.Context, eventURI, inviteeURI string) (*ScheduledEvent, error)
}

// Take pulls at most limit slots from seq.
func Take(seq iter.Seq2[Slot, error], limit int) ([]Slot, error) {
	out := make([]Slot, 0, limit)
	if limit <= 0 {
		return out, nil
	}
	for s, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func contactOf(i Invitee) domain.Contact {
	return domain.Contact{Name: i.Name, Email: i.Email}
}
