package flow

import (
	"time"

	"builderhub/internal/calendar"
)

type StartFlowRequest struct {
	BuilderID string `json:"builder_id" binding:"required"`
}

type SelectSessionTypeRequest struct {
	SessionTypeID string `json:"session_type_id" binding:"required"`
}

type ChoosePathwayRequest struct {
	Pathway string `json:"pathway" binding:"required"`
}

type SetAnswersRequest struct {
	Answers map[string]string `json:"answers" binding:"required"`
}

type ScheduleSlotRequest struct {
	Start   time.Time         `json:"start" binding:"required"`
	End     time.Time         `json:"end" binding:"required"`
	Handle  string            `json:"handle"`
	Name    string            `json:"name"`
	Email   string            `json:"email" binding:"required,email"`
	Answers map[string]string `json:"answers"`
}

type CalendarEventRequest struct {
	EventURI   string `json:"event_uri" binding:"required"`
	InviteeURI string `json:"invitee_uri" binding:"required"`
}

type SlotsResponse struct {
	View  *View           `json:"view"`
	Slots []calendar.Slot `json:"slots"`
}
