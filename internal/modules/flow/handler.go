package flow

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"builderhub/internal/calendar"
	"builderhub/internal/events"
	"builderhub/internal/middleware"
	"builderhub/internal/pkg/response"
	"builderhub/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
	hub     *events.Hub
}

func NewHandler(service *Service, hub *events.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	flows := rg.Group("/flows")
	flows.Use(h.forwardAuthError)
	{
		flows.POST("", h.StartFlow)
		flows.GET("/:id", h.GetFlow)
		flows.POST("/:id/mount", h.Mount)
		flows.POST("/:id/session-type", h.SelectSessionType)
		flows.POST("/:id/pathway", h.ChoosePathway)
		flows.POST("/:id/answers", h.SetAnswers)
		flows.GET("/:id/slots", h.ListSlots)
		flows.POST("/:id/schedule", h.ScheduleSlot)
		flows.POST("/:id/calendar-event", h.CalendarEvent)
		flows.POST("/:id/retry", h.Retry)
		flows.POST("/:id/retry-payment", h.RetryPayment)
		flows.POST("/:id/payment-status", h.CheckPayment)
		flows.POST("/:id/cancel", h.Cancel)
		flows.POST("/:id/reset", h.Reset)
		if h.hub != nil {
			flows.GET("/:id/events", h.Events)
		}
	}
}

// forwardAuthError reports a rejected token on the addressed flow's stream.
func (h *Handler) forwardAuthError(c *gin.Context) {
	if err := middleware.AuthError(c); err != nil {
		h.service.ReportAuthError(c.Param("id"), err)
	}
	c.Next()
}

// StartFlow handles POST /api/v1/flows. The query string is the booking
// page's own query and may carry payment return parameters.
func (h *Handler) StartFlow(c *gin.Context) {
	var req StartFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "builder_id is required")
		return
	}
	view, err := h.service.Start(c.Request.Context(), middleware.Viewer(c), req.BuilderID, c.Request.URL.Query())
	h.respond(c, http.StatusCreated, view, err)
}

// GetFlow handles GET /api/v1/flows/:id
func (h *Handler) GetFlow(c *gin.Context) {
	view, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.Viewer(c))
	h.respond(c, http.StatusOK, view, err)
}

// Mount handles POST /api/v1/flows/:id/mount?bookingId=&session_id=
func (h *Handler) Mount(c *gin.Context) {
	q := c.Request.URL.Query()
	h.do(c, func(ctx context.Context, ctl *Controller) error {
		return ctl.Mount(ctx, q)
	})
}

func (h *Handler) SelectSessionType(c *gin.Context) {
	var req SelectSessionTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "session_type_id is required")
		return
	}
	h.do(c, func(ctx context.Context, ctl *Controller) error {
		return ctl.SelectSessionType(ctx, req.SessionTypeID)
	})
}

func (h *Handler) ChoosePathway(c *gin.Context) {
	var req ChoosePathwayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "pathway is required")
		return
	}
	h.do(c, func(ctx context.Context, ctl *Controller) error {
		return ctl.ChoosePathway(ctx, req.Pathway)
	})
}

func (h *Handler) SetAnswers(c *gin.Context) {
	var req SetAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "answers are required")
		return
	}
	h.do(c, func(_ context.Context, ctl *Controller) error {
		return ctl.SetAnswers(req.Answers)
	})
}

// ListSlots handles GET /api/v1/flows/:id/slots?from=&to=&limit=
func (h *Handler) ListSlots(c *gin.Context) {
	from, err1 := parseTime(c.Query("from"))
	to, err2 := parseTime(c.Query("to"))
	limit, err3 := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err1 != nil || err2 != nil || err3 != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "from/to must be RFC3339 and limit a number")
		return
	}

	var slots []calendar.Slot
	view, err := h.service.Do(c.Request.Context(), c.Param("id"), middleware.Viewer(c), func(ctl *Controller) error {
		var err error
		slots, err = ctl.AvailableSlots(c.Request.Context(), from, to, limit)
		return err
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if slots == nil {
		slots = []calendar.Slot{}
	}
	response.Success(c, http.StatusOK, SlotsResponse{View: view, Slots: slots})
}

func (h *Handler) ScheduleSlot(c *gin.Context) {
	var req ScheduleSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid schedule request", validator.Fields(err))
		return
	}
	slot := calendar.Slot{Start: req.Start, End: req.End, Handle: req.Handle}
	invitee := calendar.Invitee{Name: req.Name, Email: req.Email, Answers: req.Answers}
	h.do(c, func(ctx context.Context, ctl *Controller) error {
		return ctl.ScheduleSlot(ctx, slot, invitee)
	})
}

// CalendarEvent handles POST /api/v1/flows/:id/calendar-event, the calendar
// widget's "event scheduled" callback.
func (h *Handler) CalendarEvent(c *gin.Context) {
	var req CalendarEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "event_uri and invitee_uri are required")
		return
	}
	h.do(c, func(ctx context.Context, ctl *Controller) error {
		return ctl.EventScheduled(ctx, req.EventURI, req.InviteeURI)
	})
}

func (h *Handler) Retry(c *gin.Context) {
	h.do(c, func(ctx context.Context, ctl *Controller) error { return ctl.Retry(ctx) })
}

func (h *Handler) RetryPayment(c *gin.Context) {
	h.do(c, func(ctx context.Context, ctl *Controller) error { return ctl.RetryPayment(ctx) })
}

// CheckPayment handles POST /api/v1/flows/:id/payment-status
func (h *Handler) CheckPayment(c *gin.Context) {
	h.do(c, func(ctx context.Context, ctl *Controller) error { return ctl.CheckPayment(ctx) })
}

func (h *Handler) Cancel(c *gin.Context) {
	h.do(c, func(ctx context.Context, ctl *Controller) error { return ctl.RequestCancellation(ctx) })
}

func (h *Handler) Reset(c *gin.Context) {
	h.do(c, func(_ context.Context, ctl *Controller) error {
		ctl.Reset()
		return nil
	})
}

// Events handles GET /api/v1/flows/:id/events (websocket upgrade).
func (h *Handler) Events(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.service.Get(c.Request.Context(), id, middleware.Viewer(c)); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.hub.Serve(c.Writer, c.Request, Topic(id)); err != nil {
		_ = c.Error(err)
	}
}

func (h *Handler) do(c *gin.Context, fn func(ctx context.Context, ctl *Controller) error) {
	ctx := c.Request.Context()
	view, err := h.service.Do(ctx, c.Param("id"), middleware.Viewer(c), func(ctl *Controller) error {
		return fn(ctx, ctl)
	})
	h.respond(c, http.StatusOK, view, err)
}

func (h *Handler) respond(c *gin.Context, status int, view *View, err error) {
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, status, view)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var signIn *SignInRequiredError
	switch {
	case errors.As(err, &signIn):
		response.ErrorWithDetails(c, http.StatusUnauthorized, "SIGN_IN_REQUIRED", "Sign in to book this session",
			gin.H{"redirect_url": signIn.RedirectURL})
	case errors.Is(err, ErrFlowNotFound):
		response.Error(c, http.StatusNotFound, "FLOW_NOT_FOUND", "Flow not found")
	case errors.Is(err, ErrUnknownSessionType):
		response.Error(c, http.StatusNotFound, "SESSION_TYPE_NOT_FOUND", "Session type not found")
	case errors.Is(err, ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrBusy):
		response.Error(c, http.StatusConflict, "FLOW_BUSY", "Another action is in progress")
	case errors.Is(err, ErrIdentityLoading):
		response.Error(c, http.StatusConflict, "IDENTITY_LOADING", "Identity is still loading")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPathwayNotSelecting):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", "Action not allowed in the current step")
	case errors.Is(err, ErrNotRetryable):
		response.Error(c, http.StatusConflict, "NOT_RETRYABLE", "This error cannot be retried; reset the flow")
	case errors.Is(err, ErrRecoveryMismatch):
		response.Error(c, http.StatusConflict, "RECOVERY_MISMATCH", "Return parameters belong to another booking; start a new flow")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process flow action")
	}
}
