package payment

import (
	"errors"
	"io"
	"net/http"

	"builderhub/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/payments/status", h.GetStatus)
	rg.POST("/payments/stripe/webhook", h.StripeWebhook)
}

// RegisterAdminRoutes expects the group to enforce the reconcile permission.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/:sessionId/reconcile", h.Reconcile)
}

// GetStatus handles GET /api/v1/payments/status?session_id=
func (h *Handler) GetStatus(c *gin.Context) {
	h.status(c, c.Query("session_id"))
}

// Reconcile handles POST /api/v1/admin/payments/:sessionId/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	h.status(c, c.Param("sessionId"))
}

func (h *Handler) status(c *gin.Context, sessionID string) {
	status, bookingID, err := h.service.PaymentStatus(c.Request.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Checkout session not found")
		case errors.Is(err, ErrBookingMismatch):
			response.Error(c, http.StatusConflict, "BOOKING_MISMATCH", "Checkout session belongs to another booking")
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusBadGateway, "PAYMENT_UNAVAILABLE", "Payment provider is unavailable")
		}
		return
	}
	response.Success(c, http.StatusOK, StatusResponse{SessionID: sessionID, BookingID: bookingID, Status: status})
}

// StripeWebhook handles POST /api/v1/payments/stripe/webhook
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unreadable body")
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			response.Error(c, http.StatusBadRequest, "INVALID_SIGNATURE", "Invalid webhook signature")
			return
		}
		h.log.Error("webhook handling failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process webhook")
		return
	}
	c.JSON(http.StatusOK, WebhookResponse{Received: true})
}
