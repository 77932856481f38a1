package catalog

import "builderhub/internal/domain"

type SaveSessionTypeRequest struct {
	Title           string                 `json:"title" binding:"required"`
	Description     string                 `json:"description"`
	DurationMinutes int                    `json:"duration_minutes" binding:"gte=0"`
	Price           float64                `json:"price" binding:"gte=0"`
	Currency        string                 `json:"currency"`
	Category        domain.SessionCategory `json:"category" binding:"omitempty,oneof=free pathway specialized other"`
	RequiresAuth    bool                   `json:"requires_auth"`
	CalendarRef     string                 `json:"calendar_ref"`
}

func (r SaveSessionTypeRequest) toDomain(id string) *domain.SessionType {
	return &domain.SessionType{
		ID:              id,
		Title:           r.Title,
		Description:     r.Description,
		DurationMinutes: r.DurationMinutes,
		Price:           r.Price,
		Currency:        r.Currency,
		Category:        r.Category,
		RequiresAuth:    r.RequiresAuth,
		CalendarRef:     r.CalendarRef,
	}
}
