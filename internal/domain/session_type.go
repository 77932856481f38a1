package domain

type SessionCategory string

const (
	CategoryFree        SessionCategory = "free"
	CategoryPathway     SessionCategory = "pathway"
	CategorySpecialized SessionCategory = "specialized"
	CategoryOther       SessionCategory = "other"
)

// SessionType is an offerable service defined by a builder.
// CalendarRef is opaque outside the calendar integration.
type SessionType struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(64)"`
	BuilderID       string          `json:"builder_id" gorm:"index;type:varchar(64);not null"`
	Title           string          `json:"title" gorm:"not null"`
	Description     string          `json:"description,omitempty" gorm:"type:text"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           float64         `json:"price"`
	Currency        string          `json:"currency,omitempty" gorm:"type:varchar(8)"`
	Category        SessionCategory `json:"category" gorm:"type:varchar(32)"`
	RequiresAuth    bool            `json:"requires_auth"`
	CalendarRef     string          `json:"calendar_ref,omitempty" gorm:"type:text"`
}

func (SessionType) TableName() string { return "session_types" }

func (s SessionType) Priced() bool { return s.Price > 0 }
