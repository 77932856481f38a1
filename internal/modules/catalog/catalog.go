// Package catalog decides which session types a viewer may book and groups
// them for display.
package catalog

import "builderhub/internal/domain"

type Groups struct {
	Free        []domain.SessionType `json:"free"`
	Pathway     []domain.SessionType `json:"pathway"`
	Specialized []domain.SessionType `json:"specialized"`
	Other       []domain.SessionType `json:"other"`
}

func (g Groups) Len() int {
	return len(g.Free) + len(g.Pathway) + len(g.Specialized) + len(g.Other)
}

// AvailableSessions keeps sessions that do not require auth, or all of them
// for an authenticated viewer. Input order is preserved.
func AvailableSessions(all []domain.SessionType, isAuthenticated bool) []domain.SessionType {
	out := make([]domain.SessionType, 0, len(all))
	for _, s := range all {
		if isAuthenticated || !s.RequiresAuth {
			out = append(out, s)
		}
	}
	return out
}

// GroupByCategory partitions sessions by category. Unknown or empty
// categories land in Other.
func GroupByCategory(sessions []domain.SessionType) Groups {
	g := Groups{
		Free:        []domain.SessionType{},
		Pathway:     []domain.SessionType{},
		Specialized: []domain.SessionType{},
		Other:       []domain.SessionType{},
	}
	for _, s := range sessions {
		switch s.Category {
		case domain.CategoryFree:
			g.Free = append(g.Free, s)
		case domain.CategoryPathway:
			g.Pathway = append(g.Pathway, s)
		case domain.CategorySpecialized:
			g.Specialized = append(g.Specialized, s)
		default:
			g.Other = append(g.Other, s)
		}
	}
	return g
}
