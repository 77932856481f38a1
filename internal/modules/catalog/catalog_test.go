package catalog

import (
	"fmt"
	"math/rand"
	"testing"

	"builderhub/internal/domain"

	"github.com/stretchr/testify/assert"
)

var categories = []domain.SessionCategory{
	domain.CategoryFree, domain.CategoryPathway, domain.CategorySpecialized,
	domain.CategoryOther, "", "workshop",
}

func randomSessions(r *rand.Rand, n int) []domain.SessionType {
	out := make([]domain.SessionType, n)
	for i := range out {
		out[i] = domain.SessionType{
			ID:           fmt.Sprintf("st-%d", i),
			Category:     categories[r.Intn(len(categories))],
			RequiresAuth: r.Intn(2) == 0,
		}
	}
	return out
}

func TestAvailableSessions_Cardinality(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		all := randomSessions(r, r.Intn(12))

		public := 0
		for _, s := range all {
			if !s.RequiresAuth {
				public++
			}
		}

		anon := AvailableSessions(all, false)
		assert.Len(t, anon, public)
		for _, s := range anon {
			assert.False(t, s.RequiresAuth)
		}

		assert.Equal(t, len(all), len(AvailableSessions(all, true)))
	}
}

func TestAvailableSessions_PreservesOrder(t *testing.T) {
	all := []domain.SessionType{
		{ID: "a"}, {ID: "b", RequiresAuth: true}, {ID: "c"},
	}
	got := AvailableSessions(all, false)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestGroupByCategory_Partition(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		in := randomSessions(r, r.Intn(15))
		g := GroupByCategory(in)
		assert.Equal(t, len(in), g.Len())

		seen := map[string]int{}
		for _, group := range [][]domain.SessionType{g.Free, g.Pathway, g.Specialized, g.Other} {
			for _, s := range group {
				seen[s.ID]++
			}
		}
		for _, s := range in {
			assert.Equal(t, 1, seen[s.ID], s.ID)
		}
	}
}

func TestGroupByCategory_EmptyAndUnknown(t *testing.T) {
	g := GroupByCategory(nil)
	assert.NotNil(t, g.Free)
	assert.NotNil(t, g.Other)
	assert.Zero(t, g.Len())

	g = GroupByCategory([]domain.SessionType{{ID: "x", Category: "workshop"}, {ID: "y"}})
	assert.Equal(t, []string{"x", "y"}, ids(g.Other))
}

func ids(in []domain.SessionType) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.ID)
	}
	return out
}
