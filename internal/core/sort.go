package core

import (
	"sort"

	"compartilar-backend-go/internal/models"
)

func sortOccurrences(occ []*models.EventOccurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if !occ[i].OccurrenceStart.Equal(occ[j].OccurrenceStart) {
			return occ[i].OccurrenceStart.Before(occ[j].OccurrenceStart)
		}
		return occ[i].ID < occ[j].ID
	})
}
