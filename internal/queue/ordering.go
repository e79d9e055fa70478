package queue

import (
	"tastingroom/waitlist-service/internal/models"
	"tastingroom/waitlist-service/internal/store"
)

// NextSortOrder returns the back-of-line position for a newly joining or
// re-added record: one past the current maximum among waiting records.
// Gaps from departed records are never reused.
func NextSortOrder(waiting []models.QueueRecord) int {
	max := 0
	for _, record := range waiting {
		if record.Status != models.StatusWaiting {
			continue
		}
		if record.SortOrder > max {
			max = record.SortOrder
		}
	}
	return max + 1
}

// reorderPatches assigns sortOrder = index+1 for each id in the supplied
// order. The full overwrite is intentional: no diff against the prior
// arrangement, no version check, last writer wins.
func reorderPatches(orderedIDs []string) []store.Patch {
	patches := make([]store.Patch, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		patches = append(patches, store.Patch{
			ID:     id,
			Fields: store.Fields{store.FieldSortOrder: i + 1},
		})
	}
	return patches
}
