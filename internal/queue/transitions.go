package queue

import "tastingroom/waitlist-service/internal/models"

// transitionMap lists the allowed target statuses per source status. A
// target absent here is rejected without mutating the record. Re-issuing
// the current status is handled separately as an idempotent rewrite.
//
// Any non-terminal status can be flagged error by staff, and an error
// record can be repaired back to waiting or taken out of the queue so
// it does not sit in the default listing forever.
var transitionMap = map[string][]string{
	models.StatusWaiting:   {models.StatusNotified, models.StatusInService, models.StatusSkipped, models.StatusNoShow, models.StatusRemoved, models.StatusError},
	models.StatusNotified:  {models.StatusInService, models.StatusWaiting, models.StatusSkipped, models.StatusNoShow, models.StatusRemoved, models.StatusError},
	models.StatusInService: {models.StatusServed, models.StatusSkipped, models.StatusNoShow, models.StatusRemoved, models.StatusError},
	models.StatusSkipped:   {models.StatusWaiting, models.StatusNoShow, models.StatusRemoved, models.StatusError},
	models.StatusNoShow:    {models.StatusWaiting, models.StatusRemoved, models.StatusError},
	models.StatusError:     {models.StatusWaiting, models.StatusRemoved},
	models.StatusServed:    {},
	models.StatusRemoved:   {},
}

func ValidTransition(from, to string) bool {
	allowed, ok := transitionMap[from]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == to {
			return true
		}
	}
	return false
}
