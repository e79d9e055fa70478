package store

import (
	"context"

	"tastingroom/waitlist-service/internal/models"
)

// Canonical field keys used in create payloads and patches. The record store
// adapter owns the mapping from these keys to the external table's column
// names and all type coercion in both directions.
const (
	FieldGuestName          = "guestName"
	FieldPhoneNumber        = "phoneNumber"
	FieldPartySize          = "partySize"
	FieldStatus             = "status"
	FieldSortOrder          = "sortOrder"
	FieldCheckInTime        = "checkInTimestamp"
	FieldServedTime         = "servedTimestamp"
	FieldLastNotifiedAt     = "lastNotifiedAt"
	FieldClaimedAt          = "claimedAt"
	FieldClaimedBy          = "claimedBy"
	FieldAttemptCounter     = "attemptCounter"
	FieldCallTextLog        = "callTextLog"
	FieldPriorityFlagVIP    = "priorityFlagVip"
	FieldReAddedToQueue     = "reAddedToQueue"
	FieldSkipReason         = "skipReason"
	FieldNoShowReason       = "noShowReason"
	FieldNotes              = "notes"
	FieldSpecialRequests    = "specialRequests"
	FieldTextCallPreference = "textCallPreference"
)

// MaxBatchSize is the record store's per-call update limit. Callers chunk
// larger mutations into sequential Update calls.
const MaxBatchSize = 10

type Fields map[string]interface{}

// Patch is a partial update of one record. A nil field value writes an
// explicit null, clearing the column.
type Patch struct {
	ID     string
	Fields Fields
}

type SortKey struct {
	Field     string
	Direction string // "asc" or "desc"
}

// Query selects records by status. The adapter translates it into the
// store's filter formula; field names never leave the adapter.
type Query struct {
	Statuses        []string
	ExcludeStatuses []string
	RequireStatus   bool
	Sort            []SortKey
}

type RecordStore interface {
	Create(ctx context.Context, fields Fields) (models.QueueRecord, error)
	Find(ctx context.Context, id string) (models.QueueRecord, error)
	Update(ctx context.Context, patches []Patch) ([]models.QueueRecord, error)
	Select(ctx context.Context, query Query) ([]models.QueueRecord, error)
}
