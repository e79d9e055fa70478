// Package queue holds the waitlist core: the status state machine, the
// wait-line ordering rules, advisory claims, and the listing used by
// polling staff dashboards. All state lives in the external record store;
// the service itself is stateless per request.
package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tastingroom/waitlist-service/internal/models"
	"tastingroom/waitlist-service/internal/phone"
	"tastingroom/waitlist-service/internal/store"
)

type Service struct {
	store  store.RecordStore
	logger *zap.Logger
}

func NewService(recordStore store.RecordStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: recordStore, logger: logger}
}

type JoinInput struct {
	GuestName          string
	PhoneNumber        string
	PartySize          int
	Notes              string
	SpecialRequests    string
	TextCallPreference string
	CheckInTime        time.Time
}

// Join appends a new party to the back of the wait line. Not idempotent:
// duplicate submissions create duplicate records.
func (s *Service) Join(ctx context.Context, input JoinInput) (models.QueueRecord, error) {
	name := strings.TrimSpace(input.GuestName)
	if name == "" {
		return models.QueueRecord{}, fmt.Errorf("%w: guest name is required", ErrInvalidInput)
	}
	if input.PartySize < models.MinPartySize || input.PartySize > models.MaxPartySize {
		return models.QueueRecord{}, fmt.Errorf("%w: party size must be between %d and %d", ErrInvalidInput, models.MinPartySize, models.MaxPartySize)
	}
	digits := phone.Digits(input.PhoneNumber)
	if !phone.ValidDigits(digits) {
		return models.QueueRecord{}, fmt.Errorf("%w: phone number must be 10-15 digits", ErrInvalidInput)
	}
	preference := input.TextCallPreference
	if preference == "" {
		preference = models.PreferenceText
	}
	if !models.ValidPreference(preference) {
		return models.QueueRecord{}, fmt.Errorf("%w: preference must be %q or %q", ErrInvalidInput, models.PreferenceText, models.PreferenceCall)
	}

	waiting, err := s.store.Select(ctx, store.Query{Statuses: []string{models.StatusWaiting}})
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("join: read waiting set: %w", err)
	}

	fields := store.Fields{
		store.FieldGuestName:          name,
		store.FieldPhoneNumber:        digits,
		store.FieldPartySize:          input.PartySize,
		store.FieldStatus:             models.StatusWaiting,
		store.FieldSortOrder:          NextSortOrder(waiting),
		store.FieldCheckInTime:        input.CheckInTime,
		store.FieldAttemptCounter:     0,
		store.FieldTextCallPreference: preference,
	}
	if input.Notes != "" {
		fields[store.FieldNotes] = input.Notes
	}
	if input.SpecialRequests != "" {
		fields[store.FieldSpecialRequests] = input.SpecialRequests
	}

	record, err := s.store.Create(ctx, fields)
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("join: %w", err)
	}
	s.logger.Info("guest joined queue",
		zap.String("record_id", record.ID),
		zap.Int("party_size", record.PartySize),
		zap.Int("sort_order", record.SortOrder))
	return record, nil
}

type UpdateInput struct {
	RecordID        string
	Status          string
	Reason          string
	ClaimedBy       string
	Unclaim         bool
	Notes           *string
	SpecialRequests *string
	PriorityFlagVIP *bool
	AppendLog       string
	OccurredAt      time.Time
}

// Update applies a staff mutation: an optional status transition, an
// advisory claim or unclaim, metadata edits, and a free-text log line. An
// invalid transition rejects the whole request before any write.
func (s *Service) Update(ctx context.Context, input UpdateInput) (models.QueueRecord, error) {
	if input.RecordID == "" {
		return models.QueueRecord{}, fmt.Errorf("%w: record id is required", ErrInvalidInput)
	}
	if input.Unclaim && input.ClaimedBy != "" {
		return models.QueueRecord{}, fmt.Errorf("%w: claim and unclaim are mutually exclusive", ErrInvalidInput)
	}

	record, err := s.store.Find(ctx, input.RecordID)
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("update: %w", err)
	}

	fields := store.Fields{}
	var logLines []string

	if input.Status != "" {
		lines, err := s.applyStatus(ctx, record, input, fields)
		if err != nil {
			return models.QueueRecord{}, err
		}
		logLines = append(logLines, lines...)
	}

	// Claims are advisory and unconditional: any actor may overwrite any
	// prior claim, and both fields always move together.
	if input.ClaimedBy != "" {
		fields[store.FieldClaimedBy] = input.ClaimedBy
		fields[store.FieldClaimedAt] = input.OccurredAt
	}
	if input.Unclaim {
		fields[store.FieldClaimedBy] = nil
		fields[store.FieldClaimedAt] = nil
	}

	if input.Notes != nil {
		fields[store.FieldNotes] = *input.Notes
	}
	if input.SpecialRequests != nil {
		fields[store.FieldSpecialRequests] = *input.SpecialRequests
	}
	if input.PriorityFlagVIP != nil {
		fields[store.FieldPriorityFlagVIP] = *input.PriorityFlagVIP
	}
	if input.AppendLog != "" {
		logLines = append(logLines, input.AppendLog)
	}
	if len(logLines) > 0 {
		fields[store.FieldCallTextLog] = appendLog(record.CallTextLog, input.OccurredAt, logLines...)
	}
	if len(fields) == 0 {
		return record, nil
	}

	updated, err := s.store.Update(ctx, []store.Patch{{ID: record.ID, Fields: fields}})
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("update: %w", err)
	}
	if len(updated) == 0 {
		return models.QueueRecord{}, fmt.Errorf("update: %w", store.ErrRecordNotFound)
	}
	return updated[0], nil
}

// applyStatus stages the field writes for a status change. Re-issuing the
// current status is accepted as a no-op rewrite that only appends a log
// line; anything else must appear in the transition table.
func (s *Service) applyStatus(ctx context.Context, record models.QueueRecord, input UpdateInput, fields store.Fields) ([]string, error) {
	target := input.Status
	if !models.ValidStatus(target) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	line := "STATUS -> " + target
	if target == record.Status {
		fields[store.FieldStatus] = target
		return []string{line}, nil
	}
	if !ValidTransition(record.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, target)
	}

	fields[store.FieldStatus] = target
	switch target {
	case models.StatusServed:
		fields[store.FieldServedTime] = input.OccurredAt
	case models.StatusWaiting:
		// Re-adds go to the back of the line, never the original spot.
		waiting, err := s.store.Select(ctx, store.Query{Statuses: []string{models.StatusWaiting}})
		if err != nil {
			return nil, fmt.Errorf("update: read waiting set: %w", err)
		}
		fields[store.FieldReAddedToQueue] = true
		fields[store.FieldSortOrder] = NextSortOrder(waiting)
	case models.StatusSkipped:
		if input.Reason != "" {
			fields[store.FieldSkipReason] = input.Reason
			line += " (" + input.Reason + ")"
		}
	case models.StatusNoShow:
		if input.Reason != "" {
			fields[store.FieldNoShowReason] = input.Reason
			line += " (" + input.Reason + ")"
		}
	}
	return []string{line}, nil
}

// List returns the flat, ordered queue for polling clients: every record
// with a status, minus the archive lanes unless requested. Lane
// partitioning stays client side.
func (s *Service) List(ctx context.Context, includeArchive bool) ([]models.QueueRecord, error) {
	query := store.Query{
		RequireStatus: true,
		Sort: []store.SortKey{
			{Field: store.FieldSortOrder, Direction: "asc"},
			{Field: store.FieldCheckInTime, Direction: "asc"},
		},
	}
	if !includeArchive {
		query.ExcludeStatuses = []string{models.StatusServed, models.StatusRemoved}
	}
	records, err := s.store.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return records, nil
}

// Reorder overwrites the sort order of the supplied waiting set, one store
// batch at a time. A failed batch aborts the remainder; the mixed state is
// reconciled by the next successful reorder.
func (s *Service) Reorder(ctx context.Context, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return fmt.Errorf("%w: ordered ids are required", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(orderedIDs))
	for _, id := range orderedIDs {
		if id == "" {
			return fmt.Errorf("%w: empty record id", ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: duplicate record id %s", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	patches := reorderPatches(orderedIDs)
	for start := 0; start < len(patches); start += store.MaxBatchSize {
		end := start + store.MaxBatchSize
		if end > len(patches) {
			end = len(patches)
		}
		if _, err := s.store.Update(ctx, patches[start:end]); err != nil {
			return fmt.Errorf("reorder batch starting at %d: %w", start, err)
		}
	}
	s.logger.Info("queue reordered", zap.Int("records", len(orderedIDs)))
	return nil
}

// appendLog grows the call/text log by one timestamped line per entry.
// The existing text is never rewritten.
func appendLog(existing string, at time.Time, lines ...string) string {
	var b strings.Builder
	b.WriteString(existing)
	for _, line := range lines {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(at.UTC().Format(time.RFC3339))
		b.WriteString(" ")
		b.WriteString(line)
	}
	return b.String()
}
