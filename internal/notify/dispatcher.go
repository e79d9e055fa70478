// Package notify formats the guest-facing ready message, hands it to the
// SMS provider, and records the dispatch on the queue record: notified
// status, timestamp, attempt counter, and one audit log line. There is no
// retry and no rate limit; every staff-initiated repeat sends again.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tastingroom/waitlist-service/internal/models"
	"tastingroom/waitlist-service/internal/phone"
	"tastingroom/waitlist-service/internal/store"
)

const DefaultTemplate = "Hi {name}, your tasting is ready! Please come to the tasting station."

// ErrSendFailed wraps provider failures so callers can tell them apart
// from record store errors.
var ErrSendFailed = errors.New("sms send failed")

type Dispatcher struct {
	store          store.RecordStore
	provider       Provider
	template       string
	from           string
	defaultCountry string
	logger         *zap.Logger
}

type Config struct {
	Template       string
	From           string
	DefaultCountry string
}

func NewDispatcher(recordStore store.RecordStore, provider Provider, cfg Config, logger *zap.Logger) *Dispatcher {
	template := cfg.Template
	if template == "" {
		template = DefaultTemplate
	}
	country := cfg.DefaultCountry
	if country == "" {
		country = "1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:          recordStore,
		provider:       provider,
		template:       template,
		from:           cfg.From,
		defaultCountry: country,
		logger:         logger,
	}
}

type Input struct {
	RecordID    string
	PhoneNumber string
	GuestName   string
	// AttemptCounter is the caller's observed value, carried for API
	// compatibility; the persisted increment always comes from the
	// stored record.
	AttemptCounter int
	SentAt         time.Time
}

// Dispatch sends the ready message and, only after the provider
// acknowledges success, marks the record notified. A failed send leaves
// status, counter, and log untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, input Input) (models.QueueRecord, error) {
	if input.RecordID == "" {
		return models.QueueRecord{}, fmt.Errorf("notify: record id is required")
	}
	to, err := phone.E164(input.PhoneNumber, d.defaultCountry)
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("notify: %w", err)
	}
	body := RenderMessage(d.template, input.GuestName)

	if err := d.provider.Send(ctx, to, d.from, body); err != nil {
		d.logger.Warn("sms send failed",
			zap.String("record_id", input.RecordID),
			zap.Error(err))
		return models.QueueRecord{}, fmt.Errorf("notify: %w: %v", ErrSendFailed, err)
	}

	record, err := d.store.Find(ctx, input.RecordID)
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("notify: %w", err)
	}

	logLine := fmt.Sprintf("NOTIFY -> SMS to %s: %s", to, body)
	entry := input.SentAt.UTC().Format(time.RFC3339) + " " + logLine
	log := record.CallTextLog
	if log == "" {
		log = entry
	} else {
		log = log + "\n" + entry
	}

	// The increment bases on the stored counter, not the caller's payload:
	// a stale polling client must never roll the counter backwards.
	updated, err := d.store.Update(ctx, []store.Patch{{
		ID: record.ID,
		Fields: store.Fields{
			store.FieldStatus:         models.StatusNotified,
			store.FieldLastNotifiedAt: input.SentAt,
			store.FieldAttemptCounter: record.AttemptCounter + 1,
			store.FieldCallTextLog:    log,
		},
	}})
	if err != nil {
		return models.QueueRecord{}, fmt.Errorf("notify: %w", err)
	}
	if len(updated) == 0 {
		return models.QueueRecord{}, fmt.Errorf("notify: %w", store.ErrRecordNotFound)
	}
	d.logger.Info("guest notified",
		zap.String("record_id", record.ID),
		zap.Int("attempt", record.AttemptCounter+1))
	return updated[0], nil
}

// RenderMessage substitutes {name} in the configured template.
func RenderMessage(template, guestName string) string {
	return strings.ReplaceAll(template, "{name}", strings.TrimSpace(guestName))
}
