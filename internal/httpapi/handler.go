package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tastingroom/waitlist-service/internal/models"
	"tastingroom/waitlist-service/internal/notify"
	"tastingroom/waitlist-service/internal/phone"
	"tastingroom/waitlist-service/internal/queue"
	"tastingroom/waitlist-service/internal/store"
)

type QueueService interface {
	Join(ctx context.Context, input queue.JoinInput) (models.QueueRecord, error)
	List(ctx context.Context, includeArchive bool) ([]models.QueueRecord, error)
	Update(ctx context.Context, input queue.UpdateInput) (models.QueueRecord, error)
	Reorder(ctx context.Context, orderedIDs []string) error
}

type NotifyService interface {
	Dispatch(ctx context.Context, input notify.Input) (models.QueueRecord, error)
}

type Handler struct {
	queue  QueueService
	notify NotifyService
}

func NewHandler(queueService QueueService, notifyService NotifyService) *Handler {
	return &Handler{queue: queueService, notify: notifyService}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/queue/join", h.handleJoin)
	mux.HandleFunc("/api/queue/list", h.handleList)
	mux.HandleFunc("/api/queue/update", h.handleUpdate)
	mux.HandleFunc("/api/queue/notify", h.handleNotify)
	mux.HandleFunc("/api/queue/reorder", h.handleReorder)
	return mux
}

type joinRequest struct {
	GuestName          string `json:"guestName"`
	PhoneNumber        string `json:"phoneNumber"`
	PartySize          int    `json:"partySize"`
	Notes              string `json:"notes,omitempty"`
	SpecialRequests    string `json:"specialRequests,omitempty"`
	TextCallPreference string `json:"textCallPreference,omitempty"`
}

type updateRequest struct {
	RecordID        string  `json:"recordId"`
	Status          string  `json:"status,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	ClaimedBy       string  `json:"claimedBy,omitempty"`
	Unclaim         bool    `json:"unclaim,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	SpecialRequests *string `json:"specialRequests,omitempty"`
	PriorityFlagVip *bool   `json:"priorityFlagVip,omitempty"`
	AppendLog       string  `json:"appendLog,omitempty"`
}

type notifyRequest struct {
	RecordID       string `json:"recordId"`
	PhoneNumber    string `json:"phoneNumber"`
	GuestName      string `json:"guestName"`
	AttemptCounter int    `json:"attemptCounter"`
}

type reorderRequest struct {
	OrderedIDs []string `json:"orderedIds"`
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	var req joinRequest
	if !decodeRequest(w, r, requestID, &req) {
		return
	}
	req.GuestName = strings.TrimSpace(req.GuestName)
	req.TextCallPreference = strings.TrimSpace(req.TextCallPreference)

	if req.GuestName == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "guestName is required")
		return
	}
	if req.PartySize < models.MinPartySize || req.PartySize > models.MaxPartySize {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "partySize must be between 1 and 12")
		return
	}
	if !phone.ValidDigits(phone.Digits(req.PhoneNumber)) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "phoneNumber must contain 10-15 digits")
		return
	}
	if req.TextCallPreference != "" && !models.ValidPreference(req.TextCallPreference) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "textCallPreference must be \"text\" or \"call\"")
		return
	}

	record, err := h.queue.Join(r.Context(), queue.JoinInput{
		GuestName:          req.GuestName,
		PhoneNumber:        req.PhoneNumber,
		PartySize:          req.PartySize,
		Notes:              req.Notes,
		SpecialRequests:    req.SpecialRequests,
		TextCallPreference: req.TextCallPreference,
		CheckInTime:        time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	includeArchive := false
	switch strings.TrimSpace(r.URL.Query().Get("includeArchive")) {
	case "", "0", "false":
	case "1", "true":
		includeArchive = true
	default:
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "includeArchive must be 0 or 1")
		return
	}

	records, err := h.queue.List(r.Context(), includeArchive)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	if records == nil {
		records = []models.QueueRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	var req updateRequest
	if !decodeRequest(w, r, requestID, &req) {
		return
	}
	req.RecordID = strings.TrimSpace(req.RecordID)
	req.Status = strings.TrimSpace(req.Status)
	req.ClaimedBy = strings.TrimSpace(req.ClaimedBy)
	if req.RecordID == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "recordId is required")
		return
	}

	record, err := h.queue.Update(r.Context(), queue.UpdateInput{
		RecordID:        req.RecordID,
		Status:          req.Status,
		Reason:          req.Reason,
		ClaimedBy:       req.ClaimedBy,
		Unclaim:         req.Unclaim,
		Notes:           req.Notes,
		SpecialRequests: req.SpecialRequests,
		PriorityFlagVIP: req.PriorityFlagVip,
		AppendLog:       req.AppendLog,
		OccurredAt:      time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	var req notifyRequest
	if !decodeRequest(w, r, requestID, &req) {
		return
	}
	req.RecordID = strings.TrimSpace(req.RecordID)
	if req.RecordID == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "recordId is required")
		return
	}
	req.GuestName = strings.TrimSpace(req.GuestName)
	if req.GuestName == "" {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "guestName is required")
		return
	}
	if !phone.ValidDigits(phone.Digits(req.PhoneNumber)) {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "phoneNumber must contain 10-15 digits")
		return
	}
	if req.AttemptCounter < 0 {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "attemptCounter must not be negative")
		return
	}

	record, err := h.notify.Dispatch(r.Context(), notify.Input{
		RecordID:       req.RecordID,
		PhoneNumber:    req.PhoneNumber,
		GuestName:      req.GuestName,
		AttemptCounter: req.AttemptCounter,
		SentAt:         time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	requestID := requestIDFromRequest(r)

	var req reorderRequest
	if !decodeRequest(w, r, requestID, &req) {
		return
	}
	if len(req.OrderedIDs) == 0 {
		writeError(w, requestID, http.StatusBadRequest, "invalid_request", "orderedIds is required")
		return
	}

	if err := h.queue.Reorder(r.Context(), req.OrderedIDs); err != nil {
		status, code, msg := mapError(err)
		writeError(w, requestID, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reordered": len(req.OrderedIDs)})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, requestID string, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, requestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, queue.ErrInvalidInput), errors.Is(err, phone.ErrInvalid):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, queue.ErrUnknownStatus):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, queue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", "record state does not allow this transition"
	case errors.Is(err, notify.ErrSendFailed):
		return http.StatusBadGateway, "provider_error", "sms provider send failed"
	case errors.Is(err, store.ErrRecordNotFound):
		return http.StatusNotFound, "record_not_found", "record not found"
	case errors.Is(err, store.ErrUpstream):
		return http.StatusBadGateway, "upstream_error", "record store request failed"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
