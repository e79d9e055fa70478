package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tastingroom/waitlist-service/internal/models"
	"tastingroom/waitlist-service/internal/notify"
	"tastingroom/waitlist-service/internal/queue"
	"tastingroom/waitlist-service/internal/store"
)

type fakeQueue struct {
	joinFn    func(ctx context.Context, input queue.JoinInput) (models.QueueRecord, error)
	listFn    func(ctx context.Context, includeArchive bool) ([]models.QueueRecord, error)
	updateFn  func(ctx context.Context, input queue.UpdateInput) (models.QueueRecord, error)
	reorderFn func(ctx context.Context, orderedIDs []string) error
}

func (f fakeQueue) Join(ctx context.Context, input queue.JoinInput) (models.QueueRecord, error) {
	if f.joinFn == nil {
		return models.QueueRecord{}, nil
	}
	return f.joinFn(ctx, input)
}

func (f fakeQueue) List(ctx context.Context, includeArchive bool) ([]models.QueueRecord, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, includeArchive)
}

func (f fakeQueue) Update(ctx context.Context, input queue.UpdateInput) (models.QueueRecord, error) {
	if f.updateFn == nil {
		return models.QueueRecord{}, nil
	}
	return f.updateFn(ctx, input)
}

func (f fakeQueue) Reorder(ctx context.Context, orderedIDs []string) error {
	if f.reorderFn == nil {
		return nil
	}
	return f.reorderFn(ctx, orderedIDs)
}

type fakeNotify struct {
	dispatchFn func(ctx context.Context, input notify.Input) (models.QueueRecord, error)
}

func (f fakeNotify) Dispatch(ctx context.Context, input notify.Input) (models.QueueRecord, error) {
	if f.dispatchFn == nil {
		return models.QueueRecord{}, nil
	}
	return f.dispatchFn(ctx, input)
}

func postJSON(t *testing.T, handler http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestJoinSuccess(t *testing.T) {
	var captured queue.JoinInput
	h := NewHandler(fakeQueue{
		joinFn: func(ctx context.Context, input queue.JoinInput) (models.QueueRecord, error) {
			captured = input
			return models.QueueRecord{ID: "rec1", Status: models.StatusWaiting, SortOrder: 1}, nil
		},
	}, fakeNotify{})

	recorder := postJSON(t, h.Routes(), "/api/queue/join", map[string]interface{}{
		"guestName":   "Alex",
		"phoneNumber": "+1 555 123 0000",
		"partySize":   2,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", recorder.Code, recorder.Body.String())
	}
	if captured.GuestName != "Alex" || captured.PartySize != 2 {
		t.Fatalf("input = %+v", captured)
	}
	if captured.CheckInTime.IsZero() {
		t.Fatalf("check-in time not stamped")
	}

	var record models.QueueRecord
	if err := json.Unmarshal(recorder.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.ID != "rec1" || record.SortOrder != 1 {
		t.Fatalf("record = %+v", record)
	}
}

func TestJoinValidation(t *testing.T) {
	h := NewHandler(fakeQueue{}, fakeNotify{})
	cases := []struct {
		name    string
		payload map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"phoneNumber": "5551230000", "partySize": 2}},
		{"party size zero", map[string]interface{}{"guestName": "A", "phoneNumber": "5551230000", "partySize": 0}},
		{"party size oversized", map[string]interface{}{"guestName": "A", "phoneNumber": "5551230000", "partySize": 13}},
		{"bad phone", map[string]interface{}{"guestName": "A", "phoneNumber": "911", "partySize": 2}},
		{"bad preference", map[string]interface{}{"guestName": "A", "phoneNumber": "5551230000", "partySize": 2, "textCallPreference": "fax"}},
	}
	for _, tt := range cases {
		recorder := postJSON(t, h.Routes(), "/api/queue/join", tt.payload)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", tt.name, recorder.Code)
		}
		if code := errorCode(t, recorder); code != "invalid_request" {
			t.Fatalf("%s: code = %s", tt.name, code)
		}
	}
}

func TestJoinRejectsUnknownFields(t *testing.T) {
	h := NewHandler(fakeQueue{}, fakeNotify{})
	recorder := postJSON(t, h.Routes(), "/api/queue/join", map[string]interface{}{
		"guestName":   "Alex",
		"phoneNumber": "5551230000",
		"partySize":   2,
		"vip":         true,
	})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "invalid_json" {
		t.Fatalf("code = %s", code)
	}
}

func TestListArchiveFlag(t *testing.T) {
	var gotArchive bool
	h := NewHandler(fakeQueue{
		listFn: func(ctx context.Context, includeArchive bool) ([]models.QueueRecord, error) {
			gotArchive = includeArchive
			return nil, nil
		},
	}, fakeNotify{})

	req := httptest.NewRequest(http.MethodGet, "/api/queue/list?includeArchive=1", nil)
	recorder := httptest.NewRecorder()
	h.Routes().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if !gotArchive {
		t.Fatalf("includeArchive not passed through")
	}
	if recorder.Body.String() != "[]\n" {
		t.Fatalf("empty list body = %q, want []", recorder.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue/list?includeArchive=2", nil)
	recorder = httptest.NewRecorder()
	h.Routes().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad flag status = %d", recorder.Code)
	}
}

func TestUpdateInvalidTransitionConflict(t *testing.T) {
	h := NewHandler(fakeQueue{
		updateFn: func(ctx context.Context, input queue.UpdateInput) (models.QueueRecord, error) {
			return models.QueueRecord{}, queue.ErrInvalidTransition
		},
	}, fakeNotify{})

	recorder := postJSON(t, h.Routes(), "/api/queue/update", map[string]interface{}{
		"recordId": "rec1",
		"status":   "waiting",
	})
	if recorder.Code != http.StatusConflict {
		t.Fatalf("status = %d", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "invalid_transition" {
		t.Fatalf("code = %s", code)
	}
}

func TestUpdateRecordNotFound(t *testing.T) {
	h := NewHandler(fakeQueue{
		updateFn: func(ctx context.Context, input queue.UpdateInput) (models.QueueRecord, error) {
			return models.QueueRecord{}, store.ErrRecordNotFound
		},
	}, fakeNotify{})

	recorder := postJSON(t, h.Routes(), "/api/queue/update", map[string]interface{}{"recordId": "recX"})
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestUpdatePassesClaimThrough(t *testing.T) {
	var captured queue.UpdateInput
	h := NewHandler(fakeQueue{
		updateFn: func(ctx context.Context, input queue.UpdateInput) (models.QueueRecord, error) {
			captured = input
			return models.QueueRecord{ID: input.RecordID}, nil
		},
	}, fakeNotify{})

	recorder := postJSON(t, h.Routes(), "/api/queue/update", map[string]interface{}{
		"recordId":  "rec1",
		"claimedBy": "staff-3",
		"appendLog": "called twice, no answer",
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", recorder.Code, recorder.Body.String())
	}
	if captured.ClaimedBy != "staff-3" || captured.AppendLog != "called twice, no answer" {
		t.Fatalf("input = %+v", captured)
	}
	if captured.OccurredAt.IsZero() {
		t.Fatalf("occurredAt not stamped")
	}
}

func TestNotifySuccess(t *testing.T) {
	var captured notify.Input
	h := NewHandler(fakeQueue{}, fakeNotify{
		dispatchFn: func(ctx context.Context, input notify.Input) (models.QueueRecord, error) {
			captured = input
			return models.QueueRecord{ID: input.RecordID, Status: models.StatusNotified, AttemptCounter: input.AttemptCounter + 1}, nil
		},
	})

	recorder := postJSON(t, h.Routes(), "/api/queue/notify", map[string]interface{}{
		"recordId":       "rec1",
		"phoneNumber":    "5551230000",
		"guestName":      "Alex",
		"attemptCounter": 0,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", recorder.Code, recorder.Body.String())
	}
	if captured.RecordID != "rec1" || captured.AttemptCounter != 0 {
		t.Fatalf("input = %+v", captured)
	}

	var record models.QueueRecord
	if err := json.Unmarshal(recorder.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record.Status != models.StatusNotified || record.AttemptCounter != 1 {
		t.Fatalf("record = %+v", record)
	}
}

func TestNotifyBlankGuestNameRejected(t *testing.T) {
	dispatched := false
	h := NewHandler(fakeQueue{}, fakeNotify{
		dispatchFn: func(ctx context.Context, input notify.Input) (models.QueueRecord, error) {
			dispatched = true
			return models.QueueRecord{}, nil
		},
	})

	for _, name := range []string{"", "   "} {
		recorder := postJSON(t, h.Routes(), "/api/queue/notify", map[string]interface{}{
			"recordId":    "rec1",
			"phoneNumber": "5551230000",
			"guestName":   name,
		})
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("guestName %q: status = %d", name, recorder.Code)
		}
		if code := errorCode(t, recorder); code != "invalid_request" {
			t.Fatalf("guestName %q: code = %s", name, code)
		}
	}
	if dispatched {
		t.Fatalf("dispatch called with blank guest name")
	}
}

func TestNotifyProviderFailure(t *testing.T) {
	h := NewHandler(fakeQueue{}, fakeNotify{
		dispatchFn: func(ctx context.Context, input notify.Input) (models.QueueRecord, error) {
			return models.QueueRecord{}, notify.ErrSendFailed
		},
	})

	recorder := postJSON(t, h.Routes(), "/api/queue/notify", map[string]interface{}{
		"recordId":    "rec1",
		"phoneNumber": "5551230000",
		"guestName":   "Alex",
	})
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", recorder.Code)
	}
	if code := errorCode(t, recorder); code != "provider_error" {
		t.Fatalf("code = %s", code)
	}
}

func TestReorderPassesIDs(t *testing.T) {
	var captured []string
	h := NewHandler(fakeQueue{
		reorderFn: func(ctx context.Context, orderedIDs []string) error {
			captured = orderedIDs
			return nil
		},
	}, fakeNotify{})

	recorder := postJSON(t, h.Routes(), "/api/queue/reorder", map[string]interface{}{
		"orderedIds": []string{"recB", "recA"},
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d", recorder.Code)
	}
	if len(captured) != 2 || captured[0] != "recB" || captured[1] != "recA" {
		t.Fatalf("ids = %v", captured)
	}
}

func TestReorderEmptyRejected(t *testing.T) {
	h := NewHandler(fakeQueue{}, fakeNotify{})
	recorder := postJSON(t, h.Routes(), "/api/queue/reorder", map[string]interface{}{"orderedIds": []string{}})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", recorder.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	h := NewHandler(fakeQueue{}, fakeNotify{})
	protected := AuthMiddleware("secret-token", h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/queue/list", nil)
	recorder := httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue/list", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("bad credential status = %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue/list", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue/list", nil)
	req.Header.Set("X-Api-Key", "secret-token")
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("api key status = %d", recorder.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder = httptest.NewRecorder()
	protected.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", recorder.Code)
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	h := NewHandler(fakeQueue{}, fakeNotify{})
	limiter := NewRateLimiter(RateLimitConfig{IPPerMinute: 60, IPBurst: 2, ActorPerMinute: 600, ActorBurst: 120})
	limited := limiter.Middleware(h.Routes())

	blocked := false
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/queue/list", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		recorder := httptest.NewRecorder()
		limited.ServeHTTP(recorder, req)
		if recorder.Code == http.StatusTooManyRequests {
			blocked = true
		}
	}
	if !blocked {
		t.Fatalf("burst of 2 never rate limited the third request")
	}
}
