// Package airtable adapts the queue's typed record operations onto an
// Airtable-style record table API: single-record create and find, batched
// partial updates, and filtered selects with server-side sorting.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tastingroom/waitlist-service/internal/models"
	"tastingroom/waitlist-service/internal/store"
)

const DefaultBaseURL = "https://api.airtable.com/v0"

// columnByField maps canonical field keys to the table's column names.
// Column names are an upstream contract; changing one here without changing
// the base breaks every operation.
var columnByField = map[string]string{
	store.FieldGuestName:          "Name",
	store.FieldPhoneNumber:        "Phone Number",
	store.FieldPartySize:          "Party Size",
	store.FieldStatus:             "Status",
	store.FieldSortOrder:          "Sort Order",
	store.FieldCheckInTime:        "Check In Time",
	store.FieldServedTime:         "Served Time",
	store.FieldLastNotifiedAt:     "Last Notified At",
	store.FieldClaimedAt:          "Claimed At",
	store.FieldClaimedBy:          "Claimed By",
	store.FieldAttemptCounter:     "Attempt Counter",
	store.FieldCallTextLog:        "Call/Text Log",
	store.FieldPriorityFlagVIP:    "VIP",
	store.FieldReAddedToQueue:     "Re-Added To Queue",
	store.FieldSkipReason:         "Skip Reason",
	store.FieldNoShowReason:       "No Show Reason",
	store.FieldNotes:              "Notes",
	store.FieldSpecialRequests:    "Special Requests",
	store.FieldTextCallPreference: "Text or Call",
}

type Config struct {
	BaseURL string
	APIKey  string
	BaseID  string
	Table   string
	Timeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
	table      string
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		table:      cfg.Table,
	}
}

type apiRecord struct {
	ID          string                 `json:"id"`
	CreatedTime string                 `json:"createdTime,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

type recordsPayload struct {
	Records []apiRecord `json:"records"`
	Offset  string      `json:"offset,omitempty"`
}

func (c *Client) Create(ctx context.Context, fields store.Fields) (models.QueueRecord, error) {
	body := map[string]interface{}{"fields": encodeFields(fields)}
	var out apiRecord
	if err := c.do(ctx, http.MethodPost, c.tableURL(), nil, body, &out); err != nil {
		return models.QueueRecord{}, err
	}
	return decodeRecord(out), nil
}

func (c *Client) Find(ctx context.Context, id string) (models.QueueRecord, error) {
	var out apiRecord
	if err := c.do(ctx, http.MethodGet, c.tableURL()+"/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return models.QueueRecord{}, err
	}
	return decodeRecord(out), nil
}

func (c *Client) Update(ctx context.Context, patches []store.Patch) ([]models.QueueRecord, error) {
	if len(patches) == 0 {
		return nil, nil
	}
	if len(patches) > store.MaxBatchSize {
		return nil, fmt.Errorf("%w: %d records", store.ErrBatchTooLarge, len(patches))
	}
	records := make([]apiRecord, 0, len(patches))
	for _, patch := range patches {
		records = append(records, apiRecord{ID: patch.ID, Fields: encodeFields(patch.Fields)})
	}
	body := map[string]interface{}{"records": records}
	var out recordsPayload
	if err := c.do(ctx, http.MethodPatch, c.tableURL(), nil, body, &out); err != nil {
		return nil, err
	}
	updated := make([]models.QueueRecord, 0, len(out.Records))
	for _, record := range out.Records {
		updated = append(updated, decodeRecord(record))
	}
	return updated, nil
}

func (c *Client) Select(ctx context.Context, query store.Query) ([]models.QueueRecord, error) {
	params := url.Values{}
	if formula := buildFormula(query); formula != "" {
		params.Set("filterByFormula", formula)
	}
	for i, key := range query.Sort {
		column, ok := columnByField[key.Field]
		if !ok {
			return nil, fmt.Errorf("select: unknown sort field %q", key.Field)
		}
		params.Set(fmt.Sprintf("sort[%d][field]", i), column)
		params.Set(fmt.Sprintf("sort[%d][direction]", i), key.Direction)
	}

	var results []models.QueueRecord
	offset := ""
	for {
		page := url.Values{}
		for k, v := range params {
			page[k] = v
		}
		if offset != "" {
			page.Set("offset", offset)
		}
		var out recordsPayload
		if err := c.do(ctx, http.MethodGet, c.tableURL(), page, nil, &out); err != nil {
			return nil, err
		}
		for _, record := range out.Records {
			results = append(results, decodeRecord(record))
		}
		if out.Offset == "" {
			return results, nil
		}
		offset = out.Offset
	}
}

func (c *Client) tableURL() string {
	return c.baseURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(c.table)
}

func (c *Client) do(ctx context.Context, method, rawURL string, params url.Values, body, out interface{}) error {
	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrRecordNotFound
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", store.ErrUpstream, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", store.ErrUpstream, err)
	}
	return nil
}

// buildFormula translates a Query into the store's filter formula language.
func buildFormula(query store.Query) string {
	statusColumn := columnByField[store.FieldStatus]
	var clauses []string
	if query.RequireStatus {
		clauses = append(clauses, fmt.Sprintf("{%s} != ''", statusColumn))
	}
	for _, status := range query.ExcludeStatuses {
		clauses = append(clauses, fmt.Sprintf("{%s} != '%s'", statusColumn, escapeValue(status)))
	}
	if len(query.Statuses) == 1 {
		clauses = append(clauses, fmt.Sprintf("{%s} = '%s'", statusColumn, escapeValue(query.Statuses[0])))
	} else if len(query.Statuses) > 1 {
		var alts []string
		for _, status := range query.Statuses {
			alts = append(alts, fmt.Sprintf("{%s} = '%s'", statusColumn, escapeValue(status)))
		}
		clauses = append(clauses, "OR("+strings.Join(alts, ", ")+")")
	}
	if len(clauses) == 0 {
		return ""
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return "AND(" + strings.Join(clauses, ", ") + ")"
}

func escapeValue(value string) string {
	return strings.ReplaceAll(value, "'", "\\'")
}

func encodeFields(fields store.Fields) map[string]interface{} {
	encoded := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		column, ok := columnByField[key]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case time.Time:
			encoded[column] = v.UTC().Format(time.RFC3339)
		case *time.Time:
			if v == nil {
				encoded[column] = nil
			} else {
				encoded[column] = v.UTC().Format(time.RFC3339)
			}
		default:
			encoded[column] = value
		}
	}
	return encoded
}

func decodeRecord(record apiRecord) models.QueueRecord {
	fields := record.Fields
	decoded := models.QueueRecord{
		ID:                 record.ID,
		GuestName:          stringField(fields, store.FieldGuestName),
		PhoneNumber:        stringField(fields, store.FieldPhoneNumber),
		PartySize:          intField(fields, store.FieldPartySize),
		Status:             stringField(fields, store.FieldStatus),
		SortOrder:          intField(fields, store.FieldSortOrder),
		ClaimedBy:          stringField(fields, store.FieldClaimedBy),
		AttemptCounter:     intField(fields, store.FieldAttemptCounter),
		CallTextLog:        stringField(fields, store.FieldCallTextLog),
		PriorityFlagVIP:    boolField(fields, store.FieldPriorityFlagVIP),
		ReAddedToQueue:     boolField(fields, store.FieldReAddedToQueue),
		SkipReason:         stringField(fields, store.FieldSkipReason),
		NoShowReason:       stringField(fields, store.FieldNoShowReason),
		Notes:              stringField(fields, store.FieldNotes),
		SpecialRequests:    stringField(fields, store.FieldSpecialRequests),
		TextCallPreference: stringField(fields, store.FieldTextCallPreference),
	}
	if decoded.Status != "" && !models.ValidStatus(decoded.Status) {
		// A value outside the enum means the row was touched by something
		// other than this service; surface it rather than guessing.
		decoded.Status = models.StatusError
	}
	if at, ok := timeField(fields, store.FieldCheckInTime); ok {
		decoded.CheckInTime = at
	} else if record.CreatedTime != "" {
		if created, err := time.Parse(time.RFC3339, record.CreatedTime); err == nil {
			decoded.CheckInTime = created
		}
	}
	if at, ok := timeField(fields, store.FieldServedTime); ok {
		decoded.ServedTime = &at
	}
	if at, ok := timeField(fields, store.FieldLastNotifiedAt); ok {
		decoded.LastNotifiedAt = &at
	}
	if at, ok := timeField(fields, store.FieldClaimedAt); ok {
		decoded.ClaimedAt = &at
	}
	return decoded
}

func stringField(fields map[string]interface{}, key string) string {
	value, ok := fields[columnByField[key]].(string)
	if !ok {
		return ""
	}
	return value
}

func intField(fields map[string]interface{}, key string) int {
	switch v := fields[columnByField[key]].(type) {
	case float64:
		return int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func boolField(fields map[string]interface{}, key string) bool {
	value, ok := fields[columnByField[key]].(bool)
	return ok && value
}

func timeField(fields map[string]interface{}, key string) (time.Time, bool) {
	raw, ok := fields[columnByField[key]].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
