package change

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain"
)

// Operation is the kind of row change.
type Operation string

const (
	// OpInsert is a row insert.
	OpInsert Operation = "INSERT"
	// OpUpdate is a row update.
	OpUpdate Operation = "UPDATE"
	// OpDelete is a row delete.
	OpDelete Operation = "DELETE"
)

// Event is one raw change notification. Transient: folded into a batch and discarded.
type Event struct {
	Operation   Operation
	SourceTable string
	Schema      string
	RecordID    string
	Timestamp   string
}

// Key identifies a notification for deduplication.
func (e Event) Key() string {
	return strings.Join([]string{string(e.Operation), e.SourceTable, e.Schema, e.RecordID, e.Timestamp}, "|")
}

// wire accepts both the canonical field names and the trigger-style aliases.
type wire struct {
	Operation   string          `json:"operation"`
	SourceTable string          `json:"source_table"`
	Table       string          `json:"table"`
	Schema      string          `json:"schema"`
	RecordID    json.RawMessage `json:"record_id"`
	ID          json.RawMessage `json:"id"`
	Timestamp   json.RawMessage `json:"timestamp"`
}

// Decode parses a JSON notification payload.
// Every failure wraps domain.ErrNotificationMalformed.
func Decode(payload []byte) (Event, error) {
	var w wire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %w", domain.ErrNotificationMalformed, err)
	}

	op := Operation(strings.ToUpper(strings.TrimSpace(w.Operation)))
	switch op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return Event{}, fmt.Errorf("unknown operation %q: %w", w.Operation, domain.ErrNotificationMalformed)
	}

	table := strings.TrimSpace(w.SourceTable)
	if table == "" {
		table = strings.TrimSpace(w.Table)
	}
	if table == "" {
		return Event{}, fmt.Errorf("source_table is required: %w", domain.ErrNotificationMalformed)
	}

	recordID := scalar(w.RecordID)
	if recordID == "" {
		recordID = scalar(w.ID)
	}

	schema := strings.TrimSpace(w.Schema)
	if schema == "" {
		schema = "public"
	}

	return Event{
		Operation:   op,
		SourceTable: table,
		Schema:      schema,
		RecordID:    recordID,
		Timestamp:   scalar(w.Timestamp),
	}, nil
}

// Encode renders the canonical payload, used by publishers and tests.
func (e Event) Encode() []byte {
	data, _ := json.Marshal(map[string]string{
		"operation":    string(e.Operation),
		"source_table": e.SourceTable,
		"schema":       e.Schema,
		"record_id":    e.RecordID,
		"timestamp":    e.Timestamp,
	})
	return data
}

// NewEvent builds an event stamped with the given time.
func NewEvent(op Operation, table, recordID string, at time.Time) Event {
	return Event{
		Operation:   op,
		SourceTable: table,
		Schema:      "public",
		RecordID:    recordID,
		Timestamp:   at.UTC().Format(time.RFC3339Nano),
	}
}

// Stamped fills a missing timestamp with at, so distinct deliveries of an
// untimestamped change keep distinct keys.
func (e Event) Stamped(at time.Time) Event {
	if e.Timestamp == "" {
		e.Timestamp = at.UTC().Format(time.RFC3339Nano)
	}
	return e
}

// scalar renders a JSON string or number as text; other kinds yield "".
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// GroupByTable splits events by source table, keeping first-seen table order.
func GroupByTable(events []Event) (tables []string, byTable map[string][]Event) {
	byTable = make(map[string][]Event)
	for _, e := range events {
		if _, ok := byTable[e.SourceTable]; !ok {
			tables = append(tables, e.SourceTable)
		}
		byTable[e.SourceTable] = append(byTable[e.SourceTable], e)
	}
	return tables, byTable
}
