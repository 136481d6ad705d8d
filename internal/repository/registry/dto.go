package registry

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// Hash field names. Counter fields are owned by ApplyOutcome and never written by Upsert.
const (
	fieldID           = "id"
	fieldName         = "name"
	fieldDescription  = "description"
	fieldType         = "type"
	fieldCapabilities = "capabilities"
	fieldTags         = "tags"
	fieldMetadata     = "metadata"
	fieldSourceTable  = "source_table"
	fieldSourceID     = "source_id"
	fieldActive       = "active"
	fieldStatus       = "status"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"

	fieldUsageCount    = "usage_count"
	fieldSuccessCount  = "success_count"
	fieldResponseTotal = "response_time_total_ms"
)

func toHash(r *resource.Resource) (map[string]string, error) {
	md, err := r.Metadata.Encode()
	if err != nil {
		return nil, err
	}
	caps, _ := json.Marshal(nonNil(r.Capabilities))
	tags, _ := json.Marshal(nonNil(r.Tags))
	return map[string]string{
		fieldID:           r.ID,
		fieldName:         r.Name,
		fieldDescription:  r.Description,
		fieldType:         string(r.Type),
		fieldCapabilities: string(caps),
		fieldTags:         string(tags),
		fieldMetadata:     md,
		fieldSourceTable:  r.SourceTable,
		fieldSourceID:     r.SourceID,
		fieldActive:       boolFlag(r.Active),
		fieldStatus:       string(r.Status),
		fieldCreatedAt:    formatTime(r.CreatedAt),
		fieldUpdatedAt:    formatTime(r.UpdatedAt),
	}, nil
}

func fromHash(m map[string]string) (resource.Resource, error) {
	md, err := resource.DecodeMetadata(m[fieldMetadata])
	if err != nil {
		return resource.Resource{}, err
	}
	caps, err := decodeList(m[fieldCapabilities])
	if err != nil {
		return resource.Resource{}, err
	}
	tags, err := decodeList(m[fieldTags])
	if err != nil {
		return resource.Resource{}, err
	}

	return resource.Resource{
		ID:           m[fieldID],
		Name:         m[fieldName],
		Description:  m[fieldDescription],
		Type:         resource.Type(m[fieldType]),
		Capabilities: caps,
		Tags:         tags,
		Metadata:     md,
		SourceTable:  m[fieldSourceTable],
		SourceID:     m[fieldSourceID],
		Active:       m[fieldActive] == "1",
		Status:       resource.Status(m[fieldStatus]),
		Stats:        statsFromHash(m),
		CreatedAt:    parseTime(m[fieldCreatedAt]),
		UpdatedAt:    parseTime(m[fieldUpdatedAt]),
	}, nil
}

// statsFromHash derives the rolling statistics from the raw counters.
func statsFromHash(m map[string]string) resource.Stats {
	usage := parseInt(m[fieldUsageCount])
	if usage <= 0 {
		return resource.Stats{}
	}
	return resource.Stats{
		UsageCount:        usage,
		SuccessRate:       float64(parseInt(m[fieldSuccessCount])) / float64(usage),
		AvgResponseTimeMs: float64(parseInt(m[fieldResponseTotal])) / float64(usage),
	}
}

func decodeList(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseTime(s string) time.Time {
	ms := parseInt(s)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
