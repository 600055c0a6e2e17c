package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/enrollment-service/internal/domain"
	"github.com/spec-kit/enrollment-service/internal/events"
	"github.com/spec-kit/enrollment-service/internal/repository"
	apperrors "github.com/spec-kit/enrollment-service/pkg/util"
)

// csvColumns is the canonical datadump header.
var csvColumns = []string{"id", "subject", "description", "status", "priority", "requester_email", "created_at", "updated_at", "tags"}

// IngestService normalizes heterogeneous ticket datadumps (JSON or CSV) into
// the ticket store. Records are upserted independently: a bad record skips,
// the batch continues, and re-ingesting the same file is idempotent.
type IngestService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	maxBytes   int64
	now        func() time.Time
}

// NewIngestService constructs the pipeline.
func NewIngestService(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger, maxBytes int64) *IngestService {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &IngestService{
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
		maxBytes:   maxBytes,
		now:        time.Now,
	}
}

// RecordError reports a per-record ingestion problem. Warning entries were
// imported anyway (e.g. an unknown status value); non-warning entries were
// skipped.
type RecordError struct {
	Index   int    `json:"record_index"`
	Reason  string `json:"reason"`
	Warning bool   `json:"warning,omitempty"`
}

// IngestResult summarizes one ingestion call.
type IngestResult struct {
	Imported int
	Skipped  int
	Errors   []RecordError
}

// datadumpRecord is the wire shape of one exported ticket. row carries the
// record's position in the upload so error indices stay aligned even when an
// earlier row was dropped at parse time.
type datadumpRecord struct {
	row int

	ID             flexString `json:"id"`
	Subject        string     `json:"subject"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	RequesterEmail string     `json:"requester_email"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
	Tags           []string   `json:"tags"`
}

// flexString tolerates numeric ids in JSON exports.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// Ingest parses the uploaded datadump and upserts each valid record. The
// size ceiling is enforced before any parsing; an unrecognized extension
// fails the whole request.
func (s *IngestService) Ingest(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	if int64(len(data)) > s.maxBytes {
		return nil, apperrors.NewPayloadTooLarge(s.maxBytes)
	}

	var (
		records []datadumpRecord
		result  = &IngestResult{}
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		records, err = parseJSONDatadump(data)
	case ".csv":
		records, err = parseCSVDatadump(data, result)
	default:
		return nil, apperrors.NewUnsupportedFormat("unsupported file format; upload .json or .csv")
	}
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if ctx.Err() != nil {
			// Caller abandoned the request; records upserted so far stay.
			break
		}
		s.processRecord(ctx, record, result)
	}

	s.logger.Info("datadump ingested",
		zap.String("filename", filename),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)))

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventDatadumpImported,
			Timestamp: s.now(),
			Payload: events.DatadumpImportedPayload{
				Filename:      filename,
				ImportedCount: result.Imported,
				SkippedCount:  result.Skipped,
			},
		})
	}
	return result, nil
}

func (s *IngestService) processRecord(ctx context.Context, record datadumpRecord, result *IngestResult) {
	idx := record.row
	id := strings.TrimSpace(string(record.ID))
	subject := strings.TrimSpace(record.Subject)
	if id == "" || subject == "" {
		result.Skipped++
		result.Errors = append(result.Errors, RecordError{Index: idx, Reason: "id and subject are required"})
		return
	}

	status := domain.TicketStatusOpen
	if record.Status != "" {
		normalized, known := domain.NormalizeStatus(record.Status)
		status = normalized
		if !known {
			result.Errors = append(result.Errors, RecordError{
				Index:   idx,
				Reason:  fmt.Sprintf("unknown status %q", record.Status),
				Warning: true,
			})
		}
	}
	priority := domain.TicketPriorityNormal
	if record.Priority != "" {
		normalized, known := domain.NormalizePriority(record.Priority)
		priority = normalized
		if !known {
			result.Errors = append(result.Errors, RecordError{
				Index:   idx,
				Reason:  fmt.Sprintf("unknown priority %q", record.Priority),
				Warning: true,
			})
		}
	}

	now := s.now()
	createdAt, err := parseTimestamp(record.CreatedAt, now)
	if err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, RecordError{Index: idx, Reason: fmt.Sprintf("unparseable created_at: %v", err)})
		return
	}
	updatedAt, err := parseTimestamp(record.UpdatedAt, createdAt)
	if err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, RecordError{Index: idx, Reason: fmt.Sprintf("unparseable updated_at: %v", err)})
		return
	}

	ticket := &domain.Ticket{
		ID:             id,
		Subject:        subject,
		Description:    record.Description,
		Priority:       priority,
		Status:         status,
		RequesterEmail: strings.TrimSpace(record.RequesterEmail),
		Tags:           dedupeTags(record.Tags),
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if err := s.tickets.Upsert(ctx, ticket); err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, RecordError{Index: idx, Reason: fmt.Sprintf("store write failed: %v", err)})
		return
	}
	result.Imported++
}

func parseJSONDatadump(data []byte) ([]datadumpRecord, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var records []datadumpRecord
	if err := json.Unmarshal(data, &records); err == nil {
		for i := range records {
			records[i].row = i
		}
		return records, nil
	}
	// A single ticket object is accepted as a one-record dump.
	var single datadumpRecord
	if err := decoder.Decode(&single); err != nil {
		return nil, apperrors.NewValidationError("invalid JSON payload: expected an array of ticket records", nil)
	}
	return []datadumpRecord{single}, nil
}

func parseCSVDatadump(data []byte, result *IngestResult) ([]datadumpRecord, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid CSV payload: missing header row", nil)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "subject"} {
		if _, ok := columns[required]; !ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("invalid CSV header: missing %q column (expected %s)", required, strings.Join(csvColumns, ",")), nil)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var records []datadumpRecord
	for idx := 0; ; idx++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, RecordError{Index: idx, Reason: fmt.Sprintf("malformed CSV row: %v", err)})
			continue
		}
		records = append(records, datadumpRecord{
			row:            idx,
			ID:             flexString(cell(row, "id")),
			Subject:        cell(row, "subject"),
			Description:    cell(row, "description"),
			Status:         cell(row, "status"),
			Priority:       cell(row, "priority"),
			RequesterEmail: cell(row, "requester_email"),
			CreatedAt:      cell(row, "created_at"),
			UpdatedAt:      cell(row, "updated_at"),
			Tags:           splitTags(cell(row, "tags")),
		})
	}
	return records, nil
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp parses ISO-8601; an absent value defaults to fallback.
func parseTimestamp(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not ISO-8601", raw)
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
