package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/gigharvest/internal/domain"
	"github.com/jonesrussell/gigharvest/internal/logger"
)

// DefaultBulkTimeout bounds one bulk upsert request.
const DefaultBulkTimeout = 30 * time.Second

// Sink persists classified gigs. Failures are non-fatal to a run: the
// local snapshot retains the data for the next run.
type Sink interface {
	// Upsert writes gigs by stable id, returning insert/update counts.
	Upsert(ctx context.Context, gigs []domain.Gig) (inserted, updated int, err error)
}

// ESSink upserts gigs into Elasticsearch with one bulk request per batch.
type ESSink struct {
	client *es.Client
	index  string
	logger logger.Interface
}

// NewESSink creates an Elasticsearch-backed sink.
func NewESSink(client *es.Client, index string, log logger.Interface) *ESSink {
	return &ESSink{
		client: client,
		index:  index,
		logger: log.WithComponent("es-sink"),
	}
}

// bulkResponse is the subset of the bulk API response we consume.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Result string `json:"result"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Upsert bulk-indexes gigs by stable id and reports how many documents
// were created versus updated.
func (s *ESSink) Upsert(ctx context.Context, gigs []domain.Gig) (int, int, error) {
	if len(gigs) == 0 {
		return 0, 0, nil
	}
	if s.client == nil {
		return 0, 0, errors.New("elasticsearch client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultBulkTimeout)
	defer cancel()

	body, err := s.bulkBody(gigs)
	if err != nil {
		return 0, 0, err
	}

	res, err := s.client.Bulk(
		bytes.NewReader(body),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return 0, 0, fmt.Errorf("bulk upsert failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, 0, fmt.Errorf("bulk upsert error: %s", res.String())
	}

	var parsed bulkResponse
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return 0, 0, fmt.Errorf("failed to decode bulk response: %w", decodeErr)
	}

	inserted, updated := s.countResults(&parsed)
	s.logger.Debug("Bulk upsert complete",
		"index", s.index,
		"inserted", inserted,
		"updated", updated,
	)
	return inserted, updated, nil
}

// bulkBody builds the NDJSON payload: one index action per gig, keyed by
// stable id so re-ingesting the same content overwrites in place.
func (s *ESSink) bulkBody(gigs []domain.Gig) ([]byte, error) {
	var buf bytes.Buffer

	for i := range gigs {
		action := map[string]map[string]string{
			"index": {"_id": gigs[i].ID},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		docLine, err := json.Marshal(&gigs[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal gig %s: %w", gigs[i].ID, err)
		}

		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// countResults tallies created/updated items and logs per-item errors.
func (s *ESSink) countResults(parsed *bulkResponse) (int, int) {
	inserted, updated := 0, 0
	for _, item := range parsed.Items {
		for _, result := range item {
			switch result.Result {
			case "created":
				inserted++
			case "updated":
				updated++
			default:
				if result.Error != nil {
					s.logger.Warn("Bulk item failed",
						"type", result.Error.Type,
						"reason", result.Error.Reason,
						"status", result.Status,
					)
				}
			}
		}
	}
	return inserted, updated
}

// NoopSink discards writes. Used when no sink is configured, e.g. in
// single-shot CLI runs against a dry config.
type NoopSink struct{}

// Upsert reports every gig as inserted without persisting anything.
func (NoopSink) Upsert(_ context.Context, gigs []domain.Gig) (int, int, error) {
	return len(gigs), 0, nil
}
