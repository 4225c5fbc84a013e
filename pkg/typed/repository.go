// Package typed offers a type-safe view of alerts: the document fields are
// decoded into a caller-defined struct.
package typed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/aretw0/alertidx/pkg/core"
)

// Alert wraps a stored document with its fields decoded into T.
type Alert[T any] struct {
	GUID       string
	SensorType string
	Index      string
	Version    int64
	Timestamp  int64
	Data       T
	Saver      Saver[T]
}

// Saver persists typed alerts.
type Saver[T any] interface {
	Save(ctx context.Context, alert *Alert[T]) error
}

// Save persists the alert using the attached saver.
func (a *Alert[T]) Save(ctx context.Context) error {
	if a.Saver == nil {
		return fmt.Errorf("alert is detached (missing Saver)")
	}
	return a.Saver.Save(ctx, a)
}

// Backend is what the typed repository needs from the index access layer.
// *dao.Dao satisfies it.
type Backend interface {
	core.Retriever
	core.Searcher
	Update(ctx context.Context, doc core.Document, index string) (core.Document, error)
}

// Repository provides type-safe access to alerts of one shape.
type Repository[T any] struct {
	backend Backend
}

// NewRepository creates a typed wrapper around backend.
func NewRepository[T any](backend Backend) *Repository[T] {
	return &Repository[T]{backend: backend}
}

// Save writes the alert as a whole document. An alert without a GUID gets a
// fresh one. Version, Timestamp and Index are updated from the stored result.
func (r *Repository[T]) Save(ctx context.Context, alert *Alert[T]) error {
	fields, err := toFields(alert.Data)
	if err != nil {
		return err
	}
	if alert.GUID == "" {
		alert.GUID = uuid.NewString()
	}
	if alert.Saver == nil {
		alert.Saver = r
	}

	stored, err := r.backend.Update(ctx, core.Document{
		GUID:       alert.GUID,
		SensorType: alert.SensorType,
		Version:    alert.Version,
		Timestamp:  alert.Timestamp,
		Fields:     fields,
	}, alert.Index)
	if err != nil {
		return err
	}
	alert.Version = stored.Version
	alert.Timestamp = stored.Timestamp
	alert.Index = stored.Index
	return nil
}

// Get retrieves the latest version of one alert.
func (r *Repository[T]) Get(ctx context.Context, guid, sensorType string) (*Alert[T], error) {
	doc, err := r.backend.GetLatest(ctx, guid, sensorType)
	if err != nil {
		return nil, err
	}
	return fromCore(doc, r)
}

// GetAll retrieves several alerts. Alerts that do not exist are omitted.
func (r *Repository[T]) GetAll(ctx context.Context, requests []core.GetRequest) ([]*Alert[T], error) {
	results, err := r.backend.GetAllLatest(ctx, requests)
	if err != nil {
		return nil, err
	}
	out := make([]*Alert[T], 0, len(results))
	for _, res := range results {
		a, err := fromCore(res.Document, r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode alert %s: %w", res.Document.GUID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Find runs a search and decodes the returned page. With a projection only the
// projected fields are decoded.
func (r *Repository[T]) Find(ctx context.Context, req core.SearchRequest) ([]*Alert[T], int, error) {
	resp, err := r.backend.Search(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*Alert[T], 0, len(resp.Results))
	for _, res := range resp.Results {
		doc, err := core.FromWire(res.Source)
		if err != nil {
			return nil, 0, err
		}
		doc.GUID, doc.Index = res.ID, res.Index
		a, err := fromCore(doc, r)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode alert %s: %w", res.ID, err)
		}
		out = append(out, a)
	}
	return out, resp.Total, nil
}

// toFields converts T into document fields. Distinguished fields are owned by
// the Alert and dropped from the data.
func toFields(data any) (core.Fields, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}
	var payload map[string]any
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: typed data must encode as an object: %v", core.ErrInvalidRequest, err)
	}
	fields := core.NormalizeFields(payload)
	for _, k := range []string{core.GUIDField, core.SensorTypeField, core.VersionField, core.TimestampField} {
		delete(fields, k)
	}
	return fields, nil
}

func fromCore[T any](doc core.Document, saver Saver[T]) (*Alert[T], error) {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("fields marshal failed: %w", err)
	}
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal to target type failed: %w", err)
	}
	return &Alert[T]{
		GUID:       doc.GUID,
		SensorType: doc.SensorType,
		Index:      doc.Index,
		Version:    doc.Version,
		Timestamp:  doc.Timestamp,
		Data:       data,
		Saver:      saver,
	}, nil
}
