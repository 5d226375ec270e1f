package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bedplanner/internal/database"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrInvalidVersion      = errors.New("invalid version number")
)

// Event is one entry of an aggregate's journal.
type Event struct {
	ID            int64                  `json:"id" db:"id"`
	AggregateID   string                 `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string                 `json:"aggregate_type" db:"aggregate_type"`
	EventType     string                 `json:"event_type" db:"event_type"`
	EventData     json.RawMessage        `json:"event_data" db:"event_data"`
	Metadata      map[string]interface{} `json:"metadata,omitempty" db:"-"`
	Version       int                    `json:"version" db:"version"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}

// Store appends to and reads from aggregate journals. A journal is keyed by
// aggregate type and id together, so a bed and a stay may share an id.
type Store interface {
	AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error
	LoadEvents(ctx context.Context, aggregateID, aggregateType string, fromVersion, toVersion int) ([]Event, error)
	GetCurrentVersion(ctx context.Context, aggregateID, aggregateType string) (int, error)
}

// EventStore is the Postgres journal. Appends are atomic and guarded by an
// optimistic version check.
type EventStore struct {
	db     *sqlx.DB
	tx     *sqlx.Tx
	tracer trace.Tracer
}

// NewEventStore creates an event store on the given pool.
func NewEventStore(db *sqlx.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("bedplanner/eventstore"),
	}
}

// WithTx returns a store whose appends join tx instead of opening their own.
func (es *EventStore) WithTx(tx *sqlx.Tx) *EventStore {
	return &EventStore{db: es.db, tx: tx, tracer: es.tracer}
}

// AppendEvents appends events after expectedVersion. A journal that has moved
// past expectedVersion yields ErrConcurrencyConflict.
func (es *EventStore) AppendEvents(ctx context.Context, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if expectedVersion < 0 {
		return ErrInvalidVersion
	}

	if es.tx != nil {
		return es.append(ctx, span, es.tx, aggregateID, aggregateType, expectedVersion, events)
	}

	tx, err := es.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := es.append(ctx, span, tx, aggregateID, aggregateType, expectedVersion, events); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (es *EventStore) append(ctx context.Context, span trace.Span, q sqlx.ExtContext, aggregateID, aggregateType string, expectedVersion int, events []Event) error {
	var currentVersion int
	err := sqlx.GetContext(ctx, q, &currentVersion, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, aggregateType, aggregateID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	for i, event := range events {
		version := expectedVersion + i + 1
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata of event %d: %w", i, err)
		}

		var eventID int64
		err = q.QueryRowxContext(ctx, `
			INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`,
			aggregateID,
			aggregateType,
			event.EventType,
			[]byte(event.EventData),
			metadataJSON,
			version,
			time.Now().UTC(),
		).Scan(&eventID)
		if err != nil {
			// A concurrent writer took this version first.
			if database.IsUniqueViolation(err) {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", eventID),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// LoadEvents returns the journal of an aggregate in version order. A zero
// toVersion means "up to the latest".
func (es *EventStore) LoadEvents(ctx context.Context, aggregateID, aggregateType string, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		AND version >= $3
	`
	args := []interface{}{aggregateType, aggregateID, fromVersion}
	if toVersion > 0 {
		query += " AND version <= $4"
		args = append(args, toVersion)
	}
	query += " ORDER BY version ASC"

	rows, err := es.queryer().QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var data, metadataJSON []byte
		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&data,
			&metadataJSON,
			&event.Version,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventData = json.RawMessage(data)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of event %d: %w", event.ID, err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// GetCurrentVersion returns the latest version of an aggregate, 0 if none.
func (es *EventStore) GetCurrentVersion(ctx context.Context, aggregateID, aggregateType string) (int, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.get_version",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.String("aggregate.type", aggregateType),
		),
	)
	defer span.End()

	var version int
	err := sqlx.GetContext(ctx, es.queryer(), &version, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_type = $1 AND aggregate_id = $2
	`, aggregateType, aggregateID)
	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}

func (es *EventStore) queryer() sqlx.QueryerContext {
	if es.tx != nil {
		return es.tx
	}
	return es.db
}
