package store

import (
	"context"
	_ "embed"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/flowmetric/ingest-gateway/internal/models"
)

// eventsDDL is embedded so the service can self-bootstrap the events table.
//
//go:embed events.sql
var eventsDDL string

// storeTimeLayout matches the normalized text form stamped by the pipeline.
const storeTimeLayout = "2006-01-02 15:04:05.000"

// ClickHouseStore is the analytics sink. It only inserts; the query side
// belongs to the dashboard service.
type ClickHouseStore struct {
	conn driver.Conn
}

// NewClickHouseStore opens a native-protocol connection and fails fast if
// the server is unreachable.
func NewClickHouseStore(dsn string) (*ClickHouseStore, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &ClickHouseStore{conn: conn}, nil
}

// EnsureSchema applies the events table DDL. Safe to run multiple times.
func (c *ClickHouseStore) EnsureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.conn.Exec(ctx, eventsDDL)
}

// Ping is used by the health endpoint.
func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close shuts down the connection.
func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}

// InsertEvents writes one batch of enriched events. Duplicate event IDs are
// accepted; the table deduplicates nothing and the dashboard aggregates with
// that in mind.
func (c *ClickHouseStore) InsertEvents(ctx context.Context, events []models.EnrichedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return err
	}

	for _, ev := range events {
		ts, err := time.Parse(storeTimeLayout, ev.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}
		ingested, err := time.Parse(storeTimeLayout, ev.IngestedAt)
		if err != nil {
			ingested = time.Now().UTC()
		}

		if err := batch.Append(
			ev.EventID,
			ev.EventType,
			ev.TraceID,
			ev.SessionID,
			ts,
			ev.Source,
			ev.EventName,
			ev.WorkspaceID,
			ev.ProjectID,
			ingested,
			ev.Metadata,
			ev.LatencyMS,
			ev.Status,
			ev.ErrorType,
			ev.ErrorMessage,
			ev.ConversionValue,
			ev.ConversionCurrency,
			ev.UserID,
			ev.UserTraits,
			ev.ToolName,
			ev.ToolInput,
			ev.Intent,
		); err != nil {
			return err
		}
	}

	return batch.Send()
}
