package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertDomainEventSQL = `
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, topic, aggregate_id, payload, occurred_at
`

// PGStore persists domain events to Postgres.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent stores one event row and returns it.
func (s PGStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID pgtype.UUID, payload []byte) (Event, error) {
	if s.Pool == nil {
		return Event{}, errors.New("events: pool not configured")
	}
	var ev Event
	err := s.Pool.QueryRow(ctx, insertDomainEventSQL, topic, aggregateID, payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}
