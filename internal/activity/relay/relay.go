// Package relay ships committed activity_outbox rows to Kafka. The outbox
// insert and the state mutation share a transaction, so the stream never
// sees an entry whose operation rolled back; delivery is at-least-once and
// consumers dedup on the entry ULID.
package relay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Relay drains the outbox table into a Kafka topic.
type Relay struct {
	db     *sql.DB
	client *kgo.Client
	topic  string
	logger *slog.Logger

	pollInterval time.Duration
	batchSize    int
}

// New connects to the brokers and ensures the topic exists.
func New(db *sql.DB, brokers []string, topic string, logger *slog.Logger) (*Relay, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 1, 1, nil, topic)
	if err == nil {
		err = resp.Err
	}
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", topic, err)
	}

	return &Relay{
		db:           db,
		client:       client,
		topic:        topic,
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}, nil
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// drainOnce publishes up to batchSize pending rows, deleting each row after
// its produce acks. A crash between produce and delete causes a duplicate,
// never a loss.
func (r *Relay) drainOnce(ctx context.Context) error {
	const query = `
		SELECT id, event_type, aggregate_id, payload
		FROM activity_outbox
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, r.batchSize)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id          string
		eventType   string
		aggregateID string
		payload     []byte
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.eventType, &p.aggregateID, &p.payload); err != nil {
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range batch {
		record := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(p.aggregateID),
			Value: p.payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(p.eventType)},
			},
		}
		if err := r.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce outbox entry %s: %w", p.id, err)
		}
		if _, err := r.db.ExecContext(ctx, `DELETE FROM activity_outbox WHERE id = $1`, p.id); err != nil {
			return fmt.Errorf("delete outbox entry %s: %w", p.id, err)
		}
	}
	return nil
}

// Close flushes and releases the Kafka client.
func (r *Relay) Close() {
	r.client.Close()
}
