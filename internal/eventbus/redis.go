// Package eventbus fans committed ledger events out to a Redis stream.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/genomechain/genome-ledger/internal/chain"
)

// DefaultMaxLen approximately caps the stream length.
const DefaultMaxLen = 100_000

// Streamer is the part of a Redis client the publisher needs.
type Streamer interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Publisher is a chain.Sink that appends each event to a Redis stream as one
// entry. Field payloads are stored as a JSON object under "fields".
type Publisher struct {
	rdb    Streamer
	stream string
	maxLen int64
}

var _ chain.Sink = (*Publisher)(nil)

// Connect parses a redis:// URL and returns a client for it.
func Connect(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

// NewPublisher returns a publisher writing to stream.
func NewPublisher(rdb Streamer, stream string) *Publisher {
	return &Publisher{rdb: rdb, stream: stream, maxLen: DefaultMaxLen}
}

// Publish implements chain.Sink. It stops at the first failed append.
func (p *Publisher) Publish(ctx context.Context, events []chain.Event) error {
	for _, e := range events {
		values, err := entry(e)
		if err != nil {
			return err
		}
		err = p.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: p.stream,
			MaxLen: p.maxLen,
			Approx: true,
			Values: values,
		}).Err()
		if err != nil {
			return fmt.Errorf("xadd %s seq %d/%d: %w", e.Name, e.Seq, e.Index, err)
		}
	}
	return nil
}

func entry(e chain.Event) (map[string]any, error) {
	fields, err := json.Marshal(e.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields of %s: %w", e.Name, err)
	}
	return map[string]any{
		"tx_id":    e.TxID,
		"seq":      strconv.FormatUint(e.Seq, 10),
		"index":    strconv.Itoa(e.Index),
		"time":     e.Time.UTC().Format(time.RFC3339),
		"contract": e.Contract.Hex(),
		"name":     e.Name,
		"fields":   string(fields),
	}, nil
}
