package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genomechain/genome-ledger/internal/chain"
)

type fakeStream struct {
	calls []*redis.XAddArgs
	fail  int // fail the call with this 1-based index
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.calls = append(f.calls, a)
	if len(f.calls) == f.fail {
		return redis.NewStringResult("", errors.New("connection refused"))
	}
	return redis.NewStringResult("1-0", nil)
}

func TestPublishWritesOneEntryPerEvent(t *testing.T) {
	stream := &fakeStream{}
	p := NewPublisher(stream, "genome:events")
	market := chain.AddressFromName("market")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), []chain.Event{
		{TxID: "tx-1", Seq: 7, Index: 0, Time: at, Contract: market, Name: "DataSold", Fields: chain.Fields{"price": "100"}},
		{TxID: "tx-1", Seq: 7, Index: 1, Time: at, Contract: market, Name: "AccessGranted"},
	})
	require.NoError(t, err)
	require.Len(t, stream.calls, 2)

	first := stream.calls[0]
	assert.Equal(t, "genome:events", first.Stream)
	assert.True(t, first.Approx)
	assert.Equal(t, int64(DefaultMaxLen), first.MaxLen)

	values := first.Values.(map[string]any)
	assert.Equal(t, "7", values["seq"])
	assert.Equal(t, "0", values["index"])
	assert.Equal(t, "DataSold", values["name"])
	assert.Equal(t, market.Hex(), values["contract"])
	assert.Equal(t, "2026-03-01T12:00:00Z", values["time"])

	var fields map[string]string
	require.NoError(t, json.Unmarshal([]byte(values["fields"].(string)), &fields))
	assert.Equal(t, "100", fields["price"])

	second := stream.calls[1].Values.(map[string]any)
	assert.Equal(t, "null", second["fields"])
}

func TestPublishStopsAtFirstFailure(t *testing.T) {
	stream := &fakeStream{fail: 1}
	p := NewPublisher(stream, "s")

	err := p.Publish(context.Background(), []chain.Event{{Name: "A"}, {Name: "B"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Len(t, stream.calls, 1)
}

func TestPublisherAsEngineSink(t *testing.T) {
	stream := &fakeStream{}
	engine := chain.NewEngine(chain.WithSink(NewPublisher(stream, "s")))
	alice := chain.AddressFromName("alice")

	_, err := engine.Execute(context.Background(), chain.Call{From: alice, Method: "test"}, func(tx *chain.Tx) error {
		tx.Emit(alice, "Ping", nil)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, stream.calls, 1)
	assert.Equal(t, "1", stream.calls[0].Values.(map[string]any)["seq"])
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect("http://not-redis")
	assert.Error(t, err)

	client, err := Connect("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
