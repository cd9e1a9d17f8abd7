package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/genomechain/genome-ledger/internal/chain"

// Call describes an external transaction.
type Call struct {
	// From is the external account signing the call.
	From Address
	// To is the contract being called. It receives Value before the call runs.
	To Address
	// Value is the native amount attached to the call. Nil means none.
	Value *uint256.Int
	// Method names the operation for tracing and metrics, e.g. "market.purchase_native".
	Method string
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxID   string
	Seq    uint64
	Time   time.Time
	Events []Event
}

// Observer is told the outcome of every transaction.
type Observer func(method string, err error, elapsed time.Duration)

// Engine serializes transactions against shared ledger state. Each call to
// Execute either commits every effect or none.
type Engine struct {
	mu       sync.RWMutex
	clock    Clock
	bank     *Bank
	seq      uint64
	sinks    []Sink
	observer Observer
	tracer   trace.Tracer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time reference. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSink adds an event sink.
func WithSink(s Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, s) }
}

// WithObserver sets the transaction outcome hook.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithTracerProvider sets where transaction spans go. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// NewEngine returns an engine with an empty bank.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		clock: SystemClock{},
		bank:  newBank(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Bank returns the native-currency ledger.
func (e *Engine) Bank() *Bank {
	return e.bank
}

// Clock returns the engine's time reference.
func (e *Engine) Clock() Clock {
	return e.clock
}

// AddSink registers another event sink.
func (e *Engine) AddSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Seq returns the number of committed transactions.
func (e *Engine) Seq() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.seq
}

// View runs fn with shared access to ledger state. fn must not mutate state.
func (e *Engine) View(fn func(now time.Time)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.clock.Now())
}

// Execute runs fn as one transaction. If call carries Value it is moved
// from call.From to call.To first. If fn (or the value transfer) fails every
// journaled mutation is undone and no event is published.
func (e *Engine) Execute(ctx context.Context, call Call, fn func(tx *Tx) error) (*Receipt, error) {
	ctx, span := e.tracer.Start(ctx, call.Method, trace.WithAttributes(
		attribute.String("tx.from", call.From.Hex()),
		attribute.String("tx.to", call.To.Hex()),
	))
	defer span.End()

	start := time.Now()
	receipt, err := e.execute(ctx, call, fn)
	if e.observer != nil {
		e.observer(call.Method, err, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ReasonOf(err))
		e.logger.Debug("transaction reverted",
			"method", call.Method,
			"from", call.From.Hex(),
			"error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("tx.id", receipt.TxID),
		attribute.Int("tx.events", len(receipt.Events)),
	)
	return receipt, nil
}

func (e *Engine) execute(ctx context.Context, call Call, fn func(tx *Tx) error) (*Receipt, error) {
	if call.From.IsZero() {
		return nil, fmt.Errorf("%w: transaction sender", ErrZeroAddress)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := &Tx{
		state:  &txState{id: uuid.NewString(), now: e.clock.Now()},
		sender: call.From,
	}
	if call.Value != nil {
		tx.value = *call.Value
	}

	defer func() {
		if r := recover(); r != nil {
			tx.revert()
			panic(r)
		}
	}()

	if !tx.value.IsZero() {
		if err := e.bank.Transfer(tx, call.From, call.To, &tx.value); err != nil {
			tx.revert()
			return nil, err
		}
	}
	if err := fn(tx); err != nil {
		tx.revert()
		return nil, err
	}

	e.seq++
	events := tx.state.events
	for i := range events {
		events[i].TxID = tx.state.id
		events[i].Seq = e.seq
		events[i].Index = i
		events[i].Time = tx.state.now
	}
	receipt := &Receipt{
		TxID:   tx.state.id,
		Seq:    e.seq,
		Time:   tx.state.now,
		Events: events,
	}
	// Sinks run under the lock so they observe commit order.
	if len(events) > 0 {
		for _, s := range e.sinks {
			if err := s.Publish(ctx, events); err != nil {
				e.logger.Warn("event sink failed", "tx_id", receipt.TxID, "error", err)
			}
		}
	}
	return receipt, nil
}
