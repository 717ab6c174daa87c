// Package sim runs a producer and a consumer built from one catalog config
// against each other, passing every record through the wire codec.
package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/danmuck/catalogsync/internal/catalog"
	"github.com/danmuck/catalogsync/internal/config"
	"github.com/danmuck/catalogsync/internal/delta"
	"github.com/danmuck/catalogsync/internal/replication"
	"github.com/rs/zerolog/log"
)

var ErrDiverged = errors.New("sim: consumer diverged from producer")

type Options struct {
	// Ticks to run; zero runs through the last scripted tick.
	Ticks int
	// JoinTick is the tick the consumer connects on and receives full updates.
	JoinTick int
	// ConsumerOrder is the consumer's list creation order. Lists missing
	// from it are created afterwards in config order.
	ConsumerOrder []string
	// Interval paces Run; zero runs ticks back to back.
	Interval time.Duration
}

// TickReport summarizes the records one tick put on the wire.
type TickReport struct {
	Tick        int
	FullUpdates int
	Updates     int
	Additions   int
	Changes     int
	Bytes       int
}

type Loopback struct {
	cfg      config.CatalogConfig
	opts     Options
	producer *replication.Transmitter
	consumer *replication.Receiver
	joined   bool
	next     int
}

func New(cfg config.CatalogConfig, opts Options) (*Loopback, error) {
	if opts.Ticks <= 0 {
		opts.Ticks = cfg.LastTick() + 1
	}
	if opts.JoinTick < 0 || opts.JoinTick >= opts.Ticks {
		return nil, fmt.Errorf("sim: join tick %d outside [0,%d)", opts.JoinTick, opts.Ticks)
	}
	pset, err := config.BuildDescriptorSet("producer", cfg)
	if err != nil {
		return nil, err
	}
	cset, err := config.BuildDescriptorSet("consumer", cfg)
	if err != nil {
		return nil, err
	}
	lb := &Loopback{
		cfg:      cfg,
		opts:     opts,
		producer: replication.NewTransmitter(pset),
		consumer: replication.NewReceiver(cset),
	}
	for _, name := range cfg.Lists {
		if _, err := lb.producer.CreateList(name); err != nil {
			return nil, err
		}
	}
	for _, name := range consumerOrder(cfg.Lists, opts.ConsumerOrder) {
		if _, err := lb.consumer.CreateList(name); err != nil {
			return nil, err
		}
	}
	return lb, nil
}

func consumerOrder(lists, preferred []string) []string {
	out := make([]string, 0, len(lists))
	for _, name := range preferred {
		if slices.Contains(lists, name) && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	for _, name := range lists {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func (lb *Loopback) Producer() *replication.Transmitter {
	return lb.producer
}

func (lb *Loopback) Consumer() *replication.Receiver {
	return lb.consumer
}

func (lb *Loopback) Ticks() int {
	return lb.opts.Ticks
}

// Done reports whether every tick has run.
func (lb *Loopback) Done() bool {
	return lb.next >= lb.opts.Ticks
}

// Run steps through the remaining ticks and verifies the consumer at the end.
func (lb *Loopback) Run(ctx context.Context) ([]TickReport, error) {
	var ticker *time.Ticker
	if lb.opts.Interval > 0 {
		ticker = time.NewTicker(lb.opts.Interval)
		defer ticker.Stop()
	}
	reports := make([]TickReport, 0, lb.opts.Ticks-lb.next)
	for !lb.Done() {
		if ticker != nil && lb.next > 0 {
			select {
			case <-ctx.Done():
				return reports, ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := lb.Step()
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, lb.Verify()
}

// Step applies the next tick's scripted entries, drains the producer and
// delivers the records to the consumer once it has joined.
func (lb *Loopback) Step() (TickReport, error) {
	tick := lb.next
	report := TickReport{Tick: tick}
	if lb.Done() {
		return report, fmt.Errorf("sim: ran past last tick %d", lb.opts.Ticks-1)
	}
	lb.next++

	for _, e := range lb.cfg.EntriesAt(tick) {
		if err := lb.apply(e); err != nil {
			return report, fmt.Errorf("sim: tick %d: %w", tick, err)
		}
	}

	updates, err := lb.producer.CreateUpdates()
	if err != nil {
		return report, err
	}
	if tick < lb.opts.JoinTick {
		log.Debug().Int("tick", tick).Int("dropped", len(updates)).Msg("sim: consumer not joined")
		return report, nil
	}

	if !lb.joined {
		// the snapshot already holds everything just drained
		if err := lb.join(&report); err != nil {
			return report, err
		}
	} else {
		for _, u := range updates {
			if err := lb.deliver(u, &report); err != nil {
				return report, err
			}
		}
	}
	log.Info().
		Int("tick", tick).
		Int("full_updates", report.FullUpdates).
		Int("updates", report.Updates).
		Int("additions", report.Additions).
		Int("changes", report.Changes).
		Int("bytes", report.Bytes).
		Msg("sim: tick")
	return report, nil
}

func (lb *Loopback) join(report *TickReport) error {
	fulls, err := lb.producer.CreateFullUpdates()
	if err != nil {
		return err
	}
	for _, full := range fulls {
		b, err := replication.EncodeFullUpdate(full)
		if err != nil {
			return err
		}
		decoded, err := replication.DecodeFullUpdate(b)
		if err != nil {
			return err
		}
		if err := lb.consumer.ProcessFullUpdate(decoded); err != nil {
			return err
		}
		report.FullUpdates++
		report.Additions += len(full.Entries)
		report.Bytes += len(b)
	}
	lb.joined = true
	return nil
}

func (lb *Loopback) deliver(u replication.Update, report *TickReport) error {
	b, err := replication.EncodeUpdate(u)
	if err != nil {
		return err
	}
	decoded, err := replication.DecodeUpdate(b)
	if err != nil {
		return err
	}
	if err := lb.consumer.ProcessUpdate(decoded); err != nil {
		if errors.Is(err, replication.ErrResyncRequired) {
			return lb.resync(u.ListID, err)
		}
		return err
	}
	report.Updates++
	report.Additions += len(u.Additions)
	report.Changes += len(u.PayloadChanges)
	report.Bytes += len(b)
	return nil
}

// resync re-sends the full update for one list after the consumer dropped
// its mapping.
func (lb *Loopback) resync(listID int, cause error) error {
	log.Warn().Err(cause).Int("list_id", listID).Msg("sim: resyncing list")
	full, err := lb.producer.CreateFullUpdate(listID)
	if err != nil {
		return errors.Join(cause, err)
	}
	if err := lb.consumer.ProcessFullUpdate(full); err != nil {
		return errors.Join(cause, err)
	}
	return nil
}

func (lb *Loopback) apply(e config.EntryConfig) error {
	l, ok := lb.producer.Lists().List(e.List)
	if !ok {
		return fmt.Errorf("%w: %q", replication.ErrUnknownList, e.List)
	}
	payload, err := lb.payload(e)
	if err != nil {
		return err
	}
	if existing, ok := l.Find(e.Value); ok {
		if payload == nil || existing.Payload().Equal(payload) {
			return nil
		}
		return l.SetPayload(existing.Index(), payload)
	}
	_, err = l.Add(e.Value, payload)
	return err
}

func (lb *Loopback) payload(e config.EntryConfig) (*delta.Message, error) {
	if e.Payload == "" {
		return nil, nil
	}
	schema, ok := lb.producer.Lists().Descriptors().Lookup(e.Payload)
	if !ok {
		return nil, fmt.Errorf("sim: payload %q not registered", e.Payload)
	}
	return config.BuildMessage(schema, e.Values)
}

// Verify compares every producer list with the consumer list of the same
// name. Payloads are compared as the consumer would decode them, so
// quantized fields match exactly.
func (lb *Loopback) Verify() error {
	if !lb.joined {
		return nil
	}
	for _, want := range lb.producer.Lists().Lists() {
		got, ok := lb.consumer.Lists().List(want.Name())
		if !ok {
			return fmt.Errorf("%w: list %q missing", ErrDiverged, want.Name())
		}
		if err := lb.compareLists(want, got); err != nil {
			return err
		}
	}
	return nil
}

func (lb *Loopback) compareLists(want, got *catalog.List) error {
	if want.Len() != got.Len() {
		return fmt.Errorf("%w: list %q has %d entries, want %d", ErrDiverged, want.Name(), got.Len(), want.Len())
	}
	for i, we := range want.Entries() {
		ge, _ := got.Entry(i)
		if we.Value() != ge.Value() {
			return fmt.Errorf("%w: list %q index %d is %q, want %q", ErrDiverged, want.Name(), i, ge.Value(), we.Value())
		}
		expected, err := lb.project(we.Payload())
		if err != nil {
			return err
		}
		if !expected.Equal(ge.Payload()) {
			return fmt.Errorf("%w: list %q index %d payload %v, want %v",
				ErrDiverged, want.Name(), i, payloadValues(ge.Payload()), payloadValues(expected))
		}
	}
	return nil
}

// project returns msg as the consumer decodes it.
func (lb *Loopback) project(msg *delta.Message) (*delta.Message, error) {
	if msg == nil {
		return nil, nil
	}
	enc, err := lb.producer.Lists().Descriptors().Encode(msg)
	if err != nil {
		return nil, err
	}
	return lb.consumer.Lists().Descriptors().Decode(enc)
}

func payloadValues(msg *delta.Message) []delta.Value {
	if msg == nil {
		return nil
	}
	return msg.Values()
}
