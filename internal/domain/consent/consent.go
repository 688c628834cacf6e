// Package consent implements the opt-in gate for usage logging, the usage
// log itself and its CSV export.
package consent

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/petshop-storefront/internal/storage"
)

var (
	// ErrAlreadyDecided is returned when Accept or Decline is called after
	// the visitor has already made a choice.
	ErrAlreadyDecided = errors.New("consent already decided")
	// ErrEmptyExportSet is returned by Export when there is nothing to export.
	ErrEmptyExportSet = errors.New("no usage data to export")
)

// EmptyExportNotice is shown to the visitor instead of a download.
const EmptyExportNotice = "No usage data to export."

// State is the tri-state consent flag.
type State int

// Consent states.
const (
	Unset State = iota
	Granted
	Declined
)

func (s State) String() string {
	switch s {
	case Granted:
		return "granted"
	case Declined:
		return "declined"
	default:
		return "unset"
	}
}

// Gate holds the consent state and usage log of one visitor. It is not safe
// for concurrent use.
type Gate struct {
	kv  storage.KV
	lg  *zap.Logger
	now func() time.Time

	state      State
	affordance bool
	log        []Entry
	listeners  []func(State)
	// detached is set when the stored flag or log could not be read;
	// writes stay in memory until a Hydrate succeeds.
	detached error
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source used for entry timestamps and
// export filenames.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(g *Gate) { g.lg = lg }
}

// NewGate creates a Gate in the Unset state backed by kv.
func NewGate(kv storage.KV, opts ...Option) *Gate {
	g := &Gate{kv: kv, lg: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// OnChange registers fn to run after each state transition.
func (g *Gate) OnChange(fn func(State)) {
	g.listeners = append(g.listeners, fn)
}

// Hydrate loads the persisted flag and log. Absent or unparsable values
// degrade to Unset and an empty log. A read failure degrades the same way,
// is returned as a storage.UnavailableError, and holds back writes until a
// Hydrate succeeds.
func (g *Gate) Hydrate(ctx context.Context) error {
	g.state = Unset
	g.log = nil
	g.detached = nil

	var errs []error
	raw, err := g.kv.Get(ctx, storage.KeyConsent)
	switch {
	case err == nil:
		switch raw {
		case "true":
			g.state = Granted
		case "false":
			g.state = Declined
		}
	case !errors.Is(err, storage.ErrNotFound):
		err = storage.Unavailable("get", storage.KeyConsent, err)
		g.lg.Warn("Consent storage unavailable", zap.Error(err))
		errs = append(errs, err)
	}

	raw, err = g.kv.Get(ctx, storage.KeyUsageLog)
	switch {
	case err == nil:
		entries, err := DecodeLog([]byte(raw))
		if err != nil {
			g.lg.Debug("Discarding malformed usage log", zap.Error(err))
			break
		}
		g.log = entries
	case !errors.Is(err, storage.ErrNotFound):
		err = storage.Unavailable("get", storage.KeyUsageLog, err)
		g.lg.Warn("Usage log storage unavailable", zap.Error(err))
		errs = append(errs, err)
	}

	if g.state == Granted {
		g.EnsureExportAffordance()
	}
	g.detached = errors.Join(errs...)
	return g.detached
}

// write persists value under key unless the stored state was never loaded.
func (g *Gate) write(ctx context.Context, key, value string) error {
	if g.detached != nil {
		return errors.Wrap(g.detached, "stored consent not loaded")
	}
	return storage.Unavailable("set", key, g.kv.Set(ctx, key, value))
}

// State returns the current consent state.
func (g *Gate) State() State { return g.state }

// Accept moves Unset to Granted, records consent_granted and creates the
// export affordance.
func (g *Gate) Accept(ctx context.Context) error {
	if err := g.decide(ctx, Granted); err != nil {
		return err
	}
	g.Record(ctx, EventConsentGranted)
	g.EnsureExportAffordance()
	g.notify()
	return nil
}

// Decline moves Unset to Declined. The consent_declined event is offered to
// the log and discarded by the gate.
func (g *Gate) Decline(ctx context.Context) error {
	if err := g.decide(ctx, Declined); err != nil {
		return err
	}
	g.Record(ctx, EventConsentDeclined)
	g.notify()
	return nil
}

func (g *Gate) decide(ctx context.Context, s State) error {
	if g.state != Unset {
		return errors.Wrapf(ErrAlreadyDecided, "state %s", g.state)
	}
	g.state = s
	value := "false"
	if s == Granted {
		value = "true"
	}
	if err := g.write(ctx, storage.KeyConsent, value); err != nil {
		g.lg.Warn("Consent not persisted, keeping in memory", zap.Error(err))
	}
	return nil
}

func (g *Gate) notify() {
	for _, fn := range g.listeners {
		fn(g.state)
	}
}

// EnsureExportAffordance makes the export affordance available. It reports
// whether this call created it; later calls change nothing.
func (g *Gate) EnsureExportAffordance() bool {
	if g.affordance {
		return false
	}
	g.affordance = true
	return true
}

// HasExportAffordance reports whether the export affordance exists.
func (g *Gate) HasExportAffordance() bool { return g.affordance }

// Record appends {event, ts, fields...} to the usage log iff consent is
// Granted. It reports whether the entry was kept.
func (g *Gate) Record(ctx context.Context, event string, fields ...Field) bool {
	if g.state != Granted {
		return false
	}
	g.log = append(g.log, NewEntry(event, g.now(), fields...))
	if err := g.write(ctx, storage.KeyUsageLog, string(EncodeLog(g.log))); err != nil {
		g.lg.Warn("Usage log not persisted, keeping in memory",
			zap.String("event", event),
			zap.Error(err))
	}
	return true
}

// Entries returns a copy of the usage log.
func (g *Gate) Entries() []Entry {
	return append([]Entry(nil), g.log...)
}

// Len returns the number of logged entries.
func (g *Gate) Len() int { return len(g.log) }

// Export renders the usage log as CSV and then records export_usage.
// An empty log yields ErrEmptyExportSet and records nothing.
func (g *Gate) Export(ctx context.Context) (Export, error) {
	if len(g.log) == 0 {
		return Export{}, ErrEmptyExportSet
	}
	x := Export{
		Filename: Filename(g.now()),
		Data:     CSV(g.log),
		Count:    len(g.log),
	}
	g.Record(ctx, EventExportUsage, Int("count", x.Count))
	return x, nil
}
