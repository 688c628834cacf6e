package consent

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/petshop-storefront/internal/storage"
	"github.com/xenking/petshop-storefront/internal/storage/memory"
)

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("quota") }
func (brokenKV) Set(context.Context, string, string) error   { return errors.New("quota") }
func (brokenKV) Delete(context.Context, string) error        { return errors.New("quota") }

// flakyKV fails reads while down is set.
type flakyKV struct {
	storage.KV
	down bool
}

func (f *flakyKV) Get(ctx context.Context, key string) (string, error) {
	if f.down {
		return "", errors.New("read timeout")
	}
	return f.KV.Get(ctx, key)
}

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.UTC)

func newGate(t *testing.T) (*Gate, storage.KV) {
	t.Helper()
	kv := memory.New().Namespace("s")
	return NewGate(kv, WithClock(func() time.Time { return fixedNow })), kv
}

func TestGate_RecordOnlyWhenGranted(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)

	assert.Equal(t, Unset, g.State())
	assert.False(t, g.Record(ctx, EventPageView, String("path", "/")))
	assert.Zero(t, g.Len())

	require.NoError(t, g.Accept(ctx))
	assert.Equal(t, Granted, g.State())
	// consent_granted itself is logged.
	assert.Equal(t, 1, g.Len())

	for i := 0; i < 3; i++ {
		before := g.Len()
		assert.True(t, g.Record(ctx, EventPageView, String("path", "/")))
		assert.Equal(t, before+1, g.Len())
	}
}

func TestGate_Declined(t *testing.T) {
	ctx := context.Background()
	g, kv := newGate(t)

	require.NoError(t, g.Decline(ctx))
	assert.Equal(t, Declined, g.State())
	assert.Zero(t, g.Len())
	assert.False(t, g.Record(ctx, EventSearch, String("query", "dog")))
	assert.Zero(t, g.Len())
	assert.False(t, g.HasExportAffordance())

	v, err := kv.Get(ctx, storage.KeyConsent)
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestGate_DecisionIsTerminal(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)

	require.NoError(t, g.Accept(ctx))
	require.ErrorIs(t, g.Decline(ctx), ErrAlreadyDecided)
	require.ErrorIs(t, g.Accept(ctx), ErrAlreadyDecided)
	assert.Equal(t, Granted, g.State())
}

func TestGate_ExportAffordanceIdempotent(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)

	require.NoError(t, g.Accept(ctx))
	assert.True(t, g.HasExportAffordance())
	assert.False(t, g.EnsureExportAffordance())
	assert.True(t, g.HasExportAffordance())
}

func TestGate_OnChange(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)
	var got []State
	g.OnChange(func(s State) { got = append(got, s) })

	require.NoError(t, g.Accept(ctx))
	_ = g.Decline(ctx)
	assert.Equal(t, []State{Granted}, got)
}

func TestGate_Hydrate(t *testing.T) {
	tests := []struct {
		name       string
		consent    string
		log        string
		state      State
		entries    int
		affordance bool
	}{
		{name: "absent", state: Unset},
		{name: "granted", consent: "true", log: `[{"event":"page_view","ts":"x","path":"/"}]`, state: Granted, entries: 1, affordance: true},
		{name: "declined", consent: "false", state: Declined},
		{name: "garbage flag", consent: "maybe", state: Unset},
		{name: "malformed log", consent: "true", log: `[{"event":`, state: Granted, affordance: true},
		{name: "log not array", consent: "true", log: `{"event":"x"}`, state: Granted, affordance: true},
		{name: "entry not object", consent: "true", log: `[1,2]`, state: Granted, affordance: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := memory.New().Namespace("s")
			if tt.consent != "" {
				require.NoError(t, kv.Set(ctx, storage.KeyConsent, tt.consent))
			}
			if tt.log != "" {
				require.NoError(t, kv.Set(ctx, storage.KeyUsageLog, tt.log))
			}
			g := NewGate(kv)
			g.Hydrate(ctx)
			assert.Equal(t, tt.state, g.State())
			assert.Equal(t, tt.entries, g.Len())
			assert.Equal(t, tt.affordance, g.HasExportAffordance())
		})
	}
}

func TestGate_StorageUnavailable(t *testing.T) {
	ctx := context.Background()
	g := NewGate(brokenKV{})
	require.True(t, storage.IsUnavailable(g.Hydrate(ctx)))
	assert.Equal(t, Unset, g.State())

	require.NoError(t, g.Accept(ctx))
	assert.True(t, g.Record(ctx, EventMenuOpen))
	assert.Equal(t, 2, g.Len())
}

func TestGate_UnreadLogIsNotOverwritten(t *testing.T) {
	ctx := context.Background()
	kv := &flakyKV{KV: memory.New().Namespace("s")}
	first := NewGate(kv, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, first.Accept(ctx))
	first.Record(ctx, EventCartOpen, Int("cart_count", 1))

	kv.down = true
	g := NewGate(kv)
	require.Error(t, g.Hydrate(ctx))
	assert.Equal(t, Unset, g.State())
	require.NoError(t, g.Decline(ctx))

	kv.down = false
	restored := NewGate(kv)
	require.NoError(t, restored.Hydrate(ctx))
	assert.Equal(t, Granted, restored.State())
	assert.Equal(t, first.Entries(), restored.Entries())
}

func TestGate_PersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	g, kv := newGate(t)
	require.NoError(t, g.Accept(ctx))
	g.Record(ctx, EventAddToCart, String("productId", "dog_dry-dog-food_1"), String("title", `Dry "Dog" Food — 1`))
	g.Record(ctx, EventCartOpen, Int("cart_count", 1))

	restored := NewGate(kv)
	restored.Hydrate(ctx)
	assert.Equal(t, Granted, restored.State())
	assert.Equal(t, g.Entries(), restored.Entries())
}

func TestGate_Export(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)

	_, err := g.Export(ctx)
	require.ErrorIs(t, err, ErrEmptyExportSet)

	require.NoError(t, g.Accept(ctx))
	g.Record(ctx, EventSearch, String("query", `say "hi"`), Int("results", 2))

	x, err := g.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, "usage_2024-03-09-14-05-07.csv", x.Filename)
	assert.Equal(t, 2, x.Count)
	assert.Equal(t,
		"event,ts,query,results\n"+
			`"consent_granted","2024-03-09T14:05:07.123Z","",""`+"\n"+
			`"search","2024-03-09T14:05:07.123Z","say ""hi""","2"`,
		string(x.Data))

	// export_usage is recorded after the download is built.
	entries := g.Entries()
	require.Len(t, entries, 3)
	last := entries[2]
	assert.Equal(t, EventExportUsage, last.Event())
	count, ok := last.Get("count")
	require.True(t, ok)
	assert.Equal(t, "2", count.Value)
}

func TestGate_EmptyExportRecordsNothing(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)
	_, err := g.Export(ctx)
	require.ErrorIs(t, err, ErrEmptyExportSet)
	assert.Zero(t, g.Len())
}
