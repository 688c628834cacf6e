// Package postgres implements storage.Backend on a PostgreSQL table.
package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/petshop-storefront/internal/storage"
)

const (
	getValueSQL = `SELECT value FROM storefront_kv WHERE session_id = $1 AND key = $2`

	setValueSQL = `INSERT INTO storefront_kv (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	deleteValueSQL = `DELETE FROM storefront_kv WHERE session_id = $1 AND key = $2`

	// A session is purged whole, once its newest row is older than the cutoff.
	purgeSQL = `DELETE FROM storefront_kv WHERE session_id IN (
		SELECT session_id FROM storefront_kv GROUP BY session_id HAVING max(updated_at) < $1
	)`

	// Malformed cart values contribute no lines instead of failing the cast.
	cartStatsSQL = `SELECT count(DISTINCT kv.session_id), count(line.value),
			COALESCE(sum((line.value->>'price')::numeric * (line.value->>'qty')::int), 0)
		FROM storefront_kv kv
		CROSS JOIN LATERAL jsonb_array_elements(
			CASE WHEN pg_input_is_valid(kv.value, 'jsonb') AND jsonb_typeof(kv.value::jsonb) = 'array'
				THEN kv.value::jsonb ELSE '[]'::jsonb END
		) AS line
		WHERE kv.key = $1`
)

var _ storage.Backend = (*Backend)(nil)

// Backend stores visitor keys as rows of storefront_kv.
type Backend struct {
	pool *pgxpool.Pool
}

// New returns a Backend that uses the given pool.
func New(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// Open connects, applies the schema and returns a ready Backend.
func Open(ctx context.Context, databaseURL string, pc PoolConfig) (*Backend, error) {
	pool, err := NewPool(ctx, databaseURL, pc)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := ApplySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return New(pool), nil
}

// Namespace returns the KV view for sessionID.
func (b *Backend) Namespace(sessionID string) storage.KV {
	return &namespace{pool: b.pool, id: sessionID}
}

// Ping checks connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close closes the pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}

// Purge deletes every key of the sessions with no write since cutoff and
// returns the number of deleted rows. Keys of a session that is still being
// written survive however old they are.
func (b *Backend) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := b.pool.Exec(ctx, purgeSQL, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "purge stale rows")
	}
	return tag.RowsAffected(), nil
}

// CartStats summarizes the carts stored in the table.
type CartStats struct {
	// Carts is the number of sessions with at least one cart line.
	Carts int64
	Lines int64
	// Value is the sum of price * qty over every line.
	Value decimal.Decimal
}

// CartStats aggregates every stored cart in one query.
func (b *Backend) CartStats(ctx context.Context) (CartStats, error) {
	var st CartStats
	if err := b.pool.QueryRow(ctx, cartStatsSQL, storage.KeyCart).Scan(&st.Carts, &st.Lines, &st.Value); err != nil {
		return CartStats{}, errors.Wrap(err, "query cart stats")
	}
	return st, nil
}

type namespace struct {
	pool *pgxpool.Pool
	id   string
}

func (n *namespace) Get(ctx context.Context, key string) (string, error) {
	var v string
	if err := n.pool.QueryRow(ctx, getValueSQL, n.id, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", storage.ErrNotFound
		}
		return "", errors.Wrapf(err, "get %q", key)
	}
	return v, nil
}

func (n *namespace) Set(ctx context.Context, key, value string) error {
	if _, err := n.pool.Exec(ctx, setValueSQL, n.id, key, value); err != nil {
		return errors.Wrapf(err, "set %q", key)
	}
	return nil
}

func (n *namespace) Delete(ctx context.Context, key string) error {
	if _, err := n.pool.Exec(ctx, deleteValueSQL, n.id, key); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}
