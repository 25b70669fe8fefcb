package pools

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hivefolio/tracker/internal/cache"
	"github.com/hivefolio/tracker/internal/domain"
	"github.com/hivefolio/tracker/internal/engine"
)

type fakeEngine struct {
	pools     []engine.PoolRecord
	positions []engine.PositionRecord

	// fieldsUnindexed simulates a node that cannot serve queries on the
	// baseSymbol/quoteSymbol fields.
	fieldsUnindexed bool

	// failUntil makes every query return nothing for the first N whole
	// searches (4 queries each).
	failUntil int
	queries   int
	queryLog  []map[string]any
}

func (f *fakeEngine) PoolsQuery(_ context.Context, query map[string]any, _ int) []engine.PoolRecord {
	f.queries++
	f.queryLog = append(f.queryLog, query)
	if f.queries <= f.failUntil*4 {
		return nil
	}
	if pair, ok := query["tokenPair"].(string); ok {
		for _, p := range f.pools {
			if p.TokenPair == pair {
				return []engine.PoolRecord{p}
			}
		}
		return nil
	}
	if base, ok := query["baseSymbol"].(string); ok {
		if f.fieldsUnindexed {
			return nil
		}
		quote, _ := query["quoteSymbol"].(string)
		for _, p := range f.pools {
			if p.BaseSymbol == base && p.QuoteSymbol == quote {
				return []engine.PoolRecord{p}
			}
		}
		return nil
	}
	return f.pools
}

func (f *fakeEngine) LiquidityPositions(_ context.Context, _ string) []engine.PositionRecord {
	return f.positions
}

func qty(s string) domain.Quantity {
	return domain.Quantity{Decimal: domain.SafeParse(s)}
}

func newTestResolver(t *testing.T, fake *fakeEngine) *Resolver {
	t.Helper()
	c := cache.New[domain.PoolReserves](filepath.Join(t.TempDir(), "pools.json"), 900*time.Second)
	r := NewResolver(fake, c)
	r.sleep = func(context.Context, time.Duration) error { return nil }
	r.jitter = func(lo, hi float64) time.Duration { return time.Millisecond }
	return r
}

var leoPool = engine.PoolRecord{
	ID:            42,
	TokenPair:     "SWAP.HIVE:LEO",
	BaseSymbol:    "SWAP.HIVE",
	QuoteSymbol:   "LEO",
	BaseQuantity:  qty("1000"),
	QuoteQuantity: qty("20000"),
	TotalShares:   qty("4472.1"),
}

func TestResolvePoolDirect(t *testing.T) {
	fake := &fakeEngine{pools: []engine.PoolRecord{leoPool}}
	r := newTestResolver(t, fake)

	res, ok := r.ResolvePool(context.Background(), domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"})
	if !ok {
		t.Fatal("pool not found")
	}
	if res.BaseQty.String() != "1000" || res.TotalShares.String() != "4472.1" {
		t.Errorf("reserves = %+v", res)
	}
	if fake.queries != 1 {
		t.Errorf("queries = %d, want 1 (direct hit)", fake.queries)
	}
}

func TestResolvePoolReversedOrder(t *testing.T) {
	fake := &fakeEngine{pools: []engine.PoolRecord{leoPool}}
	r := newTestResolver(t, fake)

	// The caller asks for LEO:SWAP.HIVE; the pool is registered the
	// other way around.
	res, ok := r.ResolvePool(context.Background(), domain.Pair{Base: "LEO", Quote: "SWAP.HIVE"})
	if !ok {
		t.Fatal("reversed pool not found")
	}
	// Reserve symbols keep the pool's own orientation.
	if res.BaseSymbol != "SWAP.HIVE" || res.QuoteSymbol != "LEO" {
		t.Errorf("reserve symbols = %s/%s, want SWAP.HIVE/LEO", res.BaseSymbol, res.QuoteSymbol)
	}
	if res.Pair.String() != "LEO:SWAP.HIVE" {
		t.Errorf("pair = %s, want the requested orientation", res.Pair)
	}
	// The third shape queries the swapped base and quote fields.
	if fake.queries != 3 {
		t.Fatalf("queries = %d, want 3 (found by reversed fields)", fake.queries)
	}
	last := fake.queryLog[2]
	if last["baseSymbol"] != "SWAP.HIVE" || last["quoteSymbol"] != "LEO" {
		t.Errorf("third query = %v, want swapped baseSymbol/quoteSymbol", last)
	}
}

func TestResolvePoolBulkScanFallback(t *testing.T) {
	// tokenPair uses a separator the direct queries cannot guess, and the
	// node does not serve field queries, so only the local symbol match
	// over the bulk scan can find the pool.
	odd := leoPool
	odd.TokenPair = "LEO_SWAP.HIVE"
	fake := &fakeEngine{pools: []engine.PoolRecord{odd}, fieldsUnindexed: true}
	r := newTestResolver(t, fake)

	_, ok := r.ResolvePool(context.Background(), domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"})
	if !ok {
		t.Fatal("bulk scan did not match by symbols")
	}
	if fake.queries != 4 {
		t.Errorf("queries = %d, want 4 (all shapes tried)", fake.queries)
	}
}

func TestResolvePoolRetriesWholeSearch(t *testing.T) {
	fake := &fakeEngine{pools: []engine.PoolRecord{leoPool}, failUntil: 2}
	r := newTestResolver(t, fake)

	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, ok := r.ResolvePool(context.Background(), domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"})
	if !ok {
		t.Fatal("pool not found after transient misses")
	}
	if len(slept) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(slept))
	}
	// delay*(attempt+1) with attempt starting at 1 on the first retry.
	if slept[0] < 2*r.delay || slept[1] < 3*r.delay {
		t.Errorf("delays = %v, want growing multiples of %v", slept, r.delay)
	}
}

func TestResolvePoolExhaustion(t *testing.T) {
	fake := &fakeEngine{failUntil: 100}
	r := newTestResolver(t, fake)

	if _, ok := r.ResolvePool(context.Background(), domain.Pair{Base: "SWAP.HIVE", Quote: "NOPE"}); ok {
		t.Error("expected failure when no search ever matches")
	}
	if fake.queries != 4*defaultSearchRetries {
		t.Errorf("queries = %d, want %d", fake.queries, 4*defaultSearchRetries)
	}
}

func TestResolvePoolZeroSharesStopsRetrying(t *testing.T) {
	empty := leoPool
	empty.TotalShares = qty("0")
	fake := &fakeEngine{pools: []engine.PoolRecord{empty}}
	r := newTestResolver(t, fake)

	if _, ok := r.ResolvePool(context.Background(), domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"}); ok {
		t.Error("pool with zero total shares must resolve as absent")
	}
	if fake.queries != 1 {
		t.Errorf("queries = %d, want 1 (no retry after a definitive match)", fake.queries)
	}
}

func TestResolvePoolCached(t *testing.T) {
	fake := &fakeEngine{pools: []engine.PoolRecord{leoPool}}
	r := newTestResolver(t, fake)
	pair := domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"}

	r.ResolvePool(context.Background(), pair)
	queries := fake.queries

	r2 := NewResolver(fake, r.cache)
	if _, ok := r2.ResolvePool(context.Background(), pair); !ok {
		t.Fatal("cached pool not found")
	}
	if fake.queries != queries {
		t.Errorf("cached resolve hit the network: %d -> %d queries", queries, fake.queries)
	}
}

func TestResetRefetchesExpiredReserves(t *testing.T) {
	fake := &fakeEngine{pools: []engine.PoolRecord{leoPool}}
	r := newTestResolver(t, fake)
	// A cache that expires everything immediately, as after a long idle
	// stretch between runs.
	r.cache = cache.New[domain.PoolReserves](filepath.Join(t.TempDir(), "pools.json"), time.Nanosecond)
	pair := domain.Pair{Base: "SWAP.HIVE", Quote: "LEO"}

	r.ResolvePool(context.Background(), pair)
	queries := fake.queries

	// Within a run the memo short-circuits; a new run must not.
	r.ResolvePool(context.Background(), pair)
	if fake.queries != queries {
		t.Fatalf("memoized resolve hit the network: %d -> %d", queries, fake.queries)
	}
	r.Reset()
	r.ResolvePool(context.Background(), pair)
	if fake.queries == queries {
		t.Error("resolve after reset served stale reserves from memory")
	}
}

func TestPositions(t *testing.T) {
	fake := &fakeEngine{positions: []engine.PositionRecord{
		{ID: 1, TokenPair: "SWAP.HIVE:LEO", Shares: qty("12.5")},
		{ID: 2, TokenPair: "SWAP.HIVE:SPS", Shares: qty("0")},
		{ID: 3, TokenPair: "garbage", Shares: qty("3")},
		{ID: 4, TokenPair: "SWAP.HIVE:BEE", Shares: qty("-1")},
	}}
	r := newTestResolver(t, fake)

	got := r.Positions(context.Background(), "alice")
	if len(got) != 1 {
		t.Fatalf("positions = %d, want 1 (zero, malformed and negative dropped)", len(got))
	}
	if got[0].Pair.String() != "SWAP.HIVE:LEO" || got[0].PoolID != "1" {
		t.Errorf("position = %+v", got[0])
	}
	if got[0].Shares.String() != "12.5" {
		t.Errorf("shares = %s, want 12.5", got[0].Shares)
	}
}
