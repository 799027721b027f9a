// Package stylesheet drives compilation of a token table for several engines
// at once.
package stylesheet

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"cvstyle/cache"
	"cvstyle/capability"
	"cvstyle/common"
	"cvstyle/emit"
	"cvstyle/rules"
	"cvstyle/tokens"
	"cvstyle/transform"
)

// EngineError is a failure of one engine. Other engines are not affected.
type EngineError struct {
	Engine common.Engine
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Options of builder.
type Options struct {
	// Fallbacks maps missing groups to base groups, nil means defaults.
	Fallbacks map[string]string
	// Direction overrides writing direction of every engine when set.
	Direction common.Direction
	// Groups limits compilation to listed groups, empty means all.
	Groups []string
	// Store persists payloads between runs, may be nil.
	Store *cache.Store
}

// Builder compiles one token table. Builds are memoized per engine and
// identical concurrent builds are collapsed.
type Builder struct {
	log      *zap.Logger
	table    *tokens.Table
	compiler *rules.Compiler
	pipeline *transform.Pipeline
	opts     Options
	cacheKey string

	flight singleflight.Group
	mu     sync.Mutex
	memo   map[common.Engine]emit.Payload
}

// NewBuilder creates builder for table.
func NewBuilder(table *tokens.Table, opts Options, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		log:      log.Named("stylesheet"),
		table:    table,
		compiler: rules.NewCompiler(table, opts.Fallbacks, log),
		pipeline: transform.New(log),
		opts:     opts,
		cacheKey: fmt.Sprintf("%s-%016x", table.Key(), xxhash.Sum64String(canonicalOptions(opts))),
		memo:     make(map[common.Engine]emit.Payload),
	}
}

// Key identifies token table payloads are built from.
func (b *Builder) Key() string {
	return b.table.Key()
}

// CacheKey identifies payloads in the store. Besides the table it covers
// every option which changes output.
func (b *Builder) CacheKey() string {
	return b.cacheKey
}

// canonicalOptions renders output affecting options so that equivalent
// settings produce the same text.
func canonicalOptions(opts Options) string {
	fallbacks := opts.Fallbacks
	if fallbacks == nil {
		fallbacks = rules.DefaultFallbacks()
	}
	groups := slices.Clone(opts.Groups)
	sort.Sort(natural.StringSlice(groups))
	groups = slices.Compact(groups)

	var sb strings.Builder
	fmt.Fprintf(&sb, "direction=%s\n", opts.Direction)
	fmt.Fprintf(&sb, "groups=%s\n", strings.Join(groups, ","))
	for _, name := range slices.Sorted(maps.Keys(fallbacks)) {
		fmt.Fprintf(&sb, "fallback=%s>%s\n", name, fallbacks[name])
	}
	return sb.String()
}

// Build returns payload for engine.
func (b *Builder) Build(ctx context.Context, engine common.Engine) (emit.Payload, error) {
	b.mu.Lock()
	p, ok := b.memo[engine]
	b.mu.Unlock()
	if ok {
		return p, nil
	}

	ch := b.flight.DoChan(engine.String(), func() (any, error) {
		return b.build(engine)
	})
	select {
	case <-ctx.Done():
		return emit.Payload{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return emit.Payload{}, &EngineError{Engine: engine, Err: res.Err}
		}
		if res.Shared {
			b.log.Debug("Build shared", zap.Stringer("engine", engine))
		}
		return res.Val.(emit.Payload), nil
	}
}

func (b *Builder) build(engine common.Engine) (emit.Payload, error) {
	key := b.table.Key()
	if b.opts.Store != nil {
		p, ok, err := b.opts.Store.Get(b.cacheKey, engine)
		if err != nil {
			b.log.Warn("Unable to read stylesheet cache", zap.Error(err))
		} else if ok {
			b.remember(engine, p)
			return p, nil
		}
	}

	d, err := capability.Lookup(engine)
	if err != nil {
		return emit.Payload{}, err
	}
	if b.opts.Direction != "" {
		d = d.WithDirection(b.opts.Direction)
	}
	rs, err := b.compiler.CompileAll(b.opts.Groups...)
	if err != nil {
		return emit.Payload{}, err
	}
	lowered, err := b.pipeline.RunAll(rs, d)
	if err != nil {
		return emit.Payload{}, err
	}
	em, err := emit.For(engine, b.log)
	if err != nil {
		return emit.Payload{}, err
	}
	p, err := em.Emit(lowered, key)
	if err != nil {
		return emit.Payload{}, err
	}

	if b.opts.Store != nil {
		if err := b.opts.Store.Put(b.cacheKey, p); err != nil {
			b.log.Warn("Unable to write stylesheet cache", zap.Error(err))
		}
	}
	b.remember(engine, p)
	b.log.Debug("Stylesheet built", zap.Stringer("engine", engine), zap.Int("rules", len(lowered)), zap.Int("bytes", len(p.Data)))
	return p, nil
}

func (b *Builder) remember(engine common.Engine, p emit.Payload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.memo[engine] = p
}

// BuildAll builds engines concurrently. Failure of one engine does not
// cancel others: successful payloads are returned together with combined
// error of failed ones.
func (b *Builder) BuildAll(ctx context.Context, engines ...common.Engine) (map[common.Engine]emit.Payload, error) {
	if len(engines) == 0 {
		engines = common.EngineValues()
	}

	var (
		mu       sync.Mutex
		payloads = make(map[common.Engine]emit.Payload, len(engines))
		errs     error
	)
	var eg errgroup.Group
	for _, engine := range engines {
		eg.Go(func() error {
			p, err := b.Build(ctx, engine)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return nil
			}
			payloads[engine] = p
			return nil
		})
	}
	// goroutines never return errors
	_ = eg.Wait()
	return payloads, errs
}
