// Package state defines shared program state.
package state

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"cvstyle/cache"
	"cvstyle/config"
	"cvstyle/stylesheet"
	"cvstyle/tokens"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// set by subcommands from command line
	Overwrite bool

	store    *cache.Store
	builder  *stylesheet.Builder
	tokensID string

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, &LocalEnv{start: time.Now()})
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
	}
}

// Stylesheets returns builder for configured token table. Table and
// persistent cache are opened on first use and shared by everything running
// in this environment.
func (e *LocalEnv) Stylesheets() (*stylesheet.Builder, error) {
	if e.builder != nil {
		return e.builder, nil
	}

	log := e.Log
	if log == nil {
		log = zap.NewNop()
	}

	table := tokens.Default()
	e.tokensID = "built-in"
	if path := e.Cfg.Tokens.Path; len(path) > 0 {
		t, err := tokens.LoadFile(path)
		if err != nil {
			return nil, err
		}
		table, e.tokensID = t, path
		e.Rpt.Store("tokens/"+filepath.Base(path), path)
	}

	if path := e.Cfg.Cache.Path; len(path) > 0 {
		store, err := cache.Open(path, log)
		if err != nil {
			return nil, fmt.Errorf("unable to open stylesheet cache: %w", err)
		}
		if age := e.Cfg.Cache.MaxAge; age > 0 {
			if n, err := store.Prune(time.Now().Add(-age)); err != nil {
				log.Warn("Unable to prune stylesheet cache", zap.Error(err))
			} else if n > 0 {
				log.Debug("Stylesheet cache pruned", zap.Int("entries", n))
			}
		}
		e.store = store
	}

	e.builder = stylesheet.NewBuilder(table, stylesheet.Options{
		Fallbacks: e.Cfg.Tokens.Fallbacks,
		Direction: e.Cfg.Engines.Direction,
		Groups:    e.Cfg.Tokens.Groups,
		Store:     e.store,
	}, log)

	log.Debug("Token table loaded", zap.String("source", e.tokensID), zap.String("version", table.Version()), zap.String("key", table.Key()))
	return e.builder, nil
}

// TokensSource names token table used by Stylesheets.
func (e *LocalEnv) TokensSource() string {
	return e.tokensID
}

// Close releases resources opened on demand.
func (e *LocalEnv) Close() error {
	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store, e.builder = nil, nil
	return err
}
