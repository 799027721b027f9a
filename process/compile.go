// Package process implements program subcommands.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"cvstyle/common"
	"cvstyle/config"
	"cvstyle/misc"
	"cvstyle/state"
)

// Compile builds stylesheets of requested engines from configured token table.
func Compile(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("compile")

	dst, err := destination(cmd.Args().Get(0), env.Cfg.Output.Directory)
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 1 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}
	env.Overwrite = cmd.Bool("overwrite")

	engines, err := selectEngines(cmd.StringSlice("engine"), env.Cfg.Engines.Enabled, log)
	if err != nil {
		return err
	}

	log.Info("Compilation starting", zap.String("destination", dst), zap.Stringers("engines", engines))
	defer func(start time.Time) {
		log.Info("Compilation completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	_, err = compile(ctx, env, engines, dst, log)
	return err
}

// selectEngines parses engine names from command line, configured engines are
// used when none were given.
func selectEngines(names []string, enabled []common.Engine, log *zap.Logger) ([]common.Engine, error) {
	if len(names) == 0 {
		return enabled, nil
	}
	engines := make([]common.Engine, 0, len(names))
	for _, n := range names {
		e, err := common.ParseEngine(n)
		if err != nil {
			return nil, fmt.Errorf("unknown engine requested (supported: %s): %w", strings.Join(common.EngineNames(), ", "), err)
		}
		if !slices.Contains(enabled, e) {
			log.Debug("Engine is not enabled in configuration, compiling anyway", zap.Stringer("engine", e))
		}
		engines = append(engines, e)
	}
	return engines, nil
}

// compile writes one stylesheet per engine into dst and returns written file
// names. Engines fail independently, everything that compiled is written.
func compile(ctx context.Context, env *state.LocalEnv, engines []common.Engine, dst string, log *zap.Logger) ([]string, error) {
	b, err := env.Stylesheets()
	if err != nil {
		return nil, err
	}

	payloads, berr := b.BuildAll(ctx, engines...)
	for _, e := range multierr.Errors(berr) {
		log.Error("Unable to compile stylesheet", zap.Error(e))
	}

	name := tableName(env.Cfg.Tokens.Path)
	var written []string
	for _, engine := range engines {
		p, ok := payloads[engine]
		if !ok {
			continue
		}
		fname, err := env.Cfg.Output.OutputName(config.NameValues{
			Name:    name,
			Engine:  engine.String(),
			Tokens:  b.Key(),
			Version: misc.GetVersion(),
		}, engine.Ext())
		if err != nil {
			return written, err
		}
		out := filepath.Join(dst, fname)
		if err := prepareOutput(out, env.Overwrite, log); err != nil {
			berr = multierr.Append(berr, err)
			continue
		}
		if err := os.WriteFile(out, p.Data, 0644); err != nil {
			berr = multierr.Append(berr, fmt.Errorf("unable to write stylesheet: %w", err))
			continue
		}
		log.Info("Stylesheet written", zap.Stringer("engine", engine), zap.String("file", out), zap.Int("size", len(p.Data)))
		env.Rpt.Store("stylesheets/"+fname, out)
		written = append(written, out)
	}
	if berr != nil {
		return written, fmt.Errorf("unable to compile all stylesheets: %w", berr)
	}
	return written, nil
}

// tableName is the base name of compiled stylesheets.
func tableName(path string) string {
	if len(path) == 0 {
		return misc.GetAppName()
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// destination resolves output directory: command line wins over
// configuration, current directory is used when both are empty.
func destination(arg, configured string) (dst string, err error) {
	switch {
	case len(arg) > 0:
		dst = arg
	case len(configured) > 0:
		dst = configured
	default:
		if dst, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return "", fmt.Errorf("unable to create output directory: %w", err)
	}
	return dst, nil
}

var errOutputExists = errors.New("output file already exists")

// prepareOutput refuses to clobber existing files unless asked to.
func prepareOutput(out string, overwrite bool, log *zap.Logger) error {
	if _, err := os.Stat(out); err == nil {
		if !overwrite {
			return fmt.Errorf("%w: %s", errOutputExists, out)
		}
		log.Warn("Overwriting existing file", zap.String("file", out))
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}
