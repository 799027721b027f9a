package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"cvstyle/assemble"
	"cvstyle/common"
	"cvstyle/config"
	"cvstyle/docx"
	"cvstyle/misc"
	"cvstyle/reconcile"
	"cvstyle/state"
	"cvstyle/styling"
)

// Result of processing single document.
type Result struct {
	Source    string            `yaml:"source"`
	Output    string            `yaml:"output,omitempty"`
	Error     string            `yaml:"error,omitempty"`
	Reconcile *reconcile.Report `yaml:"reconcile,omitempty"`
}

// Reconcile repairs bullet numbering of existing documents.
func Reconcile(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("reconcile")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	dst, err := destination(cmd.Args().Get(1), env.Cfg.Output.Directory)
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}
	env.Overwrite = cmd.Bool("overwrite")

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	results, err := reconcilePath(ctx, env, src, dst, log)
	if fname := cmd.String("report"); len(fname) > 0 {
		if werr := writeResults(fname, results); werr != nil {
			log.Error("Unable to write processing report", zap.String("file", fname), zap.Error(werr))
		}
	}
	return err
}

func writeResults(fname string, results []Result) error {
	data, err := yaml.Marshal(results)
	if err != nil {
		return err
	}
	return os.WriteFile(fname, data, 0644)
}

// reconcilePath processes a single document or every document under
// directory. Failures of individual documents inside directory are logged and
// do not stop processing.
func reconcilePath(ctx context.Context, env *state.LocalEnv, src, dst string, log *zap.Logger) ([]Result, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return nil, fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if !fi.IsDir() {
		ok, err := isDocumentFile(src)
		if err != nil {
			return nil, fmt.Errorf("unable to check file type: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("input was not recognized as document (%s)", src)
		}
		res := reconcileDocument(ctx, env, src, filepath.Base(src), dst, log)
		if len(res.Error) > 0 {
			return []Result{res}, errors.New(res.Error)
		}
		return []Result{res}, nil
	}

	var results []Result
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		ok, err := isDocumentFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !ok {
			log.Debug("Skipping file, not recognized as document", zap.String("file", path))
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, src), string(filepath.Separator))
		res := reconcileDocument(ctx, env, path, rel, dst, log)
		if len(res.Error) > 0 {
			log.Error("Unable to process file", zap.String("file", path), zap.String("error", res.Error))
		}
		results = append(results, res)
		return nil
	})
	if err == nil && len(results) == 0 {
		log.Debug("Nothing to process", zap.String("dir", src))
	}
	return results, err
}

// reconcileDocument processes single document. "rel" is the source path
// relative to the processed directory, or base name for a single file.
func reconcileDocument(ctx context.Context, env *state.LocalEnv, src, rel, dst string, log *zap.Logger) (res Result) {
	res.Source = src

	log.Info("Reconciliation starting", zap.String("from", src))
	defer func(start time.Time) {
		if r := recover(); r != nil {
			log.Error("Reconciliation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.ByteString("stack", debug.Stack()))
			res.Error = fmt.Sprintf("reconciliation panic: %v", r)
			return
		}
		if len(res.Error) == 0 {
			log.Info("Reconciliation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", res.Output))
		}
	}(time.Now())

	out, report, err := repairDocument(ctx, env, src, rel, dst, log)
	res.Output, res.Reconcile = out, report
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func repairDocument(ctx context.Context, env *state.LocalEnv, src, rel, dst string, log *zap.Logger) (string, *reconcile.Report, error) {
	if err := env.Rpt.StoreCopy("input/"+filepath.ToSlash(rel), src); err != nil {
		log.Warn("Unable to store input in debug report", zap.Error(err))
	}

	doc, err := docx.Open(src, log)
	if err != nil {
		return "", nil, err
	}

	if env.Cfg.Document.ReplaceStyles {
		b, err := env.Stylesheets()
		if err != nil {
			return "", nil, err
		}
		p, err := b.Build(ctx, common.EngineWordProcessing)
		if err != nil {
			return "", nil, fmt.Errorf("unable to compile styles: %w", err)
		}
		doc.SetStyles(p.Data)
	}

	var catalog *styling.Catalog
	if data := doc.Styles(); data != nil {
		if catalog, err = styling.LoadCatalog(data); err != nil {
			log.Warn("Unable to read document styles, style checks disabled", zap.Error(err))
			catalog = nil
		}
	}

	opts, err := sessionOptions(&env.Cfg.Document)
	if err != nil {
		return "", nil, err
	}
	session, err := assemble.NewSession(doc, catalog, opts, log)
	if err != nil {
		return "", nil, err
	}
	report, err := session.Finish()
	if err != nil {
		return "", nil, err
	}
	for _, f := range report.Failures {
		log.Warn("Paragraph was not repaired", zap.String("paragraph", f.Paragraph), zap.String("reason", f.Reason))
	}

	name := filepath.Base(rel)
	fname, err := env.Cfg.Output.OutputName(config.NameValues{
		Name:    strings.TrimSuffix(name, filepath.Ext(name)),
		Version: misc.GetVersion(),
	}, filepath.Ext(name))
	if err != nil {
		return "", report, err
	}
	out := filepath.Join(dst, filepath.Dir(rel), fname)
	if err := prepareOutput(out, env.Overwrite, log); err != nil {
		return "", report, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return "", report, fmt.Errorf("unable to create output directory: %w", err)
	}
	if err := doc.Save(out); err != nil {
		return "", report, err
	}

	if env.Rpt != nil {
		key := filepath.ToSlash(rel)
		env.Rpt.StoreData("dump/"+key+".txt", []byte(doc.Dump()))
		if err := env.Rpt.StoreYAML("reconcile/"+key+".yaml", report); err != nil {
			log.Warn("Unable to store reconciliation report", zap.Error(err))
		}
		env.Rpt.Store("result/"+key, out)
	}
	return out, report, nil
}

// sessionOptions converts document configuration.
func sessionOptions(conf *config.DocumentConfig) (assemble.Options, error) {
	bullet, text, err := conf.Positions()
	if err != nil {
		return assemble.Options{}, err
	}
	return assemble.Options{
		Reconcile: reconcile.Options{
			Roles:          conf.BulletRoles,
			Glyphs:         conf.Glyphs,
			BulletPosition: bullet,
			TextPosition:   text,
			Budget:         conf.Budget,
		},
		StripShadowing: conf.StripShadowing,
		ManualBullets:  conf.ManualBullets,
	}, nil
}
