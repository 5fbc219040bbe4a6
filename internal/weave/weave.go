// Package weave runs the engine over batches of class files.
//
// Each input is transformed independently, so a fatal error for one class
// marks only that entry as failed. Outputs are written only for inputs that
// succeeded. When a ledger is attached every run and entry is recorded, and
// incremental runs reuse stored outputs for inputs whose fingerprint
// (content plus configuration digest) was already woven.
package weave

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/classweave/internal/engine"
	"github.com/roach88/classweave/internal/metrics"
	"github.com/roach88/classweave/internal/report"
	"github.com/roach88/classweave/internal/store"
)

// DefaultConcurrency bounds in-flight classes when no option is given.
const DefaultConcurrency = 4

// Weaver transforms batches of inputs.
type Weaver struct {
	engine       *engine.Engine
	outDir       string
	concurrency  int
	ledger       *store.Store
	incremental  bool
	metrics      *metrics.Metrics
	ids          store.RunIDGenerator
	now          func() time.Time
	configDigest string
	logger       zerolog.Logger
}

// Option configures a Weaver.
type Option func(*Weaver)

// WithOutputDir sets where outputs are written, mirroring input paths.
// Without it nothing is written.
func WithOutputDir(dir string) Option {
	return func(w *Weaver) { w.outDir = dir }
}

// WithConcurrency bounds how many classes are transformed at once.
func WithConcurrency(n int) Option {
	return func(w *Weaver) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithLedger records runs in s. With incremental set, inputs already woven
// under the same configuration are copied from the ledger.
func WithLedger(s *store.Store, incremental bool) Option {
	return func(w *Weaver) {
		w.ledger = s
		w.incremental = incremental
	}
}

// WithMetrics records per-class outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Weaver) { w.metrics = m }
}

// WithRunIDs sets the run ID source. Default: UUIDv7.
func WithRunIDs(g store.RunIDGenerator) Option {
	return func(w *Weaver) { w.ids = g }
}

// WithClock sets the time source for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Weaver) { w.now = now }
}

// WithConfigDigest tags the run and every fingerprint with the digest of
// the configuration the engine was built from.
func WithConfigDigest(d string) Option {
	return func(w *Weaver) { w.configDigest = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Weaver) { w.logger = l }
}

// New returns a Weaver driving e.
func New(e *engine.Engine, opts ...Option) *Weaver {
	w := &Weaver{
		engine:      e,
		concurrency: DefaultConcurrency,
		ids:         store.UUIDv7Generator{},
		now:         time.Now,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type outcome struct {
	entry  report.ClassReport
	fp     string
	output []byte
}

// Run weaves inputs and returns the run's report. Per-class failures are
// recorded in the report; the returned error is reserved for cancellation,
// ledger and output failures.
func (w *Weaver) Run(ctx context.Context, inputs []Input) (*report.Report, error) {
	runID := w.ids.Generate()
	rep := report.New(runID, w.configDigest, w.now())
	log := w.logger.With().Str("run", runID).Logger()

	if w.ledger != nil {
		err := w.ledger.BeginRun(ctx, store.Run{
			ID:           runID,
			StartedAt:    rep.StartedAt,
			ConfigDigest: w.configDigest,
			ToolVersion:  report.ToolVersion,
		})
		if err != nil {
			return nil, err
		}
	}
	// Past this point a failed run is closed in the ledger before returning.
	abort := func(cause error) (*report.Report, error) {
		if w.ledger == nil {
			return nil, cause
		}
		if err := w.ledger.AbortRun(context.WithoutCancel(ctx), runID, w.now(), cause); err != nil {
			log.Error().Err(err).Msg("abort run")
		}
		log.Warn().Err(cause).Msg("run aborted")
		return nil, cause
	}

	results := make([]outcome, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, err := w.one(gctx, log, in)
			if err != nil {
				return err
			}
			results[i] = o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return abort(err)
	}

	for i, o := range results {
		rep.Add(o.entry)
		if w.ledger == nil {
			continue
		}
		err := w.ledger.WriteEntry(ctx, store.Entry{
			RunID:       runID,
			Seq:         int64(i + 1),
			Fingerprint: o.fp,
			Report:      o.entry,
			Output:      o.output,
		})
		if err != nil {
			return abort(err)
		}
	}

	rep.Finish(w.now())
	if w.ledger != nil {
		digest, err := report.Digest(rep)
		if err != nil {
			return abort(err)
		}
		if err := w.ledger.FinishRun(ctx, rep, digest); err != nil {
			return abort(err)
		}
	}
	log.Info().
		Int("classes", rep.Totals.Classes).
		Int("failed", rep.Totals.Failed).
		Int("injected", rep.Totals.Injected).
		Msg("run finished")
	return rep, nil
}

// one processes a single input. Only I/O and ledger errors are returned.
func (w *Weaver) one(ctx context.Context, log zerolog.Logger, in Input) (outcome, error) {
	data, err := os.ReadFile(in.Source)
	if err != nil {
		return outcome{}, fmt.Errorf("read %s: %w", in.Source, err)
	}
	fp := report.Fingerprint(data, w.configDigest)

	if w.ledger != nil && w.incremental {
		prev, ok, err := w.ledger.Lookup(ctx, fp)
		if err != nil {
			return outcome{}, err
		}
		if ok {
			entry := prev.Report
			entry.Path = in.Path
			entry.Outcome = report.OutcomeCached
			if err := w.write(in.Path, prev.Output); err != nil {
				return outcome{}, err
			}
			log.Debug().Str("path", in.Path).Str("from", prev.RunID).Msg("reused cached output")
			return outcome{entry: entry, fp: fp, output: prev.Output}, nil
		}
	}

	start := time.Now()
	out, err := w.engine.Run(data)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Str("path", in.Path).Err(err).Msg("class failed")
		if w.metrics != nil {
			w.metrics.Observe(nil, elapsed)
		}
		return outcome{entry: report.Failed(in.Path, data, err), fp: fp}, nil
	}
	if w.metrics != nil {
		w.metrics.Observe(out.Result, elapsed)
	}
	for _, warning := range out.Result.Warnings {
		log.Warn().Str("path", in.Path).Msg(warning)
	}
	if err := w.write(in.Path, out.Bytes); err != nil {
		return outcome{}, err
	}
	return outcome{entry: report.FromResult(in.Path, data, out.Bytes, out.Result), fp: fp, output: out.Bytes}, nil
}

func (w *Weaver) write(rel string, data []byte) error {
	if w.outDir == "" {
		return nil
	}
	dst := filepath.Join(w.outDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
