package tablefile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/okian/fightrank/internal/domain/backtest"
	"github.com/okian/fightrank/internal/domain/isomorphism"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/domain/portfolio"
	"github.com/okian/fightrank/internal/domain/rating"
	"github.com/okian/fightrank/pkg/logger"
)

// Output file names under the output directory.
const (
	CrosswalkFile = "crosswalk.csv"
	StraysFile    = "strays.csv"
	BacktestFile  = "backtest.csv"
	LedgerFile    = "ledger.csv"
	CurveFile     = "equity.csv"
)

// SnapshotFile names the snapshot of one fitted target.
func SnapshotFile(target string) string { return "snapshot_" + target + ".csv" }

// Paths locates the inputs and the output directory. Empty input paths
// are optional inputs that are absent.
type Paths struct {
	Contests  string
	Canon     string
	Aux       string
	Crosswalk string
	Aliases   string
	OutputDir string
}

// Dir is a file-backed storage for the pipeline.
type Dir struct {
	paths  Paths
	logger logger.Logger
}

// Option configures a Dir.
type Option func(*Dir)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dir) {
		if l != nil {
			d.logger = l
		}
	}
}

// New returns a Dir over paths.
func New(paths Paths, opts ...Option) *Dir {
	d := &Dir{paths: paths, logger: logger.NamedOrNop("tablefile")}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Contests reads the primary contests file. It is required.
func (d *Dir) Contests(ctx context.Context) ([]model.Contest, error) {
	if d.paths.Contests == "" {
		return nil, fmt.Errorf("%w: contests", ErrNoInput)
	}
	return readFile(ctx, d.paths.Contests, ReadContests)
}

// Canon reads the canonical contests of identity resolution.
func (d *Dir) Canon(ctx context.Context) ([]model.Contest, error) {
	return readOptional(ctx, d.paths.Canon, ReadContests)
}

// Aux reads the auxiliary contests of identity resolution.
func (d *Dir) Aux(ctx context.Context) ([]model.Contest, error) {
	return readOptional(ctx, d.paths.Aux, ReadContests)
}

// Seed reads the seed crosswalk.
func (d *Dir) Seed(ctx context.Context) (map[string]string, error) {
	return readOptional(ctx, d.paths.Crosswalk, ReadCrosswalk)
}

// Aliases reads the name alias table.
func (d *Dir) Aliases(ctx context.Context) (map[string]string, error) {
	if d.paths.Aliases == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return isomorphism.LoadAliases(d.paths.Aliases)
}

// SaveResolution writes the crosswalk and the strays.
func (d *Dir) SaveResolution(ctx context.Context, res *isomorphism.Result) error {
	if err := d.write(ctx, CrosswalkFile, func(w io.Writer) error { return WriteCrosswalk(w, res.Entries()) }); err != nil {
		return err
	}
	return d.write(ctx, StraysFile, func(w io.Writer) error { return WriteStrays(w, res) })
}

// SaveSnapshot writes the audit rows of the fit of target.
func (d *Dir) SaveSnapshot(ctx context.Context, target string, snap *rating.Snapshot) error {
	return d.write(ctx, SnapshotFile(target), func(w io.Writer) error { return WriteSnapshot(w, snap) })
}

// SaveBacktest writes the per-fold scores.
func (d *Dir) SaveBacktest(ctx context.Context, rep *backtest.Report) error {
	return d.write(ctx, BacktestFile, func(w io.Writer) error { return WriteBacktest(w, rep) })
}

// SaveSimulation writes the ledger and the equity curve.
func (d *Dir) SaveSimulation(ctx context.Context, res *portfolio.Result) error {
	if err := d.write(ctx, LedgerFile, func(w io.Writer) error { return WriteLedger(w, res) }); err != nil {
		return err
	}
	return d.write(ctx, CurveFile, func(w io.Writer) error { return WriteCurve(w, res) })
}

func (d *Dir) write(ctx context.Context, name string, fn func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.paths.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(d.paths.OutputDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	d.logger.Debug(ctx, "file written", logger.String("path", path))
	return nil
}

func readFile[T any](ctx context.Context, path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func readOptional[T any](ctx context.Context, path string, read func(io.Reader) (T, error)) (T, error) {
	if path == "" {
		var zero T
		return zero, nil
	}
	return readFile(ctx, path, read)
}
