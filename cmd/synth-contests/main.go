package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/okian/fightrank/internal/adapters/tablefile"
	"github.com/okian/fightrank/internal/domain/model"
	"github.com/okian/fightrank/internal/synth"
	"github.com/okian/fightrank/pkg/logger"
)

// Output file names.
const (
	contestsFile = "contests.csv"
	auxFile      = "aux.csv"
	truthFile    = "aux_truth.csv"
	seedFile     = "seed.csv"
)

func main() {
	def := synth.DefaultConfig()
	var (
		out        = flag.String("out", "data", "Output directory")
		seed       = flag.Int64("seed", def.Seed, "Random seed")
		fighters   = flag.Int("fighters", def.Fighters, "Number of fighters")
		events     = flag.Int("events", def.Events, "Number of events")
		days       = flag.Int("days", def.Days, "Days spanned by the events")
		tournament = flag.Float64("tournament-rate", def.TournamentRate, "Share of events with a same-day bracket")
		nullRate   = flag.Float64("null-rate", def.NullRate, "Share of unrecorded results and statistics")
		vig        = flag.Float64("vig", def.Vig, "Bookmaker overround")
		auxShare   = flag.Float64("aux-share", 0.5, "Share of contests republished by the auxiliary source")
		seedShare  = flag.Float64("seed-share", 0.05, "Share of the true crosswalk written as seed")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get().Named("synth")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := def
	cfg.Seed, cfg.Fighters, cfg.Events, cfg.Days = *seed, *fighters, *events, *days
	cfg.TournamentRate, cfg.NullRate, cfg.Vig = *tournament, *nullRate, *vig

	if err := run(ctx, cfg, *out, *auxShare, *seedShare, log); err != nil {
		log.Error(ctx, "synth failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg synth.Config, out string, auxShare, seedShare float64, log logger.Logger) error {
	ds, err := synth.Generate(ctx, cfg)
	if err != nil {
		return err
	}
	aux, truth := synth.AuxView(ds, auxShare, cfg.Seed+1)

	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	entries := crosswalk(truth)
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{contestsFile, func(w io.Writer) error { return tablefile.WriteContests(w, ds.Contests) }},
		{auxFile, func(w io.Writer) error { return tablefile.WriteContests(w, aux) }},
		{truthFile, func(w io.Writer) error { return tablefile.WriteCrosswalk(w, entries) }},
		{seedFile, func(w io.Writer) error {
			n := int(float64(len(entries)) * seedShare)
			return tablefile.WriteCrosswalk(w, entries[:n])
		}},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(out, f.name), f.write); err != nil {
			return err
		}
	}

	log.Info(ctx, "synthetic league written",
		logger.String("dir", out),
		logger.Int("fighters", len(ds.Fighters)),
		logger.Int("contests", len(ds.Contests)),
		logger.Int("aux_contests", len(aux)),
	)
	return nil
}

func crosswalk(truth map[string]string) []model.CrosswalkEntry {
	out := make([]model.CrosswalkEntry, 0, len(truth))
	for aux, canon := range truth {
		out = append(out, model.CrosswalkEntry{AuxID: aux, CanonID: canon})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuxID < out[j].AuxID })
	return out
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
