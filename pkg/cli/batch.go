package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/mchmarny/pricer/pkg/predict"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	dirMode        = 0700
	outputFileMode = 0600
	outputSuffix   = "_predictions.csv"
)

var (
	fileFlag = &cli.StringSliceFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "CSV file to score (can be specified multiple times)",
		Required: true,
	}

	outFlag = &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Output directory (default: current directory)",
		Value:   ".",
	}

	strictFlag = &cli.BoolFlag{
		Name:  "strict",
		Usage: "Reject rows with feature values outside their range",
	}

	previewFlag = &cli.IntFlag{
		Name:  "preview",
		Usage: "Number of scored rows to include in the output (default: config preview_rows)",
	}

	batchCmd = &cli.Command{
		Name:    "batch",
		Aliases: []string{"b"},
		Usage:   "Score every row of one or more CSV files",
		UsageText: `pricer batch --file houses.csv                      # writes ./batch_predictions.csv
   pricer batch --file a.csv --file b.csv --out results  # writes results/a_predictions.csv and results/b_predictions.csv
   pricer batch --file houses.csv --strict             # also check feature ranges`,
		HideHelpCommand: true,
		Action:          cmdBatch,
		Flags: []cli.Flag{
			fileFlag,
			outFlag,
			strictFlag,
			previewFlag,
		},
	}
)

// BatchSummary describes one scored file.
type BatchSummary struct {
	Input    string       `json:"input" yaml:"input"`
	Output   string       `json:"output" yaml:"output"`
	Rows     int          `json:"rows" yaml:"rows"`
	Mean     float64      `json:"mean_prediction" yaml:"mean_prediction"`
	Duration string       `json:"duration" yaml:"duration"`
	Preview  *table.Table `json:"preview,omitempty" yaml:"preview,omitempty"`
}

func cmdBatch(ctx context.Context, cmd *cli.Command) error {
	files := cmd.StringSlice(fileFlag.Name)
	if len(files) == 0 {
		return cli.ShowSubcommandHelp(cmd)
	}

	cfg := getConfig(cmd)
	sc, err := newScorer(cfg, predict.WithStrictBatch(cmd.Bool(strictFlag.Name)))
	if err != nil {
		return err
	}

	preview := cmd.Int(previewFlag.Name)
	if preview <= 0 {
		preview = cfg.Config.PreviewRows
	}

	outDir := cmd.String(outFlag.Name)
	if err := os.MkdirAll(outDir, dirMode); err != nil {
		return fmt.Errorf("creating output dir %s: %w", outDir, err)
	}

	list, err := scoreFiles(ctx, sc, files, outDir, preview)
	if err != nil {
		return err
	}

	if err := encode(list); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

// scoreFiles scores each file independently and concurrently. The first
// failure cancels the files not yet started.
func scoreFiles(ctx context.Context, sc *scorer, files []string, outDir string, preview int) ([]*BatchSummary, error) {
	outs, err := outputPaths(files, outDir)
	if err != nil {
		return nil, err
	}

	list := make([]*BatchSummary, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := scoreFile(sc, f, outs[i], preview)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			list[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return list, nil
}

func scoreFile(sc *scorer, in, out string, preview int) (*BatchSummary, error) {
	start := time.Now()
	slog.Debug("scoring file", "input", in)

	r, err := os.Open(in)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer r.Close()

	res, err := sc.batch(r, filepath.Base(in))
	if err != nil {
		return nil, err
	}

	b, err := table.ToDelimitedText(res.Table)
	if err != nil {
		return nil, fmt.Errorf("exporting result: %w", err)
	}
	if err := os.WriteFile(out, b, outputFileMode); err != nil {
		return nil, fmt.Errorf("writing %s: %w", out, err)
	}

	slog.Info("file scored", "input", in, "output", out, "rows", res.Table.Len())
	return &BatchSummary{
		Input:    in,
		Output:   out,
		Rows:     res.Table.Len(),
		Mean:     res.Mean(),
		Duration: time.Since(start).String(),
		Preview:  previewOf(res.Table, preview),
	}, nil
}

func previewOf(t *table.Table, n int) *table.Table {
	if n <= 0 {
		return nil
	}
	return t.Head(n)
}

// outputPaths maps every input to its output file and fails when two
// inputs would write the same file.
func outputPaths(files []string, outDir string) ([]string, error) {
	outs := make([]string, len(files))
	seen := make(map[string]string, len(files))
	for i, f := range files {
		out := filepath.Join(outDir, outputName(f, len(files)))
		if prev, ok := seen[out]; ok {
			return nil, fmt.Errorf("%s and %s both write %s, rename one of them", prev, f, out)
		}
		seen[out] = f
		outs[i] = out
	}
	return outs, nil
}

// outputName is batch_predictions.csv for a single input and
// <name>_predictions.csv when several files are scored together.
func outputName(in string, count int) string {
	if count <= 1 {
		return table.FileName
	}
	base := filepath.Base(in)
	return strings.TrimSuffix(base, filepath.Ext(base)) + outputSuffix
}
