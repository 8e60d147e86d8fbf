package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/mchmarny/pricer/pkg/data"
	"github.com/urfave/cli/v3"
)

var (
	limitFlag = &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of runs to list",
		Value: 20,
	}

	historyCmd = &cli.Command{
		Name:            "history",
		Aliases:         []string{"h"},
		Usage:           "List recent prediction runs",
		HideHelpCommand: true,
		Action:          cmdHistory,
		Flags: []cli.Flag{
			limitFlag,
		},
	}

	errHistoryDisabled = errors.New("history is disabled (set history: true in config.yaml)")
)

// HistoryResult is the output of the history command.
type HistoryResult struct {
	Stats *data.RunStats `json:"stats" yaml:"stats"`
	Runs  []*data.Run    `json:"runs" yaml:"runs"`
}

func cmdHistory(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	if cfg.DB == nil {
		return errHistoryDisabled
	}

	runs, err := data.ListRuns(cfg.DB, cmd.Int(limitFlag.Name))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	stats, err := data.GetRunStats(cfg.DB)
	if err != nil {
		return fmt.Errorf("getting run stats: %w", err)
	}

	if err := encode(&HistoryResult{Stats: stats, Runs: runs}); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}
