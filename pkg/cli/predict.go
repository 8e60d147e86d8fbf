package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/predict"
	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/mchmarny/pricer/pkg/table"
	"github.com/urfave/cli/v3"
)

var (
	noDomainCheckFlag = &cli.BoolFlag{
		Name:  "no-domain-check",
		Usage: "Skip the feature range checks",
	}

	clampFlag = &cli.BoolFlag{
		Name:  "clamp",
		Usage: "Move out of range values to the nearest bound before scoring",
	}

	predictCmd = &cli.Command{
		Name:    "predict",
		Aliases: []string{"p"},
		Usage:   "Predict the median home value for a single set of features",
		UsageText: `pricer predict --RM 6.5 --LSTAT 4.98         # unspecified features use their defaults
   pricer predict --CRIM 0.00632 --ZN 18 --CHAS 0   # override any feature
   pricer predict --NOX 1.5 --clamp               # NOX is scored as 1`,
		HideHelpCommand: true,
		Action:          cmdPredict,
		Flags:           append(featureFlags(schema.Boston()), noDomainCheckFlag, clampFlag),
	}
)

// SinglePrediction is the output of the predict command.
type SinglePrediction struct {
	Model      model.Info         `json:"model" yaml:"model"`
	Features   map[string]float64 `json:"features" yaml:"features"`
	Prediction float64            `json:"prediction" yaml:"prediction"`
}

// featureFlags creates one float flag per feature, defaulting to the form values.
func featureFlags(s *schema.Schema) []cli.Flag {
	flags := make([]cli.Flag, 0, s.Len())
	for _, f := range s.Features() {
		flags = append(flags, &cli.FloatFlag{
			Name:  f.Name,
			Usage: fmt.Sprintf("%s %s", strings.TrimSuffix(f.Description, "."), f.Domain),
			Value: f.Default,
		})
	}
	return flags
}

func cmdPredict(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)

	sc, err := newScorer(cfg, predict.WithSingleDomainCheck(!cmd.Bool(noDomainCheckFlag.Name)))
	if err != nil {
		return err
	}

	rec := make(table.Record, sc.runner.Schema().Len())
	for _, name := range sc.runner.Schema().RequiredFields() {
		rec[name] = cmd.Float(name)
	}
	if cmd.Bool(clampFlag.Name) {
		rec = sc.runner.Schema().Clamp(rec)
	}

	p, err := sc.single(rec, "cli")
	if err != nil {
		return fmt.Errorf("predicting: %w", err)
	}

	res := &SinglePrediction{
		Model:      sc.runner.Adapter().Model(),
		Features:   rec,
		Prediction: p,
	}
	if err := encode(res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}
