package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mchmarny/pricer/pkg/config"
	"github.com/mchmarny/pricer/pkg/model"
	"github.com/mchmarny/pricer/pkg/net"
	"github.com/mchmarny/pricer/pkg/predict"
	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/urfave/cli/v3"
)

const defaultArtifactName = "model.yaml"

var (
	urlFlag = &cli.StringFlag{
		Name:     "url",
		Usage:    "URL of the model artifact (YAML or JSON)",
		Required: true,
	}

	activateFlag = &cli.BoolFlag{
		Name:  "activate",
		Usage: "Set the pulled artifact as model_path in config.yaml",
	}

	modelCmd = &cli.Command{
		Name:            "model",
		Aliases:         []string{"m"},
		Usage:           "Inspect or pull model artifacts",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "Show the configured model",
				Action: cmdModelInfo,
			},
			{
				Name:   "pull",
				Usage:  "Download a model artifact into the config directory",
				Action: cmdModelPull,
				Flags: []cli.Flag{
					urlFlag,
					activateFlag,
				},
			},
		},
	}
)

// PullResult is the output of the model pull command.
type PullResult struct {
	Path      string     `json:"path" yaml:"path"`
	Bytes     int64      `json:"bytes" yaml:"bytes"`
	Model     model.Info `json:"model" yaml:"model"`
	Activated bool       `json:"activated" yaml:"activated"`
}

func cmdModelInfo(_ context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	m, err := model.Load(cfg.Config.ModelPath)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}
	if err := encode(m.Info()); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

func cmdModelPull(ctx context.Context, cmd *cli.Command) error {
	cfg := getConfig(cmd)
	url := cmd.String(urlFlag.Name)

	token, err := getRegistryToken(cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to get registry token: %w", err)
	}

	client, err := net.GetOAuthClient(ctx, token)
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	target := filepath.Join(cfg.Dir, artifactName(url))
	n, err := net.Download(ctx, client, url, target)
	if err != nil {
		return fmt.Errorf("downloading model: %w", err)
	}

	m, err := checkArtifact(target)
	if err != nil {
		os.Remove(target)
		return err
	}

	res := &PullResult{Path: target, Bytes: n, Model: m.Info()}
	if cmd.Bool(activateFlag.Name) {
		cfg.Config.ModelPath = target
		if err := config.Save(cfg.Dir, cfg.Config); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		res.Activated = true
		slog.Info("model activated", "path", target)
	}

	if err := encode(res); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}

// checkArtifact loads path and makes sure it can score the Boston schema.
func checkArtifact(path string) (model.Model, error) {
	m, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := predict.NewAdapter(m, schema.Boston()); err != nil {
		return nil, fmt.Errorf("artifact does not fit the feature schema: %w", err)
	}
	return m, nil
}

// artifactName keeps the file name of the URL when it looks like an artifact.
func artifactName(url string) string {
	name := url
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = name[strings.LastIndex(name, "/")+1:]
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return name
	default:
		return defaultArtifactName
	}
}
