package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/pricer/pkg/schema"
	"github.com/urfave/cli/v3"
)

var schemaCmd = &cli.Command{
	Name:            "schema",
	Usage:           "List the features a record must carry, in scoring order",
	HideHelpCommand: true,
	Action:          cmdSchema,
}

// FeatureView is the printable form of a feature.
type FeatureView struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Domain      string  `json:"domain" yaml:"domain"`
	Default     float64 `json:"default" yaml:"default"`
}

func schemaView(s *schema.Schema) []*FeatureView {
	list := make([]*FeatureView, 0, s.Len())
	for _, f := range s.Features() {
		list = append(list, &FeatureView{
			Name:        f.Name,
			Description: f.Description,
			Domain:      f.Domain.String(),
			Default:     f.Default,
		})
	}
	return list
}

func cmdSchema(_ context.Context, _ *cli.Command) error {
	if err := encode(schemaView(schema.Boston())); err != nil {
		return fmt.Errorf("error encoding result: %w", err)
	}
	return nil
}
