package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/meghashyamc/iiifsearch/config"
	"github.com/meghashyamc/iiifsearch/flatten"
	"github.com/spf13/cobra"
)

const kindDescriptive = "descriptive"

var (
	flattenFile string
	flattenKind string
)

// flattenCmd prints the records a resource would be indexed as, without
// touching any store.
var flattenCmd = &cobra.Command{
	Use:   "flatten",
	Short: "Print the records flattened from a resource file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(env)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		raw, err := os.ReadFile(flattenFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", flattenFile, err)
		}
		var resource map[string]any
		if err := json.Unmarshal(raw, &resource); err != nil {
			return fmt.Errorf("failed to decode %s: %w", flattenFile, err)
		}

		drafts, err := flattenResource(flatten.New(flatten.Config{DefaultLanguage: cfg.GetDefaultLanguage()}), flattenKind, resource)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(drafts)
	},
}

func init() {
	flattenCmd.Flags().StringVar(&flattenFile, "file", "", "JSON file holding the resource")
	flattenCmd.Flags().StringVar(&flattenKind, "kind", "", "descriptive, ocr or capturemodel; detected from the resource when empty")
	flattenCmd.MarkFlagRequired("file")
}

func flattenResource(flattener *flatten.Flattener, kind string, resource map[string]any) ([]flatten.Draft, error) {
	if kind == "" {
		if kind = flatten.IdentifyFormat(resource); kind == "" {
			kind = kindDescriptive
		}
	}
	if kind == kindDescriptive {
		return flattener.Descriptive(resource), nil
	}
	return flattener.Model(kind, resource)
}
