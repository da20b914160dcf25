package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/gateway"
	"github.com/soypat/depthmesh/internal/config"
	"github.com/spf13/cobra"
)

var analyzeFlags struct {
	output  string
	offline bool
	grid    int
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image-url|path>",
	Short: "Analyze an image into a bundle",
	Long: `Analyze sends the image to the analysis service and writes the resulting
bundle as JSON. With --offline no service is used: the depth grid comes
from image luminance and the shape is guessed from the file name.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVarP(&analyzeFlags.output, "output", "o", "", "output bundle file (default: stdout)")
	f.BoolVar(&analyzeFlags.offline, "offline", false, "derive the bundle locally from image luminance")
	f.IntVar(&analyzeFlags.grid, "grid", depthmesh.FallbackGridSize, "offline depth grid size")
	f.String(config.FlagAPIKey, "", "analysis service API key")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzer(offline bool, gridSize int) (gateway.Analyzer, error) {
	if offline {
		return &gateway.Offline{GridSize: gridSize, Logger: log}, nil
	}
	if cfg.Gateway.APIKey == "" {
		return nil, errors.New("no API key configured: set " + config.EnvPrefix + "GATEWAY_API_KEY, --api-key or use --offline")
	}
	return gateway.New(cfg.Gateway, log), nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	an, err := analyzer(analyzeFlags.offline, analyzeFlags.grid)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := an.Analyze(ctx, args[0])
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if analyzeFlags.output == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(analyzeFlags.output, data, 0644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), analyzeFlags.output)
	return nil
}

// loadGridSource reads a bundle file, or analyzes an image offline when
// the path is not JSON.
func loadGridSource(path string, gridSize int) (depthmesh.Bundle, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return loadBundle(path)
	}
	off := &gateway.Offline{GridSize: gridSize, Logger: log}
	b, err := off.Analyze(context.Background(), path)
	if err != nil {
		return depthmesh.Bundle{}, err
	}
	return *b, nil
}
