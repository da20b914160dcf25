package main

import (
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/soypat/depthmesh/internal/config"
	"github.com/soypat/depthmesh/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var previewFlags struct {
	output  string
	texture string
	noMarks bool
}

var previewCmd = &cobra.Command{
	Use:   "preview <bundle.json>",
	Short: "Render a shaded PNG preview with hotspot markers",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	f := previewCmd.Flags()
	f.StringVarP(&previewFlags.output, "output", "o", "preview.png", "output PNG file")
	f.StringVar(&previewFlags.texture, "texture", "", "image applied through the mesh UVs")
	f.BoolVar(&previewFlags.noMarks, "no-markers", false, "hide hotspot markers")
	f.Int(config.FlagWidth, 0, "image width in pixels")
	f.Int(config.FlagHeight, 0, "image height in pixels")
	f.String(config.FlagColor, "", "fallback material color as #rrggbb")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	b, err := loadBundle(args[0])
	if err != nil {
		return err
	}
	model := cfg.Assembler.Assembler().Build(b)
	opt := cfg.Render.PreviewOptions()
	opt.Lighting = b.Lighting
	if previewFlags.noMarks {
		opt.MarkerSize = -1
	}
	if previewFlags.texture != "" {
		fp, err := os.Open(previewFlags.texture)
		if err != nil {
			return err
		}
		opt.Texture, err = render.LoadTexture(fp)
		fp.Close()
		if err != nil {
			return err
		}
	}
	img, err := render.Preview(model.Mesh(), model.Anchors(), opt)
	if err != nil {
		return err
	}
	fp, err := os.Create(previewFlags.output)
	if err != nil {
		return err
	}
	if err := png.Encode(fp, img); err != nil {
		fp.Close()
		return err
	}
	if err := fp.Close(); err != nil {
		return err
	}
	log.Info("preview written", zap.String("path", previewFlags.output), zap.Int("hotspots", len(b.Features)))
	fmt.Fprintln(cmd.OutOrStdout(), previewFlags.output)
	return nil
}

var depthmapFlags struct {
	output string
	size   int
}

var depthmapCmd = &cobra.Command{
	Use:   "depthmap <bundle.json|image>",
	Short: "Plot a depth grid as a heat map",
	Long: `Depthmap plots the depth grid of a bundle, or the grid derived from an
image's luminance, as a heat map. Hot colors are near the viewer. The
output format follows the file extension (png, svg, pdf, jpg).`,
	Args: cobra.ExactArgs(1),
	RunE: runDepthmap,
}

func init() {
	f := depthmapCmd.Flags()
	f.StringVarP(&depthmapFlags.output, "output", "o", "depth.png", "output file")
	f.IntVar(&depthmapFlags.size, "grid", 32, "grid size when reading an image")
	rootCmd.AddCommand(depthmapCmd)
}

func runDepthmap(cmd *cobra.Command, args []string) error {
	in := args[0]
	b, err := loadGridSource(in, depthmapFlags.size)
	if err != nil {
		return err
	}
	format := "png"
	if i := strings.LastIndexByte(depthmapFlags.output, '.'); i >= 0 {
		format = strings.ToLower(depthmapFlags.output[i+1:])
	}
	fp, err := os.Create(depthmapFlags.output)
	if err != nil {
		return err
	}
	err = render.WriteDepthHeatMap(fp, b.DepthGrid, render.HeatMapOptions{Title: b.ObjectType, Format: format})
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), depthmapFlags.output)
	return nil
}
