package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/convert"
	"github.com/soypat/depthmesh/render"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var buildFlags struct {
	output string
	format string
	title  string
}

var buildCmd = &cobra.Command{
	Use:   "build <bundle.json>",
	Short: "Assemble a model from an analysis bundle and export it",
	Long: `Build reads an analysis bundle, assembles its mesh and writes it in the
format given by --format or by the output file extension. Unusable
bundle fields fall back to defaults; an unparsable bundle produces the
synthesized fallback model.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.StringVarP(&buildFlags.output, "output", "o", "", "output file or directory (default: generated name in the working directory)")
	f.StringVarP(&buildFlags.format, "format", "f", "", "obj, stl, gltf or glb (default: from output extension, else glb)")
	f.StringVar(&buildFlags.title, "title", "", "model title used for names (default: object type)")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	b, err := loadBundle(args[0])
	if err != nil {
		return err
	}
	out, err := buildBundle(b, buildFlags.title, buildFlags.output, buildFlags.format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// loadBundle reads and tolerantly decodes a bundle file.
func loadBundle(path string) (depthmesh.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return depthmesh.Bundle{}, err
	}
	b := depthmesh.ParseBundle(string(data))
	if b.Synthesized {
		log.Warn("bundle unparsable, using synthesized model", zap.String("path", path))
	} else if len(b.Recovered) > 0 {
		log.Info("bundle fields replaced by defaults", zap.String("path", path), zap.Strings("fields", b.Recovered))
	}
	return b, nil
}

// resolveOutput picks the export format and destination path. An empty
// output or an existing directory gets a generated file name.
func resolveOutput(output, format, title string) (render.Format, string, error) {
	var f render.Format
	var err error
	switch {
	case format != "":
		f, err = render.ParseFormat(format)
	case output != "" && filepath.Ext(output) != "":
		f, err = render.FormatFromPath(output)
	default:
		f = render.FormatGLB
	}
	if err != nil {
		return render.FormatUnknown, "", err
	}
	if output == "" {
		return f, render.FileName(title, f, time.Now()), nil
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return f, filepath.Join(output, render.FileName(title, f, time.Now())), nil
	}
	if strings.HasSuffix(output, string(filepath.Separator)) {
		if err := os.MkdirAll(output, 0755); err != nil {
			return render.FormatUnknown, "", err
		}
		return f, filepath.Join(output, render.FileName(title, f, time.Now())), nil
	}
	return f, output, nil
}

// buildBundle assembles b and writes the export, returning the path written.
func buildBundle(b depthmesh.Bundle, title, output, format string) (string, error) {
	if title == "" {
		title = b.ObjectType
	}
	f, path, err := resolveOutput(output, format, title)
	if err != nil {
		return "", err
	}
	start := time.Now()
	model := cfg.Assembler.Assembler().Build(b)
	art, err := convert.ExportModel(model, title, f, start)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, art.Data, 0644); err != nil {
		return "", err
	}
	mesh := model.Mesh()
	log.Info("model written",
		zap.String("path", path),
		zap.Stringer("shape", model.Shape),
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Duration("took", time.Since(start)),
	)
	return path, nil
}
