package main

import (
	"fmt"
	"math"
	"os"

	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/render"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var infoCmd = &cobra.Command{
	Use:   "info <file.obj|file.stl|bundle.json>",
	Short: "Display mesh statistics of a model or bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	filename := args[0]
	f, err := render.FormatFromPath(filename)
	var mesh depthmesh.Mesh
	var b *depthmesh.Bundle
	switch {
	case err != nil:
		bundle, err := loadBundle(filename)
		if err != nil {
			return err
		}
		b = &bundle
		mesh = cfg.Assembler.Assembler().Build(bundle).Mesh()
	case f == render.FormatOBJ || f == render.FormatSTL:
		fp, err := os.Open(filename)
		if err != nil {
			return err
		}
		defer fp.Close()
		if f == render.FormatOBJ {
			mesh, err = render.ReadOBJ(fp)
		} else {
			mesh, err = render.ReadSTL(fp)
		}
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("info does not read %s files", f)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Mesh Information")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "File: %s\n", filename)
	if b != nil {
		fmt.Fprintf(w, "Object: %s (%s)\n", b.ObjectType, b.Shape)
		fmt.Fprintf(w, "Depth grid: %dx%d\n", b.DepthGrid.Rows(), b.DepthGrid.Cols())
		fmt.Fprintf(w, "Hotspots: %d\n", len(b.Features))
	}
	fmt.Fprintf(w, "\nVertices: %d\n", mesh.VertexCount())
	fmt.Fprintf(w, "Triangles: %d\n", mesh.TriangleCount())
	if mesh.Empty() {
		return nil
	}
	bb := mesh.Bounds()
	size := r3.Sub(bb.Max, bb.Min)
	fmt.Fprintf(w, "Surface area: %.6f\n\n", surfaceArea(mesh))
	fmt.Fprintln(w, "Bounding Box:")
	fmt.Fprintf(w, "  Min: %s\n", formatVec(bb.Min))
	fmt.Fprintf(w, "  Max: %s\n", formatVec(bb.Max))
	fmt.Fprintf(w, "  Size: %s\n", formatVec(size))
	fmt.Fprintf(w, "  Diagonal: %.6f\n", r3.Norm(size))
	return nil
}

func surfaceArea(m depthmesh.Mesh) float64 {
	var area float64
	for i := 0; i < m.TriangleCount(); i++ {
		t := m.Triangle(i)
		area += 0.5 * r3.Norm(r3.Cross(r3.Sub(t[1], t[0]), r3.Sub(t[2], t[0])))
	}
	if math.IsNaN(area) {
		return 0
	}
	return area
}

func formatVec(v r3.Vec) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
