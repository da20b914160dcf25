package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/render"
	"go.uber.org/zap"
)

// Offline is an Analyzer that needs no analysis service. The depth grid is
// derived from image luminance and the shape is guessed from the image
// name, falling back to a relief.
type Offline struct {
	// HTTP fetches http(s) images. Nil uses http.DefaultClient.
	HTTP *http.Client
	// GridSize is the depth grid resolution. Zero means FallbackGridSize.
	GridSize int
	Logger   *zap.Logger
}

var _ Analyzer = (*Offline)(nil)

// Analyze loads the image at imageURL, which may be an http(s) URL, a
// file URL or a local path.
func (o *Offline) Analyze(ctx context.Context, imageURL string) (*depthmesh.Bundle, error) {
	rc, name, err := o.open(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, err := render.LoadTexture(rc)
	if err != nil {
		return nil, fmt.Errorf("offline analysis of %s: %w", imageURL, err)
	}
	size := o.GridSize
	if size < 2 {
		size = depthmesh.FallbackGridSize
	}
	shape := depthmesh.GuessShape(name)
	if shape == depthmesh.ShapeUnknown {
		shape = depthmesh.ShapeRelief
	}
	b := depthmesh.SynthesizeBundle(shape)
	b.Synthesized = false
	b.DepthGrid = depthmesh.DepthGridFromImage(img, size)
	if title := strings.TrimSuffix(name, path.Ext(name)); title != "" && title != "." && title != "/" {
		b.ObjectType = title
	}
	now := time.Now().UTC()
	b.ProcessedAt = &now
	b.OriginalImageURL = imageURL
	if o.Logger != nil {
		o.Logger.Debug("offline analysis", zap.String("image", imageURL), zap.Stringer("shape", shape), zap.Int("grid", size))
	}
	return &b, nil
}

func (o *Offline) open(ctx context.Context, imageURL string) (io.ReadCloser, string, error) {
	u, err := url.Parse(imageURL)
	if err != nil || u.Scheme == "" || u.Scheme == "file" {
		p := imageURL
		if err == nil && u.Scheme == "file" {
			p = u.Path
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, "", err
		}
		return f, path.Base(strings.ReplaceAll(p, "\\", "/")), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	client := o.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: fetching image: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	return resp.Body, path.Base(u.Path), nil
}
