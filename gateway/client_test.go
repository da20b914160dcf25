package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/soypat/depthmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL + "/v1", APIKey: "secret"}, zaptest.NewLogger(t))
	c.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return c
}

func TestAnalyzeRequestAndBundle(t *testing.T) {
	var got chatRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		io.WriteString(w, completion("```json\n{\"objectType\":\"Heart\",\"shapeType\":\"heart\",\"features\":[{\"id\":\"a\",\"name\":\"Aorta\",\"position\":{\"x\":0.5,\"y\":0.1}}]}\n```"))
	})
	b, err := c.Analyze(context.Background(), "https://img.example/heart.png")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	parts, ok := got.Messages[1].Content.([]any)
	require.True(t, ok, "user content is a multi part array")
	require.Len(t, parts, 2)
	assert.Equal(t, "https://img.example/heart.png", parts[1].(map[string]any)["image_url"].(map[string]any)["url"])

	assert.Equal(t, depthmesh.ShapeHeart, b.Shape)
	assert.Equal(t, "Heart", b.ObjectType)
	assert.Equal(t, "https://img.example/heart.png", b.OriginalImageURL)
	require.NotNil(t, b.ProcessedAt)
	assert.Equal(t, 2024, b.ProcessedAt.Year())
	assert.False(t, b.Synthesized)
}

func TestAnalyzeMalformedContentSynthesizes(t *testing.T) {
	for name, body := range map[string]string{
		"prose":           completion("I cannot process this image, but it looks like a kidney."),
		"no choices":      `{"choices":[]}`,
		"broken envelope": `{"choices":`,
	} {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, body) })
		b, err := c.Analyze(context.Background(), "u")
		require.NoError(t, err, name)
		assert.True(t, b.Synthesized, name)
		assert.True(t, b.DepthGrid.Valid(), name)
		assert.NotEmpty(t, b.Features, name)
		assert.Equal(t, "u", b.OriginalImageURL)
	}
}

func TestAnalyzeStatusMapping(t *testing.T) {
	for _, test := range []struct {
		status  int
		is      error
		message string
	}{
		{status: http.StatusTooManyRequests, is: ErrRateLimited, message: "rate limit exceeded, please try again later"},
		{status: http.StatusPaymentRequired, is: ErrQuotaExhausted, message: "API credits depleted, please add credits"},
		{status: http.StatusInternalServerError, is: ErrUpstreamUnavailable, message: "AI processing failed: boom"},
	} {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(test.status)
			io.WriteString(w, "boom")
		})
		_, err := c.Analyze(context.Background(), "u")
		require.Error(t, err)
		assert.ErrorIs(t, err, test.is)
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.Equal(t, test.message, err.Error())
		var uerr *UpstreamError
		require.True(t, errors.As(err, &uerr))
		assert.Equal(t, test.status, uerr.Status)
		assert.Equal(t, "boom", uerr.Body)
	}
	assert.False(t, errors.Is(newUpstreamError(http.StatusTooManyRequests, ""), ErrQuotaExhausted))
}

func TestUpstreamErrorBodyTruncation(t *testing.T) {
	// Two byte runes straddle the cut.
	body := "x" + strings.Repeat("é", maxErrorBody)
	uerr := newUpstreamError(http.StatusBadGateway, body)
	assert.LessOrEqual(t, len(uerr.Body), maxErrorBody)
	assert.Equal(t, maxErrorBody-1, len(uerr.Body))
	assert.True(t, utf8.ValidString(uerr.Body))
	assert.True(t, strings.HasPrefix(body, uerr.Body))
}

func TestAnalyzeResponseBounded(t *testing.T) {
	// Everything past the limit is dropped, so the envelope is never seen.
	padded := strings.Repeat(" ", maxResponseBody) + completion(`{"objectType":"heart"}`)
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, padded) })
	b, err := c.Analyze(context.Background(), "u")
	require.NoError(t, err)
	assert.True(t, b.Synthesized)
}

func TestAnalyzeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(Config{BaseURL: srv.URL}, zaptest.NewLogger(t))
	_, err := c.Analyze(context.Background(), "u")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestAnalyzeRateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		io.WriteString(w, completion("{}"))
	}))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1}, zaptest.NewLogger(t))
	_, err := c.Analyze(context.Background(), "u")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Analyze(ctx, "u")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, 1, calls, "second call must not reach the service")
}

func TestOfflineAnalyze(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i % 16 * 16)
	}
	dir := t.TempDir()
	p := filepath.Join(dir, "brain_scan.png")
	f, err := os.Create(p)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	o := &Offline{GridSize: 8, Logger: zaptest.NewLogger(t)}
	b, err := o.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, depthmesh.ShapeBrain, b.Shape)
	assert.Equal(t, "brain_scan", b.ObjectType)
	assert.Equal(t, 8, b.DepthGrid.Rows())
	assert.False(t, b.Synthesized)
	assert.Greater(t, b.DepthGrid.At(0, 0), b.DepthGrid.At(0, 7), "left columns are darker, so farther")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		white := image.NewGray(image.Rect(0, 0, 4, 4))
		for i := range white.Pix {
			white.Pix[i] = 255
		}
		png.Encode(w, white)
	}))
	defer srv.Close()
	b, err = o.Analyze(context.Background(), srv.URL+"/photo.png")
	require.NoError(t, err)
	assert.Equal(t, depthmesh.ShapeRelief, b.Shape)

	_, err = o.Analyze(context.Background(), filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
