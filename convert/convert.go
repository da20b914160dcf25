// Package convert runs the image to model conversion lifecycle: a record
// is created pending, analyzed while processing, and finishes completed
// with its bundle or failed with a message. Completed records can be
// exported and previewed any number of times.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/gateway"
	"github.com/soypat/depthmesh/internal/metrics"
	"github.com/soypat/depthmesh/render"
	"github.com/soypat/depthmesh/store"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid conversion request")
	ErrNotReady       = errors.New("conversion has not completed")
)

// Service coordinates the store, the analyzer and the assembler.
type Service struct {
	store     *store.Store
	analyzer  gateway.Analyzer
	assembler depthmesh.Assembler
	logger    *zap.Logger
	metrics   *metrics.Collector
	now       func() time.Time
}

// New returns a conversion service. A nil logger or collector disables
// logging or metrics.
func New(st *store.Store, analyzer gateway.Analyzer, asm depthmesh.Assembler, logger *zap.Logger, m *metrics.Collector) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     st,
		analyzer:  analyzer,
		assembler: asm,
		logger:    logger.With(zap.String("component", "convert")),
		metrics:   m,
		now:       time.Now,
	}
}

// Start records a pending conversion of imageURL owned by owner.
func (s *Service) Start(ctx context.Context, owner, title, imageURL string) (*store.ModelRecord, error) {
	owner, imageURL = strings.TrimSpace(owner), strings.TrimSpace(imageURL)
	if owner == "" {
		return nil, fmt.Errorf("%w: missing owner", ErrInvalidRequest)
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: missing image URL", ErrInvalidRequest)
	}
	rec := &store.ModelRecord{
		OwnerID:          owner,
		Title:            strings.TrimSpace(title),
		OriginalImageURL: imageURL,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.metrics.RecordConversion(string(store.StatusPending))
	s.logger.Info("conversion started", zap.Stringer("id", rec.ID), zap.String("owner", owner))
	return rec, nil
}

// Process analyzes a pending conversion and builds its model. On failure
// the record is marked failed with a user facing message and both the
// failed record and the cause are returned.
func (s *Service) Process(ctx context.Context, id uuid.UUID) (*store.ModelRecord, error) {
	rec, err := s.store.Transition(ctx, id, store.StatusPending, store.StatusProcessing, nil)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConversion(string(store.StatusProcessing))
	log := s.logger.With(zap.Stringer("id", id))

	bundle, err := s.analyzer.Analyze(ctx, rec.OriginalImageURL)
	if err == nil {
		_, err = s.build(*bundle)
	}
	if err != nil {
		log.Warn("conversion failed", zap.Error(err))
		failed, terr := s.store.Transition(context.WithoutCancel(ctx), id, store.StatusProcessing, store.StatusFailed, func(r *store.ModelRecord) {
			r.ErrorMessage = err.Error()
		})
		if terr != nil {
			return nil, errors.Join(err, terr)
		}
		s.metrics.RecordConversion(string(store.StatusFailed))
		return failed, err
	}

	// A record left in processing can never finish.
	done, err := s.store.Transition(context.WithoutCancel(ctx), id, store.StatusProcessing, store.StatusCompleted, func(r *store.ModelRecord) {
		r.ModelData = bundle
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordConversion(string(store.StatusCompleted))
	log.Info("conversion completed", zap.Stringer("shape", bundle.Shape), zap.Bool("synthesized", bundle.Synthesized))
	return done, nil
}

// build assembles the bundle's model and records how long it took.
func (s *Service) build(b depthmesh.Bundle) (*depthmesh.Model, error) {
	start := s.now()
	model := s.assembler.Build(b)
	mesh := model.Mesh()
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	s.metrics.ObserveBuild(model.Shape.String(), s.now().Sub(start), mesh.TriangleCount())
	return model, nil
}

// Get returns the conversion if owner owns it.
func (s *Service) Get(ctx context.Context, owner string, id uuid.UUID) (*store.ModelRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != owner {
		return nil, store.ErrForbidden
	}
	return rec, nil
}

// List returns owner's conversions, newest first.
func (s *Service) List(ctx context.Context, owner string) ([]store.ModelRecord, error) {
	return s.store.List(ctx, owner)
}

// Delete removes a conversion owned by owner.
func (s *Service) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	if err := s.store.Delete(ctx, owner, id); err != nil {
		return err
	}
	s.logger.Info("conversion deleted", zap.Stringer("id", id))
	return nil
}

// Model rebuilds the model of a completed conversion owned by owner.
func (s *Service) Model(ctx context.Context, owner string, id uuid.UUID) (*store.ModelRecord, *depthmesh.Model, error) {
	rec, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	if rec.Status != store.StatusCompleted || rec.ModelData == nil {
		return rec, nil, fmt.Errorf("%w: status %s", ErrNotReady, rec.Status)
	}
	model, err := s.build(*rec.ModelData)
	if err != nil {
		return rec, nil, err
	}
	return rec, model, nil
}

// Export renders a completed conversion owned by owner in format f.
func (s *Service) Export(ctx context.Context, owner string, id uuid.UUID, f render.Format) (Artifact, error) {
	rec, model, err := s.Model(ctx, owner, id)
	if err != nil {
		return Artifact{}, err
	}
	art, err := ExportModel(model, Title(rec), f, s.now())
	s.metrics.RecordExport(f.String(), err)
	if err != nil {
		return Artifact{}, err
	}
	s.logger.Debug("conversion exported", zap.Stringer("id", id), zap.Stringer("format", f), zap.Int("bytes", len(art.Data)))
	return art, nil
}

// Preview renders a shaded image of a completed conversion owned by owner
// with its hotspot markers.
func (s *Service) Preview(ctx context.Context, owner string, id uuid.UUID, opt render.PreviewOptions) (image.Image, error) {
	_, model, err := s.Model(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if opt.Lighting == nil {
		opt.Lighting = model.Bundle.Lighting
	}
	return render.Preview(model.Mesh(), model.Anchors(), opt)
}

// Title returns the record title, falling back to the detected object type.
func Title(rec *store.ModelRecord) string {
	if rec.Title != "" {
		return rec.Title
	}
	if rec.ModelData != nil {
		return rec.ModelData.ObjectType
	}
	return ""
}

// Retryable reports whether repeating the failed operation may succeed.
// Export failures leave the stored bundle untouched and are always
// retryable, as are rate limits and upstream server errors.
func Retryable(err error) bool {
	if errors.Is(err, render.ErrExport) {
		return true
	}
	var uerr *gateway.UpstreamError
	if errors.As(err, &uerr) {
		return uerr.Retryable()
	}
	return errors.Is(err, gateway.ErrRateLimited)
}

// Artifact is an exported model file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportModel encodes model in format f. The file name is derived from
// title and the export time.
func ExportModel(model *depthmesh.Model, title string, f render.Format, at time.Time) (Artifact, error) {
	var buf bytes.Buffer
	if err := render.Export(&buf, f, model.Mesh(), render.MetaFor(model, title)); err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Name:        render.FileName(title, f, at),
		ContentType: f.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}
