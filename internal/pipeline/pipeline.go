// Package pipeline sequences an ingest run: unpack the archive, detect the
// dataset type, publish to the map server, discover sidecar metadata, and
// crosswalk everything into a catalog record.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openlibgis/geoporter/internal/archive"
	"github.com/openlibgis/geoporter/internal/crosswalk"
	"github.com/openlibgis/geoporter/internal/geoserver"
	"github.com/openlibgis/geoporter/internal/metadata"
)

const (
	statusInitialUpload  = "Initial upload."
	statusPreviousUpload = "Data previously uploaded; pass force to reload."
	statusNotGeoref      = "Data element not georeferenced. IIIF server not implemented."
)

// StageError attributes a fatal failure to the stage that raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

func WithDetector(detector *archive.Detector) Option {
	return func(p *Pipeline) {
		p.detector = detector
	}
}

func WithPublisher(publisher *geoserver.Client) Option {
	return func(p *Pipeline) {
		p.publisher = publisher
	}
}

func WithEngine(engine *crosswalk.Engine) Option {
	return func(p *Pipeline) {
		p.engine = engine
	}
}

// Pipeline runs ingest invocations. Instances are safe to share: each Run
// owns its record and FSM, and the only shared resource is the map-server
// workspace, whose per-store conflict the publisher handles by name.
type Pipeline struct {
	detector  *archive.Detector
	publisher *geoserver.Client
	engine    *crosswalk.Engine
	logger    *zap.Logger
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunOptions control one invocation.
type RunOptions struct {
	// Destination overrides the extraction folder name (defaults to the
	// archive base name).
	Destination string

	// Force discards any previous extraction and republishes.
	Force bool

	// ExistingIdentifier reuses a persistent identifier on re-ingestion
	// instead of minting a new one.
	ExistingIdentifier string
}

// Run executes every stage in order, threading the accumulating record
// through. The first stage failure aborts the run and is returned with the
// stage name attached; no stage is retried here.
func (p *Pipeline) Run(ctx context.Context, archivePath string, opts RunOptions) (*IngestRecord, error) {
	record := &IngestRecord{
		RunID:             uuid.NewString(),
		SourceArchivePath: archivePath,
		StartedAt:         time.Now(),
	}

	fsm := NewFSM(FSMWithLogger(p.logger.Named("fsm")))
	logger := p.logger.With(
		zap.String("run_id", record.RunID),
		zap.String("archive", archivePath),
	)
	logger.Info("ingest started", zap.Bool("force", opts.Force))

	if err := p.unpack(ctx, fsm, record, opts); err != nil {
		return nil, p.fail(fsm, logger, StageUnpacking, err)
	}
	if err := p.detectType(fsm, record); err != nil {
		return nil, p.fail(fsm, logger, StageTypeDetection, err)
	}
	if err := p.publish(ctx, fsm, record); err != nil {
		return nil, p.fail(fsm, logger, StagePublication, err)
	}
	if err := p.discoverMetadata(fsm, record); err != nil {
		return nil, p.fail(fsm, logger, StageMetadataDiscovery, err)
	}
	if err := p.crosswalk(ctx, fsm, record, opts); err != nil {
		return nil, p.fail(fsm, logger, StageCrosswalk, err)
	}

	if err := fsm.Transition(StageComplete); err != nil {
		return nil, err
	}
	record.CompletedAt = time.Now()
	logger.Info("ingest complete",
		zap.String("store", record.StoreName),
		zap.String("status", record.StatusMessage()))
	return record, nil
}

func (p *Pipeline) fail(fsm *FSM, logger *zap.Logger, stage Stage, err error) error {
	fsm.Transition(StageFailed)
	logger.Error("stage failed",
		zap.String("stage", string(stage)),
		zap.Error(err))
	return &StageError{Stage: stage, Err: err}
}

func (p *Pipeline) unpack(ctx context.Context, fsm *FSM, record *IngestRecord, opts RunOptions) error {
	if err := fsm.Transition(StageUnpacking); err != nil {
		return err
	}

	res, err := p.detector.Unpack(ctx, record.SourceArchivePath, opts.Destination, opts.Force)
	if err != nil {
		return err
	}
	record.WorkingFolder = res.Folder
	record.FreshExtraction = res.Fresh
	record.ArchiveURL = res.ArchiveURL

	if res.Fresh {
		record.AppendStatus(statusInitialUpload)
	} else {
		record.AppendStatus(statusPreviousUpload)
	}
	return nil
}

func (p *Pipeline) detectType(fsm *FSM, record *IngestRecord) error {
	if err := fsm.Transition(StageTypeDetection); err != nil {
		return err
	}

	c, err := p.detector.Classify(record.WorkingFolder)
	if err != nil {
		return err
	}
	record.DatasetType = c.Type
	record.PrimaryDataFile = c.PrimaryFile
	return nil
}

func (p *Pipeline) publish(ctx context.Context, fsm *FSM, record *IngestRecord) error {
	if err := fsm.Transition(StagePublication); err != nil {
		return err
	}

	record.StoreName = filepath.Base(record.WorkingFolder)

	var (
		res *geoserver.PublishResult
		err error
	)
	switch record.DatasetType {
	case archive.TypeVector:
		res, err = p.publisher.PublishVector(ctx, record.StoreName, record.PrimaryDataFile)
	case archive.TypeRaster:
		res, err = p.publisher.PublishRaster(ctx, record.StoreName, record.PrimaryDataFile)
	default:
		// unreferenced datasets are not published
		record.AppendStatus(statusNotGeoref)
		return nil
	}
	if err != nil {
		return err
	}

	record.FeatureName = res.FeatureName
	record.ResourceKind = res.ResourceKind
	record.PublishedBoundingBox = res.BoundingBox
	record.PublishedEnvelope = res.Envelope
	record.AppendStatus(res.Message)
	return nil
}

func (p *Pipeline) discoverMetadata(fsm *FSM, record *IngestRecord) error {
	if err := fsm.Transition(StageMetadataDiscovery); err != nil {
		return err
	}

	docs, err := metadata.Discover(record.WorkingFolder)
	if err != nil {
		return err
	}
	record.Documents = docs
	for _, doc := range docs {
		record.MetadataFiles = append(record.MetadataFiles, doc.Path)
	}
	return nil
}

func (p *Pipeline) crosswalk(ctx context.Context, fsm *FSM, record *IngestRecord, opts RunOptions) error {
	if err := fsm.Transition(StageCrosswalk); err != nil {
		return err
	}

	in := crosswalk.Input{
		StoreName:          record.StoreName,
		FeatureName:        record.FeatureName,
		ResourceKind:       record.ResourceKind,
		Envelope:           record.PublishedEnvelope,
		ArchiveURL:         record.ArchiveURL,
		ExistingIdentifier: opts.ExistingIdentifier,
	}
	if len(record.Documents) > 0 {
		in.Tree = record.Documents[0].Tree
	}

	rec, err := p.engine.Crosswalk(ctx, in)
	if err != nil {
		return err
	}
	record.CatalogRecord = rec
	return nil
}
