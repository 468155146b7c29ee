package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
	"go-data-pipeline/pkg/utils"
)

// ErrAlreadyRunning is returned when Execute is called on an engine that is mid-run.
var ErrAlreadyRunning = errors.New("pipeline already running")

// Stage names used in StageError and logs.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// Config tunes an Engine.
type Config struct {
	HistoryLimit     int           `mapstructure:"history_limit"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	OutputDir        string        `mapstructure:"output_dir"`
	TransformWorkers int           `mapstructure:"transform_workers"`
	DisableFixtures  bool          `mapstructure:"disable_fixtures"`
}

func (c *Config) applyDefaults() {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.TransformWorkers <= 0 {
		c.TransformWorkers = 4
	}
}

// Observer receives lifecycle events for a run, in order, on the executing goroutine.
type Observer interface {
	OnEvent(model.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(model.Event)

func (f ObserverFunc) OnEvent(e model.Event) { f(e) }

// Option customizes an Engine.
type Option func(*Engine)

// WithExtractor registers or replaces the extractor for a source type.
func WithExtractor(t model.SourceType, x Extractor) Option {
	return func(e *Engine) { e.extractors[t] = x }
}

// WithLoader registers or replaces the loader for a destination type.
func WithLoader(t model.DestinationType, l Loader) Option {
	return func(e *Engine) { e.loaders[t] = l }
}

// WithHTTPClient sets the client used by the http-api extractor and loader.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

// Engine runs one extract, transform, load cycle per Execute call.
// It allows a single in-flight run and keeps a bounded history of results.
type Engine struct {
	cfg        Config
	log        *logger.Logger
	client     *http.Client
	extractors map[model.SourceType]Extractor
	loaders    map[model.DestinationType]Loader
	history    *utils.Ring[*model.RunResult]
	running    atomic.Bool
}

// NewEngine creates an engine with the built-in extractors and loaders.
func NewEngine(cfg Config, log *logger.Logger, opts ...Option) *Engine {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}

	e := &Engine{
		cfg:        cfg,
		log:        log.WithComponent("engine"),
		extractors: make(map[model.SourceType]Extractor),
		loaders:    make(map[model.DestinationType]Loader),
		history:    utils.NewRing[*model.RunResult](cfg.HistoryLimit),
	}

	// Options may supply a client that the defaults must share, so collect
	// overrides first and fill the remaining types afterwards.
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	defaults := map[model.SourceType]Extractor{
		model.SourceDelimited:   &CSVExtractor{},
		model.SourceSpreadsheet: &SpreadsheetExtractor{},
		model.SourceDocument:    &DocumentExtractor{},
		model.SourceHTTPAPI:     &APIExtractor{Client: e.client},
	}
	for t, x := range defaults {
		if _, ok := e.extractors[t]; !ok {
			e.extractors[t] = x
		}
	}

	loaders := map[model.DestinationType]Loader{
		model.DestinationFile:    &FileLoader{Output: utils.NewOutputManager(cfg.OutputDir), Log: e.log},
		model.DestinationTable:   &TableLoader{Log: e.log},
		model.DestinationHTTPAPI: &APILoader{Client: e.client, Log: e.log},
	}
	for t, l := range loaders {
		if _, ok := e.loaders[t]; !ok {
			e.loaders[t] = l
		}
	}

	return e
}

// Running reports whether a run is in flight.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// LastRun returns the most recent result, if any.
func (e *Engine) LastRun() (*model.RunResult, bool) {
	return e.history.Last()
}

// RunHistory returns retained results, oldest first.
func (e *Engine) RunHistory() []*model.RunResult {
	return e.history.Items()
}

// ------------------- Pipeline Runner -------------------

// Execute runs def through extract, transform and load. Record-level failures
// are reported in the result; stage-fatal failures yield a failed result, not
// an error. The only error returned is ErrAlreadyRunning.
func (e *Engine) Execute(ctx context.Context, def *model.Definition, observers ...Observer) (*model.RunResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	start := time.Now()
	result := &model.RunResult{
		RunID:        uuid.New().String(),
		PipelineName: def.Name,
		Errors:       []string{},
		Metadata: model.RunMetadata{
			Source:      def.Source.Location,
			Destination: def.Destination.Location,
		},
	}
	log := e.log.WithFields(logger.Fields(logger.FieldPipeline, def.Name, logger.FieldRunID, result.RunID))
	emit := func(t model.EventType, payload map[string]interface{}) {
		evt := model.Event{PipelineName: def.Name, Type: t, Payload: payload, Timestamp: time.Now()}
		for _, o := range observers {
			o.OnEvent(evt)
		}
	}

	log.Info("Pipeline run started", logger.Fields("source", def.Source.Type, "destination", def.Destination.Type))
	emit(model.EventStarted, map[string]interface{}{"runId": result.RunID})

	// --- EXTRACT ---
	records, fallback, err := e.extract(ctx, def)
	if err != nil {
		return e.fail(result, start, &model.StageError{Stage: StageExtract, Err: err}, log, emit), nil
	}
	result.Metadata.FixtureFallback = fallback
	emit(model.EventExtracted, map[string]interface{}{"recordCount": len(records)})

	// --- TRANSFORM ---
	out := TransformRecords(def, records, e.cfg.TransformWorkers)
	emit(model.EventTransformed, map[string]interface{}{"recordCount": len(out.Successful)})
	if len(out.Failed) > 0 {
		log.Warn("Records rejected during transform", logger.Fields("failed", len(out.Failed), "successful", len(out.Successful)))
	}

	hash, err := ContentHash(out.Successful)
	if err != nil {
		return e.fail(result, start, &model.StageError{Stage: StageTransform, Err: fmt.Errorf("hash records: %w", err)}, log, emit), nil
	}

	// --- LOAD ---
	loaded, err := e.load(ctx, def, out.Successful)
	if err != nil {
		return e.fail(result, start, &model.StageError{Stage: StageLoad, Err: err}, log, emit), nil
	}
	emit(model.EventLoaded, map[string]interface{}{"recordCount": loaded.RecordsLoaded})

	result.Success = true
	result.RecordsProcessed = len(records)
	result.RecordsSuccessful = len(out.Successful)
	result.RecordsFailure = len(out.Failed)
	result.RecordsLoaded = loaded.RecordsLoaded
	result.Errors = append(append(result.Errors, out.Errors...), loaded.Errors...)
	result.DataHash = hash
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	result.Metadata.Timestamp = time.Now()

	e.history.Push(result)
	log.Info("Pipeline run completed", logger.Fields(
		"processed", result.RecordsProcessed,
		"successful", result.RecordsSuccessful,
		"failed", result.RecordsFailure,
		"loaded", result.RecordsLoaded,
		logger.FieldDuration, result.ExecutionTimeMs,
	))
	emit(model.EventCompleted, map[string]interface{}{"result": result})
	return result, nil
}

func (e *Engine) fail(result *model.RunResult, start time.Time, err error, log *logger.Logger, emit func(model.EventType, map[string]interface{})) *model.RunResult {
	result.Success = false
	result.Errors = append(result.Errors, err.Error())
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	result.Metadata.Timestamp = time.Now()

	e.history.Push(result)
	log.Error("Pipeline run failed", logger.ErrorFields(err, logger.FieldDuration, result.ExecutionTimeMs))
	emit(model.EventFailed, map[string]interface{}{"result": result})
	return result
}

// extract dispatches on the source type. A missing file-backed source falls
// back to fixture records keyed by pipeline name.
func (e *Engine) extract(ctx context.Context, def *model.Definition) ([]model.Record, bool, error) {
	x, ok := e.extractors[def.Source.Type]
	if !ok {
		return nil, false, fmt.Errorf("unsupported source type: %s", def.Source.Type)
	}

	records, err := x.Extract(ctx, def)
	if err == nil {
		return records, false, nil
	}
	if def.Source.Type.IsFileBacked() && errors.Is(err, fs.ErrNotExist) && !e.cfg.DisableFixtures {
		e.log.Warn("Source location not found, using fixture records", logger.Fields(
			logger.FieldPipeline, def.Name, "location", def.Source.Location))
		return FixtureRecords(def.Name), true, nil
	}
	return nil, false, err
}

func (e *Engine) load(ctx context.Context, def *model.Definition, records []model.Record) (model.LoadOutput, error) {
	l, ok := e.loaders[def.Destination.Type]
	if !ok {
		return model.LoadOutput{}, fmt.Errorf("unsupported destination type: %s", def.Destination.Type)
	}
	return l.Load(ctx, def, records)
}
