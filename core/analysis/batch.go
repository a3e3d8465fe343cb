package analysis

import (
	"context"
	"errors"
	"sync"

	"TuneScope/core/audio"
	"TuneScope/logger"
	"TuneScope/model"
)

// Batch item error codes.
const (
	CodeUnanalyzableAudio  = "unanalyzable_audio"
	CodePersistenceFailure = "persistence_failure"
)

// BatchInput is one file queued for batch analysis.
type BatchInput struct {
	Handle   *audio.Handle
	Filename string
	Format   string
	FileSize int64
}

// ProgressEvent reports per-file batch progress. Status is "started",
// "success" or "error".
type ProgressEvent struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	TrackID  string `json:"trackId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TrackStore is the slice of the repository the coordinator needs: each
// successful aggregation is persisted before it is counted successful.
type TrackStore interface {
	Create(ctx context.Context, rec *model.TrackRecord) error
}

// Coordinator runs the aggregator over N inputs with bounded parallelism.
// Files fail in isolation; the report lists outcomes in input order
// regardless of completion order.
type Coordinator struct {
	analyzer   Analyzer
	store      TrackStore
	maxWorkers int
}

// NewBatchCoordinator creates a coordinator. maxWorkers below 1 falls back
// to sequential processing.
func NewBatchCoordinator(analyzer Analyzer, store TrackStore, maxWorkers int) *Coordinator {
	if maxWorkers < 1 {
		logger.Warn("invalid batch worker count, defaulting to 1", logger.Int("maxWorkers", maxWorkers))
		maxWorkers = 1
	}
	return &Coordinator{analyzer: analyzer, store: store, maxWorkers: maxWorkers}
}

// Run processes every input through the aggregator and persists successes.
// One file's failure never aborts or delays the rest. The optional progress
// callback is invoked serially.
func (c *Coordinator) Run(ctx context.Context, ownerID int64, cfg StageConfig, inputs []BatchInput, progress func(ProgressEvent)) model.BatchReport {
	results := make([]model.BatchItem, len(inputs))

	var wg sync.WaitGroup
	var mu sync.Mutex
	semaphore := make(chan struct{}, c.maxWorkers)

	emit := func(ev ProgressEvent) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		progress(ev)
	}

	for i := range inputs {
		wg.Add(1)
		go func(i int, in BatchInput) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			emit(ProgressEvent{Index: i, Filename: in.Filename, Status: "started"})
			results[i] = c.processOne(ctx, ownerID, cfg, in)
			ev := ProgressEvent{Index: i, Filename: in.Filename, Status: results[i].Status, TrackID: results[i].TrackID, Error: results[i].Error}
			if results[i].Status != "success" {
				ev.Status = "error"
			}
			emit(ev)
		}(i, inputs[i])
	}
	wg.Wait()

	report := model.BatchReport{Total: len(inputs), Results: results}
	for _, item := range results {
		if item.Status == "success" {
			report.Successful++
		} else {
			report.Failed++
		}
	}
	return report
}

func (c *Coordinator) processOne(ctx context.Context, ownerID int64, cfg StageConfig, in BatchInput) model.BatchItem {
	item := model.BatchItem{Filename: in.Filename}

	rec, err := c.analyzer.Aggregate(ctx, in.Handle, Request{
		OwnerID:  ownerID,
		Filename: in.Filename,
		Format:   in.Format,
		FileSize: in.FileSize,
		Config:   cfg,
	})
	if err != nil {
		item.Status = "error"
		item.Error = err.Error()
		if errors.Is(err, ErrUnanalyzableAudio) {
			item.Code = CodeUnanalyzableAudio
		}
		logger.Warn("batch item failed analysis",
			logger.String("filename", in.Filename),
			logger.Int64("ownerId", ownerID),
			logger.ErrorField(err))
		return item
	}

	if err := c.store.Create(ctx, rec); err != nil {
		// The record was computed but not saved. The caller must be told,
		// not shown a phantom success.
		item.Status = "error"
		item.Error = "analysis succeeded but the record could not be saved"
		item.Code = CodePersistenceFailure
		logger.Error("batch item failed persistence",
			logger.String("filename", in.Filename),
			logger.Int64("ownerId", ownerID),
			logger.ErrorField(err))
		return item
	}

	item.Status = "success"
	item.TrackID = rec.ID
	return item
}
