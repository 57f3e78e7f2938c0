package generation

import (
	"context"
	"errors"
	"time"

	"github.com/school-system/reportgen/internal/grading"
	"github.com/school-system/reportgen/internal/logging"
	"github.com/school-system/reportgen/internal/metrics"
	"github.com/school-system/reportgen/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrEmptyResponse = errors.New("generator returned no results")

// ChunkOutcome is the result-or-error of one generation call.
type ChunkOutcome struct {
	Index   int
	Start   int
	Size    int
	Results []models.StudentResult
	Err     error
}

// Batch is the fold of every chunk outcome of one run.
type Batch struct {
	Total    int
	Chunks   []ChunkOutcome
	Results  []models.StudentResult
	Progress float64
}

// Failed returns the outcomes of chunks that were skipped.
func (b *Batch) Failed() []ChunkOutcome {
	var failed []ChunkOutcome
	for _, c := range b.Chunks {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}

// Dispatcher feeds students to a Generator one chunk at a time. Chunks
// run strictly in sequence; a failed chunk is logged and skipped without
// retry.
type Dispatcher struct {
	generator Generator
	chunkSize int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

type Option func(*Dispatcher)

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithRatePerMinute paces generation calls. Zero leaves calls unpaced.
func WithRatePerMinute(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logging.OrNop(l) }
}

func NewDispatcher(g Generator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		generator: g,
		chunkSize: DefaultChunkSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) ChunkSize() int { return d.chunkSize }

// Run processes every chunk of students. onProgress, when set, receives
// attempted/total after every chunk whether it succeeded or not.
//
// Cancelling ctx stops the run before the next chunk; the partial batch is
// returned together with ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, students []models.StudentRecord, scale grading.Scale, onProgress func(float64)) (*Batch, error) {
	batch := &Batch{Total: len(students)}
	if len(students) == 0 {
		batch.Progress = 1
		return batch, nil
	}

	for start, index := 0, 0; start < len(students); start, index = start+d.chunkSize, index+1 {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return batch, err
			}
		}

		end := start + d.chunkSize
		if end > len(students) {
			end = len(students)
		}
		outcome := d.runChunk(ctx, index, start, students[start:end], scale)
		batch.Chunks = append(batch.Chunks, outcome)
		if outcome.Err == nil {
			batch.Results = append(batch.Results, outcome.Results...)
		}

		batch.Progress = float64(end) / float64(len(students))
		if onProgress != nil {
			onProgress(batch.Progress)
		}
	}

	return batch, nil
}

func (d *Dispatcher) runChunk(ctx context.Context, index, start int, chunk []models.StudentRecord, scale grading.Scale) ChunkOutcome {
	outcome := ChunkOutcome{Index: index, Start: start, Size: len(chunk)}

	metrics.ChunksAttempted.Inc()
	began := time.Now()
	results, err := d.generator.Generate(ctx, chunk, scale)
	metrics.ChunkDuration.Observe(time.Since(began).Seconds())

	if err == nil && len(results) == 0 {
		err = &GenerationError{Op: "generate chunk", Err: ErrEmptyResponse}
	}
	if err != nil {
		metrics.ChunksFailed.Inc()
		d.logger.Error("Skipping failed chunk",
			zap.Int("chunk", index),
			zap.Int("start", start),
			zap.Int("size", len(chunk)),
			zap.Error(err))
		outcome.Err = err
		return outcome
	}

	metrics.StudentsGenerated.Add(float64(len(results)))
	outcome.Results = results
	return outcome
}
