package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/dayflow/internal/adapters/blockfile"
	"github.com/okian/dayflow/internal/adapters/repository"
	"github.com/okian/dayflow/internal/adapters/tabular"
	"github.com/okian/dayflow/internal/adapters/worker"
	"github.com/okian/dayflow/internal/domain/blocks"
	"github.com/okian/dayflow/internal/domain/dayid"
	"github.com/okian/dayflow/internal/domain/survey"
	"github.com/okian/dayflow/internal/domain/transition"
	"github.com/okian/dayflow/pkg/logger"
	"github.com/okian/dayflow/pkg/metrics"
)

// Pipeline runs the stages that turn raw survey rows into a transition
// model: remap, day id assignment, discretization and matrix building.
type Pipeline struct {
	layout   blocks.Layout
	pool     *worker.Pool
	remapper *survey.Remapper
	store    repository.Store
	logger   logger.Logger
}

// PipelineOption applies a configuration option to the Pipeline.
type PipelineOption func(*Pipeline)

// WithPool sets the worker pool used for per-day and per-block work.
func WithPool(p *worker.Pool) PipelineOption {
	return func(pl *Pipeline) {
		if p != nil {
			pl.pool = p
		}
	}
}

// WithPipelineStore makes Run persist the built model.
func WithPipelineStore(s repository.Store) PipelineOption {
	return func(pl *Pipeline) {
		pl.store = s
	}
}

// WithPipelineLogger sets a custom logger for the pipeline.
func WithPipelineLogger(l logger.Logger) PipelineOption {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// NewPipeline creates a pipeline for layout l.
func NewPipeline(l blocks.Layout, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{layout: l, logger: logger.Get()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	if p.pool == nil {
		p.pool = worker.NewPool(0, worker.WithLogger(p.logger))
	}
	p.remapper = survey.NewRemapper(survey.WithLogger(p.logger))
	return p
}

// Layout returns the block layout.
func (p *Pipeline) Layout() blocks.Layout { return p.layout }

// Remap normalizes raw rows.
func (p *Pipeline) Remap(ctx context.Context, raws []survey.RawRecord) ([]survey.NormalizedRecord, survey.Stats, error) {
	return p.remapper.Remap(ctx, raws)
}

// AssignDays numbers the distinct days of recs and tags every record.
func (p *Pipeline) AssignDays(ctx context.Context, recs []survey.NormalizedRecord) ([]dayid.Record, *dayid.Assignment) {
	start := time.Now()
	defer func() { metrics.RecordStageDuration("dayid", metrics.Since(start)) }()

	a := dayid.Assign(recs)
	tagged := a.Tag(recs)
	metrics.UpdateDaysAssigned(a.Len())
	p.logger.Info(ctx, "assigned day ids",
		logger.Int("days", a.Len()),
		logger.Int("records", len(tagged)),
	)
	return tagged, a
}

// Discretize builds one block array per day present in tagged, in ascending
// day id order. Days are processed on the pool.
func (p *Pipeline) Discretize(ctx context.Context, tagged []dayid.Record) ([]blocks.Array, error) {
	start := time.Now()
	defer func() { metrics.RecordStageDuration("blocks", metrics.Since(start)) }()

	groups := dayid.GroupByDay(tagged)
	days, err := worker.Map(ctx, p.pool, len(groups), func(_ context.Context, i int) (blocks.Array, error) {
		return blocks.Discretize(p.layout, groups[i]), nil
	})
	if err != nil {
		metrics.RecordStageError("blocks", "discretize")
		return nil, fmt.Errorf("discretize: %w", err)
	}
	metrics.RecordDaysDiscretized(len(days))
	p.logger.Info(ctx, "discretized days",
		logger.Int("days", len(days)),
		logger.Int("blocks_per_day", p.layout.BlocksPerDay()),
	)
	return days, nil
}

// BuildModel counts transitions over days and normalizes every block's grid
// on the pool.
func (p *Pipeline) BuildModel(ctx context.Context, src transition.DaySource) (*transition.Model, error) {
	start := time.Now()
	defer func() { metrics.RecordStageDuration("matrix", metrics.Since(start)) }()

	c, err := transition.Build(p.layout, src)
	if err != nil {
		metrics.RecordStageError("matrix", "build")
		return nil, fmt.Errorf("count transitions: %w", err)
	}
	tables, err := worker.Map(ctx, p.pool, len(c.Grids), func(_ context.Context, i int) (transition.Table, error) {
		return transition.Normalize(&c.Grids[i]), nil
	})
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	m, err := transition.Assemble(c, tables)
	if err != nil {
		return nil, err
	}
	p.logger.Info(ctx, "built transition model",
		logger.Uint64("days", c.Days),
		logger.Uint64("transitions", c.Transitions),
		logger.Int("tables", len(tables)),
	)
	return m, nil
}

// Result summarizes one end-to-end run.
type Result struct {
	RunID   string
	Stats   survey.Stats
	Days    int
	Model   *transition.Model
	ModelID string
}

// Run executes every stage in memory. When blockPath is set the block arrays
// are also written there. The model is saved when a store is configured.
func (p *Pipeline) Run(ctx context.Context, raws []survey.RawRecord, blockPath string) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := p.logger.With(logger.String("run_id", res.RunID))
	log.Info(ctx, "pipeline started", logger.Int("rows", len(raws)))
	start := time.Now()

	recs, stats, err := p.Remap(ctx, raws)
	res.Stats = stats
	if err != nil {
		return nil, fmt.Errorf("remap: %w", err)
	}

	tagged, _ := p.AssignDays(ctx, recs)

	days, err := p.Discretize(ctx, tagged)
	if err != nil {
		return nil, err
	}
	res.Days = len(days)

	if blockPath != "" {
		if err := blockfile.WriteFile(blockPath, p.layout.BlocksPerDay(), days); err != nil {
			metrics.RecordStageError("blocks", "write")
			return nil, err
		}
		log.Info(ctx, "wrote block file", logger.String("path", blockPath))
	}

	res.Model, err = p.BuildModel(ctx, transition.NewSliceSource(days))
	if err != nil {
		return nil, err
	}

	if p.store != nil {
		if res.ModelID, err = p.store.Save(ctx, res.Model); err != nil {
			metrics.RecordStageError("store", "save")
			return nil, fmt.Errorf("save model: %w", err)
		}
	}

	log.Info(ctx, "pipeline finished",
		logger.Int("days", res.Days),
		logger.String("model_id", res.ModelID),
		logger.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// RemapFile reads a raw extract and writes the remapped CSV.
func (p *Pipeline) RemapFile(ctx context.Context, in, out string) (survey.Stats, error) {
	raws, err := tabular.ReadFile(in, tabular.ReadRaw)
	if err != nil {
		return survey.Stats{}, err
	}
	recs, stats, err := p.Remap(ctx, raws)
	if err != nil {
		return stats, err
	}
	return stats, tabular.WriteFile(out, recs, tabular.WriteRemapped)
}

// DayIDFile reads a remapped CSV and writes the day-tagged CSV. It returns
// the number of distinct days.
func (p *Pipeline) DayIDFile(ctx context.Context, in, out string) (int, error) {
	recs, err := tabular.ReadFile(in, tabular.ReadRemapped)
	if err != nil {
		return 0, err
	}
	tagged, a := p.AssignDays(ctx, recs)
	return a.Len(), tabular.WriteFile(out, tagged, tabular.WriteDays)
}

// BlocksFile reads a day-tagged CSV and writes the block file. It returns the
// number of days written.
func (p *Pipeline) BlocksFile(ctx context.Context, in, out string) (int, error) {
	tagged, err := tabular.ReadFile(in, tabular.ReadDays)
	if err != nil {
		return 0, err
	}
	days, err := p.Discretize(ctx, tagged)
	if err != nil {
		return 0, err
	}
	return len(days), blockfile.WriteFile(out, p.layout.BlocksPerDay(), days)
}

// MatrixFile streams a block file into a model and saves it when a store is
// configured. The block file's own layout must match the pipeline's.
func (p *Pipeline) MatrixFile(ctx context.Context, in string) (*transition.Model, string, error) {
	f, err := blockfile.Open(in)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	if got := f.Layout().Minutes(); got != p.layout.Minutes() {
		return nil, "", fmt.Errorf("%s: %w: file has %d-minute blocks, want %d",
			in, blocks.ErrShapeMismatch, got, p.layout.Minutes())
	}
	m, err := p.BuildModel(ctx, f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", in, err)
	}
	var id string
	if p.store != nil {
		if id, err = p.store.Save(ctx, m); err != nil {
			return nil, "", fmt.Errorf("save model: %w", err)
		}
	}
	return m, id, nil
}
