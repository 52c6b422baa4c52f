package harvest

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tordrt/metaharvest/internal/catalog"
	"github.com/tordrt/metaharvest/internal/join"
	"github.com/tordrt/metaharvest/internal/logging"
	"github.com/tordrt/metaharvest/internal/report"
	"github.com/tordrt/metaharvest/internal/search"
	"github.com/tordrt/metaharvest/internal/store"
)

// ErrInterrupted marks an instance abandoned because the run was cancelled
var ErrInterrupted = errors.New("interrupted")

// Searcher fetches the two entity collections of an instance
type Searcher interface {
	FetchConnections(ctx context.Context, inst catalog.Instance) ([]catalog.Connection, error)
	FetchDatabases(ctx context.Context, inst catalog.Instance, conn catalog.Connection) ([]catalog.DatabaseRecord, error)
}

// ReportWriter writes the per-instance reports
type ReportWriter interface {
	Write(result catalog.InstanceResult) (report.Paths, error)
}

// Options configures a Harvester. All fields are optional.
type Options struct {
	// MultiInstance adds the subdomain column to combined records
	MultiInstance bool
	// RunID tags stored rows; a random UUID is used when empty
	RunID string
	// Store receives every successfully harvested instance
	Store store.Store
	// Logger defaults to a no-op logger
	Logger *zap.Logger
}

// Harvester runs the fetch, join and report pipeline for each instance.
// Instances are processed sequentially and share no state.
type Harvester struct {
	searcher Searcher
	writer   ReportWriter
	store    store.Store
	multi    bool
	runID    string
	logger   *zap.Logger
}

// New creates a Harvester
func New(searcher Searcher, writer ReportWriter, opts Options) *Harvester {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	return &Harvester{
		searcher: searcher,
		writer:   writer,
		store:    opts.Store,
		multi:    opts.MultiInstance,
		runID:    opts.RunID,
		logger:   opts.Logger.With(zap.String("run_id", opts.RunID)),
	}
}

// RunID returns the identifier tagging this run
func (h *Harvester) RunID() string {
	return h.runID
}

// Run harvests every instance in order. A failing instance never stops the
// others; cancellation of ctx stops the run after marking the current
// instance as interrupted.
func (h *Harvester) Run(ctx context.Context, instances []catalog.Instance) *Summary {
	summary := &Summary{RunID: h.runID, MultiInstance: h.multi}

	for _, inst := range instances {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		_, s := h.HarvestInstance(ctx, inst)
		summary.Instances = append(summary.Instances, s)

		if s.Status == StatusInterrupted {
			summary.Interrupted = true
			break
		}
	}

	h.logger.Info("Harvest finished",
		zap.Int("instances", len(summary.Instances)),
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("failed", summary.Failed()),
		zap.Int("connections", summary.TotalConnections()),
		zap.Int("databases", summary.TotalDatabases()),
		zap.Bool("interrupted", summary.Interrupted))

	return summary
}

// HarvestInstance runs the full pipeline for one instance
func (h *Harvester) HarvestInstance(ctx context.Context, inst catalog.Instance) (catalog.InstanceResult, InstanceSummary) {
	logger := h.logger.With(zap.String("subdomain", inst.Subdomain))
	result := catalog.InstanceResult{Instance: inst}
	s := InstanceSummary{Subdomain: inst.Subdomain, Status: StatusSuccess}

	logger.Info("Processing instance", zap.String("base_url", inst.BaseURL))

	connections, err := h.searcher.FetchConnections(ctx, inst)
	if err != nil {
		if ctx.Err() != nil {
			return result, s.interrupted()
		}
		logger.Error("Failed to fetch connections, skipping instance",
			zap.String("kind", search.Kind(err)), logging.Error(err))
		return result, s.fail(StageConnections, err)
	}
	if len(connections) == 0 {
		logger.Warn("No connections found")
	}
	result.Connections = connections
	s.Connections = len(connections)

	fetched := make(map[string]bool, len(connections))
	for _, conn := range connections {
		if conn.QualifiedName == "" {
			logger.Warn("Connection missing qualified name, not fetching databases", zap.String("connection", conn.Name))
			s.SkippedConnections++
			continue
		}
		if fetched[conn.QualifiedName] {
			continue
		}
		fetched[conn.QualifiedName] = true

		databases, err := h.searcher.FetchDatabases(ctx, inst, conn)
		if err != nil {
			if ctx.Err() != nil {
				return result, s.interrupted()
			}
			logger.Warn("Failed to fetch databases, treating connection as empty",
				zap.String("connection", conn.QualifiedName),
				zap.String("connector", conn.ConnectorName),
				zap.String("kind", search.Kind(err)),
				logging.Error(err))
			s.DatabaseFailures++
			databases = nil
		}

		result.Databases = append(result.Databases, databases...)
	}
	s.Databases = len(result.Databases)

	grouped := join.GroupByConnection(result.Databases)
	result.Combined = join.Combine(join.Options{Subdomain: inst.Subdomain, MultiInstance: h.multi}, connections, grouped)
	s.Combined = len(result.Combined)

	paths, err := h.writer.Write(result)
	s.Paths = paths
	if err != nil {
		logger.Error("Failed to write reports", logging.Error(err))
		return result, s.fail(StageReport, err)
	}

	if h.store != nil {
		if err := h.store.SaveInstance(ctx, h.runID, result); err != nil {
			if ctx.Err() != nil {
				return result, s.interrupted()
			}
			logger.Error("Failed to store records", logging.Error(err))
			return result, s.fail(StageStore, err)
		}
	}

	logger.Info("Data extraction completed successfully",
		zap.Int("connections", s.Connections),
		zap.Int("databases", s.Databases),
		zap.Int("combined", s.Combined),
		zap.Int("database_failures", s.DatabaseFailures))

	return result, s
}

func (s InstanceSummary) fail(stage Stage, err error) InstanceSummary {
	s.Status = StatusFailed
	s.Stage = stage
	s.Err = err
	return s
}

func (s InstanceSummary) interrupted() InstanceSummary {
	s.Status = StatusInterrupted
	s.Err = ErrInterrupted
	return s
}
