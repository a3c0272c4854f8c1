// Package pipeline runs the two halves of a CI job: start before the build and finish after it.
//
// Start is allowed to fail only on a strict key derivation error. Finish never fails; every
// problem is logged and the step moves on, so reporting can not break a build.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Norgate-AV/cachestat/internal/backend"
	"github.com/Norgate-AV/cachestat/internal/cachekey"
	"github.com/Norgate-AV/cachestat/internal/config"
	"github.com/Norgate-AV/cachestat/internal/eventlog"
	"github.com/Norgate-AV/cachestat/internal/metrics"
	"github.com/Norgate-AV/cachestat/internal/report"
	"github.com/Norgate-AV/cachestat/internal/state"
	"github.com/Norgate-AV/cachestat/internal/stats"
	"github.com/Norgate-AV/cachestat/internal/sticky"
	"github.com/Norgate-AV/cachestat/internal/summary"
	"github.com/Norgate-AV/cachestat/internal/tool"
)

// ReasonNoData is the skip reason when the event log held no usable records
const ReasonNoData = "no-data"

// Pipeline holds the collaborators of a run
type Pipeline struct {
	cfg      *config.Config
	logger   zerolog.Logger
	backend  backend.Backend
	reporter *sticky.Reporter

	now         func() time.Time
	toolVersion func(ctx context.Context, binary string) string
}

// New creates a pipeline. A nil reporter disables publishing.
func New(cfg *config.Config, b backend.Backend, reporter *sticky.Reporter, logger zerolog.Logger) *Pipeline {
	if reporter == nil {
		reporter = sticky.NewReporter(nil, logger)
	}

	return &Pipeline{
		cfg:         cfg,
		logger:      logger,
		backend:     b,
		reporter:    reporter,
		now:         time.Now,
		toolVersion: tool.Version,
	}
}

// DeriveKey computes the cache key for the configured workspace
func (p *Pipeline) DeriveKey(ctx context.Context) (cachekey.Descriptor, error) {
	version := p.cfg.ToolVersion
	if version == "" {
		version = p.toolVersion(ctx, p.cfg.ToolBinary)
	}

	lockfiles, err := cachekey.FindLockfiles(p.cfg.Workspace, p.cfg.LockfileGlob)
	if err != nil {
		return cachekey.Descriptor{}, err
	}

	if len(lockfiles) == 0 {
		p.logger.Warn().Str("workspace", p.cfg.Workspace).Str("pattern", p.cfg.LockfileGlob).
			Msg("No lockfiles found, using a shared key")
	}

	p.logger.Debug().Str("version", version).Int("lockfiles", len(lockfiles)).Msg("Deriving cache key")

	return cachekey.Derive(p.cfg.Prefix, version, cachekey.Platform(), lockfiles)
}

// Start prepares the run: derives the key, clears the event log, restores the store
// and writes the handoff state for Finish
func (p *Pipeline) Start(ctx context.Context) (state.State, error) {
	key, err := p.DeriveKey(ctx)
	if err != nil {
		if p.cfg.StrictKey {
			return state.State{}, err
		}

		p.logger.Warn().Err(err).Msg("Failed to derive cache key, continuing without restore")
	}

	if err := eventlog.Reset(p.cfg.LogFile); err != nil {
		p.logger.Warn().Err(err).Str("path", p.cfg.LogFile).Msg("Failed to reset event log")
	}

	st := state.New(key, p.backend.Name(), p.now())

	if key.PrimaryKey != "" {
		restored, err := p.backend.Restore(ctx, key)
		switch {
		case err != nil:
			p.logger.Warn().Err(err).Str("key", key.PrimaryKey).Msg("Failed to restore cache")
		case restored == "":
			p.logger.Info().Str("key", key.PrimaryKey).Msg("No cache found, starting cold")
		default:
			p.logger.Info().Str("key", restored).Bool("exact", restored == key.PrimaryKey).Msg("Restored cache")
		}

		st = st.WithRestoredKey(restored)
	}

	if err := state.Save(p.cfg.StateFile, st); err != nil {
		p.logger.Warn().Err(err).Str("path", p.cfg.StateFile).Msg("Failed to write state")
	}

	p.logger.Debug().Str("run_id", st.RunID).Str("key", key.PrimaryKey).Msg("Start complete")

	return st, nil
}

// FinishResult describes what Finish did
type FinishResult struct {
	State state.State

	// Stats is nil when the event log held no records
	Stats *stats.RunStats

	DurationSeconds int64
	Published       sticky.Result

	// Saved is true when the store was handed to the backend
	Saved bool
}

// Finish reports on the run and saves the store
func (p *Pipeline) Finish(ctx context.Context) FinishResult {
	now := p.now()
	st := p.loadState(ctx)

	res := FinishResult{
		State:           st,
		DurationSeconds: st.Elapsed(now),
	}

	records, err := eventlog.ReadFile(p.cfg.LogFile)
	if err != nil {
		p.logger.Warn().Err(err).Str("path", p.cfg.LogFile).Msg("Failed to read event log")
	}

	if len(records) > 0 {
		s := stats.Aggregate(records)
		res.Stats = &s
	} else {
		p.logger.Info().Str("path", p.cfg.LogFile).Msg("No compiler cache events recorded")
	}

	fragment := report.RenderDegraded(st.Backend, res.DurationSeconds)
	if res.Stats != nil {
		fragment = report.RenderSummary(*res.Stats, st.Backend, res.DurationSeconds)
	}

	if err := summary.Append(p.cfg.SummaryFile, report.Title, fragment); err != nil {
		p.logger.Warn().Err(err).Str("path", p.cfg.SummaryFile).Msg("Failed to write job summary")
	}

	res.Published = p.publish(ctx, res.Stats, st.Backend, res.DurationSeconds)
	res.Saved = p.save(ctx, st)

	if err := metrics.WriteFile(p.cfg.MetricsFile, res.Stats, st.Backend, res.DurationSeconds); err != nil {
		p.logger.Warn().Err(err).Str("path", p.cfg.MetricsFile).Msg("Failed to write metrics")
	}

	return res
}

// loadState reads the handoff state, or rebuilds what it can when start did not run
func (p *Pipeline) loadState(ctx context.Context) state.State {
	st, err := state.Load(p.cfg.StateFile)
	if err == nil {
		return st
	}

	if errors.Is(err, state.ErrNotFound) {
		p.logger.Info().Str("path", p.cfg.StateFile).Msg("No state from start, recomputing key")
	} else {
		p.logger.Warn().Err(err).Str("path", p.cfg.StateFile).Msg("Failed to read state, recomputing key")
	}

	key, err := p.DeriveKey(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to derive cache key")
	}

	// zero StartedAt so the duration reads as unknown
	st = state.New(key, p.backend.Name(), p.now())
	st.StartedAt = time.Time{}

	return st
}

func (p *Pipeline) publish(ctx context.Context, s *stats.RunStats, backendName string, durationSeconds int64) sticky.Result {
	if s == nil {
		return sticky.Result{Action: sticky.Skipped, Reason: ReasonNoData}
	}

	thread := sticky.ResolveThread(p.cfg.GitHub.Thread, p.cfg.GitHub.Ref, p.cfg.GitHub.EventPath)
	body := report.RenderComment(*s, backendName, durationSeconds)

	res, err := p.reporter.Publish(ctx, body, thread)
	if err != nil {
		p.logger.Warn().Err(err).Int("thread", thread).Msg("Failed to publish report comment")
		return res
	}

	switch {
	case res.Reason == sticky.ReasonPermissionDenied:
		p.logger.Info().Int("thread", thread).Msg("Not allowed to comment, skipping report comment")
	case res.Action == sticky.Skipped:
		p.logger.Debug().Str("reason", res.Reason).Msg("Report comment skipped")
	default:
		p.logger.Info().Str("result", res.String()).Int("thread", thread).Msg("Published report comment")
	}

	return res
}

func (p *Pipeline) save(ctx context.Context, st state.State) bool {
	key := st.Key.PrimaryKey
	if key == "" {
		return false
	}

	if st.RestoredKey == key {
		p.logger.Debug().Str("key", key).Msg("Exact cache hit, not saving")
		return false
	}

	if err := p.backend.Save(ctx, key); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("Failed to save cache")
		return false
	}

	p.logger.Info().Str("key", key).Msg("Saved cache")

	return true
}
