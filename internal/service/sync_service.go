package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/syncdata/cdc-relay/internal/audit"
	"github.com/syncdata/cdc-relay/internal/cdc"
	"github.com/syncdata/cdc-relay/internal/deadletter"
	"github.com/syncdata/cdc-relay/internal/domain"
	"github.com/syncdata/cdc-relay/internal/metrics"
	"github.com/syncdata/cdc-relay/internal/repository"
	"github.com/syncdata/cdc-relay/internal/sink"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

// Options configures the dispatch rules.
type Options struct {
	// TableSuffix is matched against the topic name to confirm a delete.
	TableSuffix        string
	SearchDeletePolicy SearchDeletePolicy
}

type syncService struct {
	decoder    *cdc.Decoder
	snapshots  repository.SnapshotRepository
	documents  sink.DocumentSink
	search     sink.SearchSink
	deadLetter deadletter.Publisher
	metrics    *metrics.Metrics
	opts       Options
}

// NewSyncService creates the orchestrator.
func NewSyncService(
	decoder *cdc.Decoder,
	snapshots repository.SnapshotRepository,
	documents sink.DocumentSink,
	search sink.SearchSink,
	deadLetter deadletter.Publisher,
	m *metrics.Metrics,
	opts Options,
) SyncService {
	if opts.SearchDeletePolicy == "" {
		opts.SearchDeletePolicy = SearchDeleteSkip
	}
	return &syncService{
		decoder:    decoder,
		snapshots:  snapshots,
		documents:  documents,
		search:     search,
		deadLetter: deadLetter,
		metrics:    m,
		opts:       opts,
	}
}

// HandleChangeEvent decodes the event, re-reads the row and fans the
// snapshot out to both sinks, one after the other.
func (s *syncService) HandleChangeEvent(ctx context.Context, event *domain.ChangeEvent) domain.Outcome {
	start := time.Now()
	out := s.handle(ctx, event)
	s.metrics.ObserveEvent(metrics.OutcomeOf(out), time.Since(start))
	return out
}

func (s *syncService) handle(ctx context.Context, event *domain.ChangeEvent) domain.Outcome {
	l := pkglog.Ctx(ctx)

	change, err := s.decoder.Decode(event.Value)
	if err != nil {
		l.Debug().Err(err).Msg("change event skipped")
		return domain.Outcome{Skipped: true, SkipReason: err.Error()}
	}

	l = l.With().Str(pkglog.FieldOp, string(change.Op)).Interface(pkglog.FieldKey, change.Key).Logger()
	ctx = pkglog.WithLogger(ctx, l)

	out := domain.Outcome{Op: change.Op, Key: change.Key}

	// Deletes are looked up too: a soft-deleted or lagging row can still
	// be returned.
	snapshot := s.fetch(ctx, &l, change.Key)
	out.SnapshotHit = snapshot != nil

	confirmedDelete := change.Op.IsDelete() && strings.HasSuffix(event.Topic, s.opts.TableSuffix)

	switch {
	case confirmedDelete:
		out.Document = s.deleteDocument(ctx, change.Key)
	case snapshot != nil:
		out.Document = s.upsertDocument(ctx, snapshot)
	default:
		l.Info().Msg("no snapshot for change, sinks left untouched")
	}

	switch {
	case confirmedDelete && s.opts.SearchDeletePolicy == SearchDeleteDelete:
		out.Search = s.deleteSearch(ctx, change.Key)
	case confirmedDelete && s.opts.SearchDeletePolicy == SearchDeleteSkip:
		// keep the deleted row out of search
	case snapshot != nil:
		out.Search = s.upsertSearch(ctx, snapshot)
	}

	s.report(ctx, &l, event, change, deadletter.SinkDocument, out.Document)
	s.report(ctx, &l, event, change, deadletter.SinkSearch, out.Search)

	if !out.Failed() {
		l.Info().
			Str("document", string(out.Document.Action)).
			Str("search", string(out.Search.Action)).
			Bool("snapshot", out.SnapshotHit).
			Msg("change synced")
	}
	return out
}

// fetch returns nil when the row is missing or the lookup failed.
func (s *syncService) fetch(ctx context.Context, l *zerolog.Logger, key any) domain.Snapshot {
	snapshot, err := s.snapshots.FetchSnapshot(ctx, key)
	switch {
	case err == nil:
		s.metrics.ObserveLookup(metrics.LookupHit)
		return snapshot
	case errors.Is(err, repository.ErrSnapshotNotFound):
		s.metrics.ObserveLookup(metrics.LookupMiss)
		l.Debug().Msg("snapshot not found")
	default:
		s.metrics.ObserveLookup(metrics.LookupError)
		l.Error().Err(err).Msg("snapshot lookup failed, treating as not found")
	}
	return nil
}

func (s *syncService) upsertDocument(ctx context.Context, snapshot domain.Snapshot) domain.SinkResult {
	return domain.SinkResult{Action: domain.ActionUpsert, Err: s.documents.Upsert(ctx, snapshot)}
}

func (s *syncService) deleteDocument(ctx context.Context, key any) domain.SinkResult {
	return domain.SinkResult{Action: domain.ActionDelete, Err: s.documents.Delete(ctx, key)}
}

func (s *syncService) upsertSearch(ctx context.Context, snapshot domain.Snapshot) domain.SinkResult {
	return domain.SinkResult{Action: domain.ActionUpsert, Err: s.search.UpsertAsUpdate(ctx, snapshot)}
}

func (s *syncService) deleteSearch(ctx context.Context, key any) domain.SinkResult {
	return domain.SinkResult{Action: domain.ActionDelete, Err: s.search.Delete(ctx, key)}
}

// report records a sink result and dead-letters it when the call failed.
func (s *syncService) report(ctx context.Context, l *zerolog.Logger, event *domain.ChangeEvent, change *domain.Change, sinkName string, res domain.SinkResult) {
	s.metrics.ObserveSink(sinkName, res)
	if !res.Attempted() {
		return
	}
	if !res.Failed() {
		audit.Log(ctx, audit.ActionFor(sinkName, res.Action), change.Key, "sink write applied")
		return
	}

	l.Error().
		Err(res.Err).
		Str(pkglog.FieldSink, sinkName).
		Str(pkglog.FieldAction, string(res.Action)).
		Msg("sink write failed")

	rec := deadletter.NewRecord(sinkName, res.Action, event, change, res.Err)
	if err := s.deadLetter.Publish(context.WithoutCancel(ctx), rec); err != nil {
		l.Error().Err(err).Str(pkglog.FieldSink, sinkName).Msg("failed to dead-letter sink write")
	}
}
