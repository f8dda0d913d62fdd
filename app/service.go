// Package app wires the configured adapters into the command surface. One
// Service backs one CLI invocation: the vendor client and fetcher are built
// lazily so cache-only commands run without an account, and RunCharge closes
// the event bus on completion.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "github.com/homecharge/homecharge/app/plugins"
	"github.com/homecharge/homecharge/config"
	"github.com/homecharge/homecharge/core/cache"
	"github.com/homecharge/homecharge/core/charge"
	corecp "github.com/homecharge/homecharge/core/chargepoint"
	"github.com/homecharge/homecharge/core/events"
	coremetrics "github.com/homecharge/homecharge/core/metrics"
	"github.com/homecharge/homecharge/core/model"
	coremon "github.com/homecharge/homecharge/core/monitoring"
	"github.com/homecharge/homecharge/core/notify"
	"github.com/homecharge/homecharge/core/ratelimit"
	"github.com/homecharge/homecharge/core/runlog"
	"github.com/homecharge/homecharge/core/sessions"
	cpinfra "github.com/homecharge/homecharge/infra/chargepoint"
	"github.com/homecharge/homecharge/infra/gitmirror"
	"github.com/homecharge/homecharge/infra/logger"
	inframetrics "github.com/homecharge/homecharge/infra/metrics"
	"github.com/homecharge/homecharge/infra/monitoring"
	"github.com/homecharge/homecharge/infra/mqtt"
	"github.com/homecharge/homecharge/internal/eventbus"
	"github.com/homecharge/homecharge/jobs/warmcache"
)

// Service holds the wired components behind the CLI commands.
type Service struct {
	Config *config.Config
	Store  *cache.Store
	Sink   coremetrics.Sink

	runlog    runlog.Store
	announcer notify.Announcer
	monitor   coremon.Monitor
	mirror    *gitmirror.Mirror
	bus       *eventbus.Bus[events.Event]
	loc       *time.Location
	log       logger.Logger

	client  corecp.Client
	fetcher *sessions.Fetcher

	now func() time.Time
}

// New creates a Service from the configuration. The announcement channel
// degrades to a nop when the broker is unreachable; a run must never be lost
// to a down home-automation bus.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(monitor)

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	loc := cfg.Charge.Location()
	store := cache.New(cfg.Cache.Dir, loc, logger.New("cache"))

	var mirror *gitmirror.Mirror
	if cfg.Cache.Mirror == "git" {
		mirror, err = gitmirror.New(cfg.Cache.Git, logger.New("gitmirror"))
		if err != nil {
			return nil, fmt.Errorf("git mirror: %w", err)
		}
		store.UseMirror(mirror)
	}

	var rl runlog.Store
	rl, err = runlog.NewStore(cfg.RunLog.Module())
	if err != nil {
		log.Warnf("run log unavailable, outcomes will not be recorded: %v", err)
		coremon.CaptureException(err, map[string]string{"module": "runlog"})
		rl = nil
	}

	var announcer notify.Announcer = notify.NopAnnouncer{}
	if cfg.MQTT.Broker != "" {
		pc, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			log.Warnf("mqtt unavailable, announcements disabled: %v", err)
			coremon.CaptureException(err, map[string]string{"module": "mqtt"})
		} else {
			announcer = mqtt.NewAnnouncer(pc, cfg.MQTT.TopicPrefix, logger.New("announce"))
		}
	}

	return &Service{
		Config:    cfg,
		Store:     store,
		Sink:      sink,
		runlog:    rl,
		announcer: announcer,
		monitor:   monitor,
		mirror:    mirror,
		bus:       eventbus.New[events.Event](),
		loc:       loc,
		log:       log,
		now:       time.Now,
	}, nil
}

// VendorClient returns the vendor API client, building it on first use.
// Construction fails when credentials are missing, which is the point: only
// commands that talk to the vendor pay that requirement.
func (s *Service) VendorClient() (corecp.Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	c, err := cpinfra.New(s.Config.ChargePoint, logger.New("chargepoint"))
	if err != nil {
		return nil, fmt.Errorf("vendor client: %w", err)
	}
	c.UseSink(s.Sink)
	s.client = c
	return s.client, nil
}

// Fetcher returns the history fetcher, building it and its rate limiter on
// first use.
func (s *Service) Fetcher() (*sessions.Fetcher, error) {
	if s.fetcher != nil {
		return s.fetcher, nil
	}
	client, err := s.VendorClient()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.New(s.Config.Fetch.RateLimit, s.Config.Fetch.RatePeriod())
	f := sessions.New(client, s.Store, limiter, s.loc, logger.New("fetch"))
	f.UseSink(s.Sink)
	s.fetcher = f
	return s.fetcher, nil
}

// RunLog exposes the run-outcome store; nil when it failed to open.
func (s *Service) RunLog() runlog.Store { return s.runlog }

// RunCharge executes one charge-control invocation end to end: window gate,
// controller state machine, run-log append, metrics and announcements. force
// skips the gate. RunCharge is one-shot; the CLI builds a fresh Service per
// invocation.
func (s *Service) RunCharge(ctx context.Context, force bool) (charge.Result, error) {
	runID := uuid.NewString()[:8]
	started := s.now()

	collectorDone := inframetrics.StartEventCollector(context.Background(), s.bus, s.Sink)
	announceDone := s.startAnnouncePump()

	finish := func(res charge.Result, runErr error) (charge.Result, error) {
		finished := s.now()
		if s.runlog != nil {
			rec := runlog.Record{
				ID:         runID,
				StartedAt:  started,
				FinishedAt: finished,
				Outcome:    string(res.Outcome),
				Reason:     res.Reason,
				Attempts:   res.Attempts,
				StationID:  s.Config.ChargePoint.StationID,
				ChargerID:  res.ChargerID,
			}
			// Background context: the record must land even when the run
			// context was canceled.
			if err := s.runlog.Append(context.Background(), rec); err != nil {
				s.log.Warnf("runlog append: %v", err)
			}
		}
		s.bus.Publish(events.OutcomeEvent{
			RunID:     runID,
			Outcome:   string(res.Outcome),
			Reason:    res.Reason,
			Attempts:  res.Attempts,
			StationID: s.Config.ChargePoint.StationID,
			Duration:  finished.Sub(started),
			Time:      finished,
		})
		s.bus.Close()
		<-collectorDone
		<-announceDone
		if runErr != nil {
			coremon.CaptureException(runErr, map[string]string{"module": "charge", "run_id": runID})
		}
		s.log.Infof("run %s finished: outcome=%s attempts=%d duration=%s",
			runID, res.Outcome, res.Attempts, finished.Sub(started).Round(time.Second))
		return res, runErr
	}

	if !force {
		gate := charge.NewGate(s.Config.Charge.Hour, s.Config.Charge.Minute, s.Config.Charge.Grace(), s.loc, s.log)
		if !gate.ShouldProceed() {
			return finish(charge.Result{Outcome: charge.OutcomeOutOfWindow, Reason: "past charging window"}, nil)
		}
	}

	client, err := s.VendorClient()
	if err != nil {
		return finish(charge.Result{Outcome: charge.OutcomeFailed, Reason: err.Error()}, err)
	}
	ctrl := charge.NewController(client, s.Config.Charge.Controller(s.Config.ChargePoint.StationID), logger.New("charge"))
	ctrl.UseBus(s.bus)
	return finish(ctrl.Run(ctx))
}

// startAnnouncePump forwards bus events to the announcer: charger snapshots
// while the run progresses, the outcome at the end. The returned channel
// closes once the pump has drained, which bus.Close guarantees can happen.
func (s *Service) startAnnouncePump() <-chan struct{} {
	done := make(chan struct{})
	sub := s.bus.Subscribe()
	go func() {
		defer close(done)
		for ev := range sub {
			var err error
			switch e := ev.(type) {
			case events.StatusEvent:
				err = s.announcer.AnnounceStatus(e.Status)
			case events.OutcomeEvent:
				err = s.announcer.AnnounceOutcome(e)
			}
			if err != nil {
				s.log.Warnf("announce %s: %v", ev.Kind(), err)
			}
		}
	}()
	return done
}

// SyncMonth mirrors one month of charging history and, when configured,
// prefetches per-session details through the same rate limiter.
func (s *Service) SyncMonth(ctx context.Context, year int, month time.Month) ([]model.Session, error) {
	f, err := s.Fetcher()
	if err != nil {
		return nil, err
	}
	sess, err := f.FetchMonth(ctx, year, month, s.Config.Fetch.PageSize, s.Config.Fetch.MaxPages)
	if err != nil {
		return nil, err
	}
	if s.Config.Fetch.Details {
		fetched, cached := warmcache.Warm(ctx, f, sess, s.Config.Fetch.IncludeSamples, s.log)
		s.log.Infof("session details: %d fetched, %d already cached", fetched, cached)
	}
	return sess, nil
}

// CachedSessions returns whatever the cache holds for a month without
// touching the network, so reporting works without vendor credentials.
func (s *Service) CachedSessions(year int, month time.Month) ([]model.Session, bool) {
	rec, ok := s.Store.GetMonth(year, month)
	if !ok {
		return nil, false
	}
	out := make([]model.Session, 0, len(rec.Sessions))
	for _, raw := range rec.Sessions {
		sess, err := model.NormalizeSession(raw, s.loc)
		if err != nil {
			s.log.Warnf("cached record unusable: %v", err)
			continue
		}
		out = append(out, sess)
	}
	return out, true
}

// SyncRange mirrors every month between from and to inclusive.
func (s *Service) SyncRange(ctx context.Context, from, to time.Time) ([]model.Session, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("sync range: %s is before %s", to.Format("2006-01"), from.Format("2006-01"))
	}
	var all []model.Session
	cur := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, s.loc)
	end := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, s.loc)
	for !cur.After(end) {
		sess, err := s.SyncMonth(ctx, cur.Year(), cur.Month())
		if err != nil {
			return all, fmt.Errorf("sync %s: %w", cur.Format("2006-01"), err)
		}
		all = append(all, sess...)
		cur = cur.AddDate(0, 1, 0)
	}
	return all, nil
}

// Close commits the cache mirror and releases every held resource. Mirror
// trouble is reported, not fatal: the data is on disk either way.
func (s *Service) Close() error {
	if s.mirror != nil {
		if err := s.mirror.Commit(); err != nil {
			s.log.Warnf("mirror commit: %v", err)
			coremon.CaptureException(err, map[string]string{"module": "gitmirror"})
		}
	}
	if s.runlog != nil {
		if err := s.runlog.Close(); err != nil {
			s.log.Warnf("runlog close: %v", err)
		}
	}
	if err := s.announcer.Close(); err != nil {
		s.log.Warnf("announcer close: %v", err)
	}
	if c, ok := s.Sink.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			s.log.Warnf("metrics close: %v", err)
		}
	}
	s.monitor.Flush(2 * time.Second)
	return nil
}
