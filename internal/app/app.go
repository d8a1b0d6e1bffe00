package app

import (
	"context"
	"net/http"
	"sync"

	"petnotify/internal/config"
	"petnotify/internal/delivery"
	"petnotify/internal/httpapi"
	"petnotify/internal/model"
	"petnotify/internal/notifier"
	"petnotify/internal/observability/pprof"
	"petnotify/internal/preference"
	"petnotify/internal/realtime"
	"petnotify/internal/reminder"
	"petnotify/internal/resolver"
	"petnotify/internal/runtime/supervisor"
	"petnotify/internal/storage"
	"petnotify/internal/task/engine"
	"petnotify/internal/task/scheduler"
	logx "petnotify/pkg/logx"
)

const (
	jobUpcoming   = "reminders.upcoming"
	jobRecurrence = "reminders.recurrence"
)

// App owns every long-lived component of the daemon.
type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service

	store     storage.Store
	hub       *realtime.Hub
	delivery  *delivery.Service
	pipeline  *notifier.Pipeline
	reminders *reminder.Service
	engine    *engine.Service
	sched     *scheduler.Service
	http      *httpapi.Server
	pprof     *pprof.Service

	mu   sync.Mutex
	plan reminderPlan
}

// New loads cfgPath and builds the component graph. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg)
}

func build(cfgm *config.Manager, cfg *config.Config) (*App, error) {
	if err := validateRuntime(cfg); err != nil {
		return nil, err
	}
	logSvc, log := logx.New(mapLogging(cfg.Logging))
	comp := func(name string) logx.Logger { return log.With(logx.String("comp", name)) }

	sc, _ := mapStorageConfig(cfg)
	store, err := storage.Open(sc, comp("storage"))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	loc, _ := loadLocation(cfg.Scheduler.Timezone)
	publishTimeout, _ := config.ParseDurationField("realtime.publish_timeout", cfg.Realtime.PublishTimeout)
	hub := realtime.NewHub(cfg.Realtime.Buffer)
	dispatcher := realtime.NewDispatcher(hub, publishTimeout, loc, comp("realtime"))

	dcfg, _ := mapDeliveryConfig(cfg)
	dlog := comp("delivery")
	sinks := delivery.New(dcfg, dlog,
		delivery.NewLogSink(model.ChannelPush, dlog),
		delivery.NewLogSink(model.ChannelEmail, dlog),
	)

	res := resolver.New(store, comp("resolver"))
	router := preference.New(store, comp("preference"))
	pipeline := notifier.New(store, res, router, dispatcher, sinks, comp("notifier"))

	plan, _ := mapRemindersConfig(cfg)
	reminders := reminder.New(store, res, pipeline, reminder.Config{Tick: plan.Tick, Location: loc}, comp("reminder"))

	engCfg, _ := mapTaskEngineConfig(cfg)
	eng := engine.New(engCfg, comp("taskengine"))
	sched := scheduler.New(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
	}, eng, comp("scheduler"))

	a := &App{
		cfgm:      cfgm,
		log:       log.With(logx.String("comp", "app")),
		logs:      logSvc,
		store:     store,
		hub:       hub,
		delivery:  sinks,
		pipeline:  pipeline,
		reminders: reminders,
		engine:    eng,
		sched:     sched,
		plan:      plan,
	}

	pcfg, _ := mapPprofConfig(cfg)
	a.pprof = pprof.New(pcfg, comp("pprof"))

	hcfg, _ := mapHTTPConfig(cfg, loc)
	a.http = httpapi.New(hcfg, httpapi.Deps{
		Store:    store,
		Notifier: pipeline,
		Hub:      hub,
		Targets:  resolver.DomainTargets(store),
		Health:   a.health,
	}, comp("http"))

	if err := a.registerReminders(plan); err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

// Handler exposes the HTTP API without binding a listener.
func (a *App) Handler() http.Handler { return a.http.Handler() }

// Addr is the bound HTTP address once started.
func (a *App) Addr() string { return a.http.Addr() }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs components in dependency order: sinks and the task engine
// before anything can produce work, the HTTP listener last.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			return validateRuntime(cfg)
		})
	}

	if a.delivery.Enabled() {
		a.delivery.Start(run)
	}
	if a.engine.Enabled() {
		a.engine.Start(run)
	}
	if a.sched.Enabled() {
		a.sched.Start(run)
	}
	if err := a.pprof.Start(run); err != nil {
		a.log.Warn("pprof not started", logx.Err(err))
	}
	if err := a.http.Start(a.sup); err != nil {
		a.sup.Cancel()
		return err
	}

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
		a.sup.Go("config.watch", func(c context.Context) error {
			return a.cfgm.Watch(c)
		})
	}

	a.log.Info("app started", logx.String("addr", a.http.Addr()))
	return nil
}

func (a *App) registerReminders(p reminderPlan) error {
	if !p.Enabled {
		a.sched.Remove(jobUpcoming)
		a.sched.Remove(jobRecurrence)
		return nil
	}
	if err := a.sched.AddInterval(jobUpcoming, p.Tick, p.JobTimeout, a.scanUpcoming); err != nil {
		return err
	}
	if p.Recurrence != "" {
		return a.sched.AddSchedule(jobRecurrence, p.Recurrence, p.JobTimeout, a.scanRecurrence)
	}
	return a.sched.AddDaily(jobRecurrence, p.DailyAt, p.JobTimeout, a.scanRecurrence)
}

func (a *App) scanUpcoming(ctx context.Context) error {
	res, err := a.reminders.ScanUpcoming(ctx)
	a.logScan(jobUpcoming, res, err)
	return err
}

func (a *App) scanRecurrence(ctx context.Context) error {
	res, err := a.reminders.ScanRecurrence(ctx)
	a.logScan(jobRecurrence, res, err)
	return err
}

func (a *App) logScan(name string, res reminder.Result, err error) {
	fields := []logx.Field{
		logx.String("job", name),
		logx.Int("events", res.Events),
		logx.Int("created", res.Created),
		logx.Int("skipped", res.Skipped),
		logx.Int("failed", res.Failed),
	}
	switch {
	case err != nil:
		a.log.Warn("reminder scan failed", append(fields, logx.Err(err))...)
	case res.Created > 0 || res.Failed > 0:
		a.log.Info("reminder scan", fields...)
	default:
		a.log.Debug("reminder scan", fields...)
	}
}

func (a *App) health() map[string]any {
	out := map[string]any{
		"realtime":  a.hub.Stats(),
		"delivery":  a.delivery.Stats(),
		"scheduler": a.sched.Snapshot(),
	}
	es := a.engine.Snapshot()
	es.History = nil
	out["task_engine"] = es
	if a.sup != nil {
		out["supervisor"] = a.sup.Counters()
	}
	return out
}
