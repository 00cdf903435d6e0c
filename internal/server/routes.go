package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"quizbuzzer/internal/broadcast"
	"quizbuzzer/internal/config"
	"quizbuzzer/internal/db"
	"quizbuzzer/internal/events"
	"quizbuzzer/internal/gateway"
	"quizbuzzer/internal/metrics"
	"quizbuzzer/internal/rooms"
	"quizbuzzer/internal/wshub"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const Version = "1.0.0"

type Server struct {
	Rooms     *rooms.Store
	Hub       *wshub.Hub
	Gateway   *gateway.Gateway
	Operators *broadcast.Broadcaster
	Metrics   *metrics.Collector
	DB        *db.DB // nil if no database configured

	cfg      config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	now      func() time.Time
}

// New wires the coordinator's components. database and archive may be nil.
func New(cfg config.Config, log *zap.Logger, database *db.DB, archive chan<- db.RoomEvent) *Server {
	bus := events.NewBus()
	store := rooms.NewStore(rooms.WithLogger(log.Named("rooms")))
	hub := wshub.NewHub(log.Named("wshub"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg,
		func() float64 { return float64(store.Count()) },
		func() float64 { return float64(hub.ConnectionCount()) },
	)

	hub.OnEvict(func(c *wshub.Client) {
		m.IncEviction()
		bus.Publish(events.RoomEvent{Kind: events.ClientEvicted, Detail: c.ID})
	})

	opts := []gateway.Option{
		gateway.WithLogger(log.Named("gateway")),
		gateway.WithEvents(bus),
		gateway.WithMetrics(m),
	}
	if archive != nil {
		opts = append(opts, gateway.WithArchive(archive))
	}

	return &Server{
		Rooms:     store,
		Hub:       hub,
		Gateway:   gateway.New(store, hub, opts...),
		Operators: broadcast.NewBroadcaster(bus),
		Metrics:   m,
		DB:        database,
		cfg:       cfg,
		log:       log.Named("http"),
		registry:  reg,
		now:       time.Now,
	}
}

// Routes returns the HTTP surface.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /rooms", s.handleRooms)
	mux.HandleFunc("GET /rooms/{code}/qr", s.handleRoomQR)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /admin/events", s.handleEvents)
	mux.HandleFunc("GET /analytics/rooms/{id}", s.handleRoomRecap)
	mux.HandleFunc("GET /analytics/leaderboard", s.handleLeaderboard)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return s.withCORS(mux)
}

// Run serves until ctx is cancelled, then shuts the HTTP server down within
// cfg.ShutdownTimeout. The archive is enabled when cfg.DatabaseURL is set and
// the database is reachable.
func Run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	database := openArchive(ctx, cfg, log.Named("db"))
	var archive chan db.RoomEvent
	if database != nil {
		defer database.Close()
		archive = make(chan db.RoomEvent, archiveBuffer)
	}

	srv := New(cfg, log, database, archive)

	g, ctx := errgroup.WithContext(ctx)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("version", Version),
			zap.Bool("archive", database != nil))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}
		log.Info("http server stopped")
		return nil
	})
	g.Go(func() error {
		srv.Operators.Run(ctx)
		return nil
	})
	if cfg.SweepInterval > 0 {
		g.Go(func() error {
			srv.Rooms.Sweep(ctx, cfg.SweepInterval)
			return nil
		})
	}
	if archive != nil {
		g.Go(func() error {
			batchWriter(ctx, archive, database.BatchRecordEvents, log.Named("archive"))
			return nil
		})
	}

	return g.Wait()
}

func openArchive(ctx context.Context, cfg config.Config, log *zap.Logger) *db.DB {
	if cfg.DatabaseURL == "" {
		log.Info("database-url not set, running without archive")
		return nil
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Warn("database unavailable, running without archive", zap.Error(err))
		return nil
	}
	if err := database.Migrate(ctx); err != nil {
		log.Warn("migration failed, running without archive", zap.Error(err))
		database.Close()
		return nil
	}
	log.Info("database connected and migrations applied")
	return database
}
