package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizjudge/internal/api"
	"github.com/victornm/quizjudge/internal/catalog"
	"github.com/victornm/quizjudge/internal/evaluation"
	"github.com/victornm/quizjudge/internal/event"
	"github.com/victornm/quizjudge/internal/judge"
	"github.com/victornm/quizjudge/internal/leaderboard"
	"github.com/victornm/quizjudge/internal/sandbox"
	"github.com/victornm/quizjudge/internal/scoreboard"
	"github.com/victornm/quizjudge/internal/session"
	"github.com/victornm/quizjudge/internal/telemetry"
)

type RedisConfig struct {
	// Addrs empty disables the feature backed by this client.
	Addrs  []string
	Pass   string
	Prefix string
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log telemetry.LogConfig

	Events struct {
		PoolSize       int
		HandlerTimeout time.Duration
	}

	Redis struct {
		Sessions    RedisConfig
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Scoreboard struct {
		Driver      string
		DSN         string
		AutoMigrate bool
	}

	Catalog struct {
		// Path empty serves the embedded sample catalog.
		Path string
	}

	Judge struct {
		PythonCommand  string
		PythonTimeout  time.Duration
		CompileCommand string
		RunCommand     string
		CompileTimeout time.Duration
		RunTimeout     time.Duration
		HelperJar      string
		MaxOutputBytes int
		SQLTimeout     time.Duration
	}

	Session struct {
		TTL time.Duration
	}
}

// DefaultConfig runs everything in process: embedded catalog, in-memory sessions and a
// SQLite scoreboard.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Redis.Sessions.Prefix = "quizjudge"
	c.Redis.Leaderboard.Prefix = "quizjudge"
	c.Redis.Pubsub.Prefix = "quizjudge"
	c.Scoreboard.Driver = scoreboard.DriverSQLite
	c.Scoreboard.DSN = "quizjudge.db"
	c.Scoreboard.AutoMigrate = true
	c.Judge.PythonTimeout = 5 * time.Second
	c.Judge.CompileTimeout = 10 * time.Second
	c.Judge.RunTimeout = 10 * time.Second
	c.Judge.MaxOutputBytes = 1 << 20
	c.Judge.SQLTimeout = 5 * time.Second
	c.Session.TTL = 24 * time.Hour
	return c
}

type Server struct {
	c Config

	eb      *event.Bus
	metrics *telemetry.Metrics

	infra struct {
		redis struct {
			sessions    redis.UniversalClient
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		catalog    *catalog.Repository
		scoreboard scoreboard.Store
	}

	service struct {
		session     *session.Service
		scoreboard  *scoreboard.Service
		leaderboard *leaderboard.Service
		dispatcher  *evaluation.Dispatcher
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(
		event.WithPoolSize(c.Events.PoolSize),
		event.WithHandlerTimeout(c.Events.HandlerTimeout),
	)
	s.metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer)

	if err := s.initInfra(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		s.closeInfra()
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	var err error

	s.infra.catalog, err = catalog.NewRepository(catalog.Config{Path: s.c.Catalog.Path})
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initScoreboard(); err != nil {
		return fmt.Errorf("scoreboard: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, rc RedisConfig) (redis.UniversalClient, error) {
		if len(rc.Addrs) == 0 {
			slog.Info("server: redis disabled", "client", name)
			return nil, nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    rc.Addrs,
			Password: rc.Pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.sessions, err = connect("sessions", s.c.Redis.Sessions)
	if err != nil {
		return fmt.Errorf("sessions: %w", err)
	}

	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initScoreboard() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sc := s.c.Scoreboard

	switch sc.Driver {
	case scoreboard.DriverPostgres:
		if sc.AutoMigrate {
			if err := MigrateScoreboard(ctx, sc.Driver, sc.DSN); err != nil {
				return err
			}
		}

		db, err := pgxpool.New(ctx, sc.DSN)
		if err != nil {
			return err
		}

		if err := db.Ping(ctx); err != nil {
			db.Close()
			return err
		}

		s.infra.scoreboard = scoreboard.NewPostgresStore(db)

	case scoreboard.DriverSQLite:
		db, err := scoreboard.OpenDB(sc.Driver, sc.DSN)
		if err != nil {
			return err
		}

		if sc.AutoMigrate {
			if err := scoreboard.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return err
			}
		}

		s.infra.scoreboard = scoreboard.NewBunStore(db)

	default:
		return fmt.Errorf("unknown driver %q", sc.Driver)
	}

	return nil
}

// MigrateScoreboard applies pending scoreboard migrations on a short-lived connection.
func MigrateScoreboard(ctx context.Context, driver, dsn string) error {
	db, err := scoreboard.OpenDB(driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return scoreboard.Migrate(ctx, db)
}

func (s *Server) initService() error {
	jc := s.c.Judge

	runner := sandbox.NewLocal(sandbox.Config{
		MaxOutput: jc.MaxOutputBytes,
		Observer:  s.metrics,
	})

	interpreted, err := judge.NewInterpreted(judge.InterpretedConfig{
		Runner:  runner,
		Command: jc.PythonCommand,
		Timeout: jc.PythonTimeout,
	})
	if err != nil {
		return err
	}

	compiled, err := judge.NewCompiled(judge.CompiledConfig{
		Runner:         runner,
		CompileCommand: jc.CompileCommand,
		RunCommand:     jc.RunCommand,
		CompileTimeout: jc.CompileTimeout,
		RunTimeout:     jc.RunTimeout,
		HelperJar:      jc.HelperJar,
	})
	if err != nil {
		return err
	}

	s.service.dispatcher = evaluation.NewDispatcher(evaluation.Config{
		Declarative: judge.NewDeclarative(judge.DeclarativeConfig{Timeout: jc.SQLTimeout}),
		Interpreted: interpreted,
		Compiled:    compiled,
		Choice:      judge.Choice{},
		Observer:    s.metrics,
	})

	var store session.Store = session.NewMemoryStore()
	if r := s.infra.redis.sessions; r != nil {
		store = session.NewRedisStore(r, s.c.Redis.Sessions.Prefix, s.c.Session.TTL)
	}

	s.service.session = session.NewService(session.Config{
		Store:      store,
		Catalog:    s.infra.catalog,
		Dispatcher: s.service.dispatcher,
		EventBus:   s.eb,
	})

	s.service.scoreboard = scoreboard.NewService(scoreboard.Config{
		EventBus: s.eb,
		Store:    s.infra.scoreboard,
	})

	if r := s.infra.redis.leaderboard; r != nil {
		s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
			EventBus: s.eb,
			Redis:    r,
			Prefix:   s.c.Redis.Leaderboard.Prefix,
		})
	}

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), s.metrics.HTTPMiddleware())
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	pprof.Register(e, "/debug/pprof")

	var pubsub api.Redis
	if s.infra.redis.pubsub != nil {
		pubsub = s.infra.redis.pubsub
	}

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Catalog:      s.infra.catalog,
		Session:      s.service.session,
		Scoreboard:   s.service.scoreboard,
		Leaderboard:  s.service.leaderboard,
		Redis:        pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor(slog.Default()))
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start serves HTTP and gRPC until Shutdown or a listener failure.
func (s *Server) Start() error {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		return fmt.Errorf("grpc server: listen: %w", err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

// ReloadCatalog re-reads the question catalog file. Running sessions keep their
// question lists.
func (s *Server) ReloadCatalog(ctx context.Context) error {
	return s.infra.catalog.Reload(ctx)
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()
	s.closeInfra()

	slog.InfoContext(ctx, "server: shutdown completed")
}

func (s *Server) closeInfra() {
	if s.infra.scoreboard != nil {
		if err := s.infra.scoreboard.Close(); err != nil {
			slog.Error("server: close scoreboard failed", "error", err)
		}
	}

	for _, r := range []redis.UniversalClient{s.infra.redis.sessions, s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if r != nil {
			_ = r.Close()
		}
	}
}
