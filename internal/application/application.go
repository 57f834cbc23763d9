package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/psds-microservice/supportbot/internal/auth"
	"github.com/psds-microservice/supportbot/internal/bot"
	"github.com/psds-microservice/supportbot/internal/config"
	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/database"
	"github.com/psds-microservice/supportbot/internal/handler"
	"github.com/psds-microservice/supportbot/internal/kafka"
	"github.com/psds-microservice/supportbot/internal/logger"
	"github.com/psds-microservice/supportbot/internal/media"
	"github.com/psds-microservice/supportbot/internal/metrics"
	"github.com/psds-microservice/supportbot/internal/router"
	"github.com/psds-microservice/supportbot/internal/service"
	"github.com/psds-microservice/supportbot/internal/telegram"
)

const shutdownTimeout = 10 * time.Second

// store opens the database and brings its schema up to date.
func store(cfg *config.Config) (*gorm.DB, error) {
	if err := database.Prepare(cfg); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN(), cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.MigrateUp(db, cfg.DB.Driver); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// eventOptions wires the producer into the store only when Kafka is configured.
func eventOptions(p *kafka.Producer) []service.Option {
	if !p.Enabled() {
		return nil
	}
	return []service.Option{service.WithEvents(p)}
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Dashboard: процесс веб-панели сотрудников и JSON API (режим dashboard).
type Dashboard struct {
	cfg     *config.Config
	log     *logger.Logger
	db      *gorm.DB
	events  *kafka.Producer
	httpSrv *http.Server
}

func NewDashboard(cfg *config.Config, log *logger.Logger) (*Dashboard, error) {
	if err := cfg.ValidateDashboard(); err != nil {
		return nil, err
	}
	a, err := auth.NewAuthenticator(cfg.Staff.Username, cfg.Staff.PasswordHash, cfg.Staff.Password,
		cfg.Staff.SessionSecret, cfg.Staff.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if cfg.Staff.PasswordHash == "" {
		log.Warn("staff password is configured in plain text; set STAFF_PASSWORD_HASH")
	}

	db, err := store(cfg)
	if err != nil {
		return nil, err
	}
	events := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	tickets := service.NewTicketService(db, eventOptions(events)...)

	// Replies need only the send endpoint; the client connects on first use.
	var sender service.Sender
	if cfg.Telegram.Token != "" {
		sender = telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.RequestTimeout, cfg.Telegram.PollTimeout,
			telegram.WithLogger(log))
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is empty; staff replies are disabled")
	}
	replies := service.NewReplyService(tickets, sender)

	secure := cfg.IsProduction()
	h, err := router.New(router.Deps{
		Log:     log,
		Metrics: metrics.New(),
		Auth:    a,
		Limiter: auth.NewLoginLimiter(cfg.Staff.LoginRateLimit),
		Health: handler.NewHealthHandler("supportbot-dashboard", func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}),
		Login:   handler.NewAuthHandler(a, secure, log),
		Tickets: handler.NewTicketHandler(tickets, replies),
		Pages:   handler.NewPageHandler(tickets, replies, log),
		Media:   handler.NewMediaHandler(tickets, cfg.MediaRoot),
	})
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("router: %w", err)
	}

	return &Dashboard{
		cfg:     cfg,
		log:     log,
		db:      db,
		events:  events,
		httpSrv: newServer(cfg.Addr(), h),
	}, nil
}

// Run запускает HTTP-сервер, блокируется до отмены ctx.
func (a *Dashboard) Run(ctx context.Context) error {
	defer a.close()
	a.log.Info("dashboard listening",
		"addr", a.httpSrv.Addr,
		"env", a.cfg.AppEnv,
		"db_driver", a.cfg.DB.Driver,
		"kafka", a.events.Enabled(),
	)
	return serve(ctx, a.httpSrv)
}

func (a *Dashboard) close() {
	if err := a.events.Close(); err != nil {
		a.log.LogError(err, "kafka close")
	}
	if err := database.Close(a.db); err != nil {
		a.log.LogError(err, "database close")
	}
}

// Bot: процесс чат-бота (long polling) и сервер health/metrics.
type Bot struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *gorm.DB
	events   *kafka.Producer
	redis    *redis.Client
	client   *telegram.Client
	driver   *bot.Driver
	probeSrv *http.Server
}

func NewBot(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Bot, error) {
	if err := cfg.ValidateBot(); err != nil {
		return nil, err
	}
	db, err := store(cfg)
	if err != nil {
		return nil, err
	}
	b := &Bot{cfg: cfg, log: log, db: db}

	ready := []handler.Pinger{func(ctx context.Context) error { return database.Ping(ctx, db) }}
	var sessions conversation.SessionStore
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		sessions = conversation.NewRedisStore(b.redis, cfg.ConversationTTL)
		ready = append(ready, func(ctx context.Context) error { return b.redis.Ping(ctx).Err() })
	} else {
		log.Warn("REDIS_ADDR is empty; conversation state is kept in memory")
		sessions = conversation.NewMemoryStore()
	}

	b.events = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicTicket)
	tickets := service.NewTicketService(db, eventOptions(b.events)...)
	b.client = telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.RequestTimeout, cfg.Telegram.PollTimeout,
		telegram.WithLogger(log))

	m := metrics.New()
	intake := media.NewIntake(cfg.MediaRoot, b.client, tickets)
	b.driver = bot.NewDriver(tickets, sessions, intake, b.client, m, log)
	b.probeSrv = newServer(cfg.BotAddr(), router.NewProbes(handler.NewHealthHandler("supportbot-bot", ready...), m))
	return b, nil
}

// Run получает обновления Telegram до отмены ctx.
func (b *Bot) Run(ctx context.Context) error {
	defer b.close()
	if err := b.client.Connect(); err != nil {
		return err
	}
	b.log.Info("bot started",
		"probes", b.probeSrv.Addr,
		"media_root", b.cfg.MediaRoot,
		"redis", b.redis != nil,
		"kafka", b.events.Enabled(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(ctx, b.probeSrv) })
	g.Go(func() error {
		defer cancel()
		return b.client.Listen(ctx, b.driver.Handle)
	})
	return g.Wait()
}

func (b *Bot) close() {
	if b.events != nil {
		if err := b.events.Close(); err != nil {
			b.log.LogError(err, "kafka close")
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			b.log.LogError(err, "redis close")
		}
	}
	if err := database.Close(b.db); err != nil {
		b.log.LogError(err, "database close")
	}
}
