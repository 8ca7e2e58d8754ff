// internal/app/app.go

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"NIRA-Go/internal/api"
	"NIRA-Go/internal/commands"
	"NIRA-Go/internal/config"
	"NIRA-Go/internal/conversation"
	"NIRA-Go/internal/discord"
	"NIRA-Go/internal/feeds"
	"NIRA-Go/internal/kv"
	"NIRA-Go/internal/metrics"
	"NIRA-Go/internal/scheduler"
	"NIRA-Go/internal/session"
	"NIRA-Go/internal/tracker"
	"NIRA-Go/internal/usage"
)

// Store namespaces.
const (
	nsSessions      = "sessions"
	nsConversations = "conversations"
	nsState         = "state"
	nsLocks         = "locks"
)

// App represents the bot with all of its dependencies.
type App struct {
	Config        *config.Config
	Discord       *discordgo.Session // nil when no bot token is configured
	Redis         *redis.Client      // nil unless a redis backend is selected
	RateLimiter   *rate.Limiter      // Shared gate for outbound AI calls
	Sessions      *session.Store
	Guard         *session.Guard
	Conversations *conversation.ConversationCache
	Tracker       *tracker.Tracker
	UsageCache    *usage.UsageCache
	Registry      *commands.Registry
	Scheduler     *scheduler.Scheduler
	Metrics       *prometheus.Registry
	HTTPServer    *http.Server
}

// NewApp wires every component from cfg. Misconfigured optional features
// are logged and disabled rather than failing startup.
func NewApp(cfg *config.Config) (*App, error) {
	loc := cfg.Location()

	a := &App{
		Config:      cfg,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		Metrics:     metrics.NewRegistry(),
		Scheduler:   scheduler.New(loc),
	}

	if cfg.StoreBackend == kv.BackendRedis || cfg.GuardBackend == kv.BackendRedis {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	opts := kv.Options{Backend: cfg.StoreBackend, DataDir: cfg.DataDir, Redis: a.Redis, Bucket: cfg.BucketName}
	if cfg.StoreBackend == kv.BackendS3 {
		client, err := kv.NewS3Client(cfg.S3Endpoint, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		opts.S3 = client
	}

	a.Sessions = session.NewStore(openStore(opts, nsSessions), session.WithTTL(cfg.SessionTTL))
	a.Conversations = conversation.NewConversationCache(openStore(opts, nsConversations), conversation.WithTTL(cfg.ConversationTTL))
	state := openStore(opts, nsState)
	a.Tracker = tracker.New(state)
	a.UsageCache = usage.NewUsageCache(state, loc)

	guardOpts := opts
	guardOpts.Backend = cfg.GuardBackend
	guardOpts.RedisOpt = []kv.RedisOption{kv.WithTTL(discord.DefaultHandlerTimeout)}
	a.Guard = session.NewGuard(openStore(guardOpts, nsLocks), session.WithClaimTTL(discord.DefaultHandlerTimeout))

	if cfg.DiscordToken != "" {
		dg, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create Discord session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds
		a.Discord = dg
	} else {
		log.Warn("DISCORD_BOT_TOKEN is not set. Discord features are disabled.")
	}

	if err := a.registerCommands(); err != nil {
		return nil, err
	}
	a.registerTasks()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", metrics.Handler(a.Metrics))
	a.HTTPServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// openStore opens namespace, degrading to an in-memory store when the
// configured backend cannot be used.
func openStore(opts kv.Options, namespace string) kv.Store {
	store, err := kv.Open(opts, namespace)
	if err != nil {
		log.Error("Store backend unavailable, falling back to memory", "namespace", namespace, "backend", opts.Backend, "err", err)
		return kv.NewMemoryStore()
	}
	return store
}

func (a *App) completers() (gemini, perplexity api.Completer) {
	cfg := a.Config
	gemini = api.WithRetry(
		api.NewLimited(api.NewGeminiClient(cfg.GeminiAPIKey), a.RateLimiter, "gemini"),
		cfg.RetryAttempts, cfg.RetryDelay, cfg.GeminiFallbackModel)
	perplexity = api.WithRetry(
		api.NewLimited(api.NewPerplexityClient(cfg.PerplexityAPIKey, cfg.PerplexityBaseURL), a.RateLimiter, "perplexity"),
		cfg.RetryAttempts, cfg.RetryDelay, api.ModelSonar)

	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY is not set. /gemini will report it as unavailable.")
	}
	if cfg.PerplexityAPIKey == "" {
		log.Warn("PERPLEXITY_API_KEY is not set. /perplexity will report it as unavailable.")
	}
	return gemini, perplexity
}

func (a *App) registerCommands() error {
	gemini, perplexity := a.completers()

	latency := func() time.Duration { return 0 }
	if a.Discord != nil {
		latency = a.Discord.HeartbeatLatency
	}

	a.Registry = commands.NewRegistry()
	for _, cmd := range []commands.Command{
		commands.NewGemini(gemini, a.Sessions, a.Guard, a.Conversations, commands.GeminiOptions{
			Model:      a.Config.GeminiModel,
			MaxTokens:  a.Config.GeminiMaxTokens,
			MaxHistory: a.Config.MaxHistory,
		}),
		commands.NewPerplexity(perplexity, a.UsageCache, a.Conversations, a.Config.NoLimitUsers),
		commands.NewHotdeal(feeds.NewHotdealSource()),
		commands.NewNews(),
		commands.NewSplatoon(feeds.NewSplatoonSource()),
		commands.NewPing(latency),
	} {
		if err := a.Registry.Register(cmd); err != nil {
			return fmt.Errorf("register command: %w", err)
		}
	}
	return nil
}

func (a *App) registerTasks() {
	cfg := a.Config
	a.Scheduler.RegisterAll(scheduler.SweepTasks(a.Sessions, a.Conversations, cfg.SweepCron)...)

	if a.Discord == nil {
		return
	}

	if poster := a.poster("hotdeal", cfg.HotdealChannelID, cfg.HotdealWebhookURL); poster != nil {
		source := feeds.NewHotdealSource()
		post := &scheduler.RecurringPost{
			Key:     tracker.KeyDailyHotdeal,
			Poster:  poster,
			Tracker: a.Tracker,
			Fetch: func(ctx context.Context) (*discordgo.MessageSend, error) {
				return discord.DigestMessage(source.Digest(ctx), time.Now()), nil
			},
		}
		a.Scheduler.RegisterAll(scheduler.PostTasks(post, cfg.HotdealSendCron, cfg.HotdealEditCron)...)
	}

	if poster := a.poster("news", cfg.NewsChannelID, cfg.NewsWebhookURL); poster != nil {
		source, err := feeds.NewNewsSource(cfg.NewsCategory)
		if err != nil {
			log.Error("Daily news disabled", "category", cfg.NewsCategory, "err", err)
		} else {
			post := &scheduler.RecurringPost{
				Key:     tracker.KeyDailyNews,
				Poster:  poster,
				Tracker: a.Tracker,
				Fetch: func(ctx context.Context) (*discordgo.MessageSend, error) {
					return discord.DigestMessage(source.Digest(ctx), time.Now()), nil
				},
			}
			a.Scheduler.RegisterAll(scheduler.PostTasks(post, cfg.NewsSendCron, cfg.NewsEditCron)...)
		}
	}

	if cfg.SplatoonChannelID != "" {
		source := feeds.NewSplatoonSource()
		post := &scheduler.RecurringPost{
			Key:     tracker.SplatoonKey(cfg.SplatoonChannelID),
			Poster:  discord.NewChannelPoster(a.Discord, cfg.SplatoonChannelID),
			Tracker: a.Tracker,
			Fetch: func(ctx context.Context) (*discordgo.MessageSend, error) {
				schedule, err := source.Fetch(ctx)
				if err != nil {
					return nil, err
				}
				if schedule.Empty() {
					return nil, errors.New("schedule has no upcoming rotations")
				}
				return &discordgo.MessageSend{Embeds: discord.ScheduleEmbeds(schedule)}, nil
			},
		}
		// The schedule message is only ever refreshed; Edit posts it the first time.
		a.Scheduler.RegisterAll(scheduler.PostTasks(post, "", cfg.SplatoonCron)...)
	} else {
		log.Info("Splatoon schedule disabled (SPLATOON_SCHEDULE_CHANNEL_ID not set)")
	}
}

// poster prefers the webhook when both targets are configured.
func (a *App) poster(feature, channelID, webhookURL string) discord.Poster {
	if webhookURL != "" {
		p, err := discord.NewWebhookPoster(a.Discord, webhookURL)
		if err == nil {
			return p
		}
		log.Error("Invalid webhook url", "feature", feature, "err", err)
	}
	if channelID != "" {
		return discord.NewChannelPoster(a.Discord, channelID)
	}
	log.Info("Recurring post disabled (no channel or webhook)", "feature", feature)
	return nil
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.Discord != nil && !a.Discord.DataReady {
		http.Error(w, "discord gateway not ready", http.StatusServiceUnavailable)
		return
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run connects to Discord, registers slash commands, and serves until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.Discord == nil {
		return errors.New("DISCORD_BOT_TOKEN is required to serve")
	}

	router := discord.NewRouter(a.Registry, discord.DefaultHandlerTimeout)
	a.Discord.AddHandler(router.HandleInteraction)
	a.Discord.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info("Logged in", "user", r.User.Username, "guilds", len(r.Guilds))
	})

	if err := a.Discord.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer a.Discord.Close()

	a.syncCommands()

	a.Scheduler.Start()
	if skipped := a.Scheduler.Skipped(); len(skipped) > 0 {
		log.Info("Tasks without a schedule", "tasks", skipped)
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server started", "addr", a.HTTPServer.Addr)
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err := <-serverErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.Scheduler.Stop(shutdownCtx)
	if err := a.HTTPServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "err", err)
	}
	a.Close()

	log.Info("Bot exiting")
	return runErr
}

// syncCommands replaces the application's slash commands with the
// registry's. A failure leaves the previous registration in place.
func (a *App) syncCommands() {
	appID := a.Config.DiscordAppID
	if appID == "" && a.Discord.State != nil && a.Discord.State.User != nil {
		appID = a.Discord.State.User.ID
	}
	defs := a.Registry.Definitions()
	if _, err := a.Discord.ApplicationCommandBulkOverwrite(appID, a.Config.GuildID, defs); err != nil {
		log.Error("Failed to register slash commands", "err", err)
		return
	}
	log.Info("Slash commands registered", "count", len(defs), "guild", a.Config.GuildID)
}

// Sweep runs both maintenance sweeps once.
func (a *App) Sweep(ctx context.Context) error {
	return errors.Join(
		a.Scheduler.RunNow(ctx, scheduler.TaskSweepSessions),
		a.Scheduler.RunNow(ctx, scheduler.TaskSweepConversations),
	)
}

// Close releases external clients.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn("Failed to close redis client", "err", err)
		}
	}
}
