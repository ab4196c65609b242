package bootstrap

import (
	"net/http"
	"strings"

	"minerva/internal/adapters/ai"
	"minerva/internal/adapters/config"
	errnoop "minerva/internal/adapters/errors/noop"
	"minerva/internal/adapters/errors/sentry"
	"minerva/internal/adapters/providers/alphavantage"
	"minerva/internal/adapters/providers/finnhub"
	"minerva/internal/adapters/providers/ratelimit"
	"minerva/internal/adapters/providers/retry"
	"minerva/internal/adapters/providers/yahoo"
	redisclient "minerva/internal/adapters/redis"
	"minerva/internal/agents"
	"minerva/internal/api"
	"minerva/internal/api/health"
	"minerva/internal/domain/conversation"
	"minerva/internal/domain/marketdata"
	"minerva/internal/gateway"
	"minerva/internal/metrics"
	"minerva/internal/repository/memory"
	"minerva/internal/router"
	"minerva/internal/services/analysis"
	"minerva/internal/tools"
	"minerva/internal/tools/market"
	"minerva/pkg/errors"
	"minerva/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects the optional cache backend. The engine
// runs fully without Redis, so a missing host disables caching instead of
// failing startup.
func (c *Container) MustInitInfrastructure() {
	if !c.Config.Redis.Enabled() {
		c.Log.Info("Redis not configured, market data cache disabled")
		return
	}

	c.Log.Info("Connecting to Redis...")
	client, err := redisclient.NewClient(c.Config.Redis)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
	c.Redis = client
	c.Log.Info("✓ Redis connected")
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories initializes domain repositories
func (c *Container) MustInitRepositories() {
	c.Repos.Session = memory.NewSessionRepository(c.Config.Session.MaxTurns, c.Log)
	c.Log.Info("✓ Repositories initialized")
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes external adapters (AI chat, market data)
func (c *Container) MustInitAdapters() {
	var err error

	// AI chat providers
	c.Adapters.AIRegistry, c.Adapters.ChatProvider, err = provideChatProviders(c.Config.AI, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to initialize chat providers: %v", err)
	}

	// Market data provider chain behind the gateway
	c.Adapters.Cache, c.Adapters.Gateway, err = provideMarketData(c.Config, c.Redis, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to initialize market data gateway: %v", err)
	}
}

// ========================================
// Phase 5: Business Logic
// ========================================

// MustInitBusiness initializes business logic (tools, workers, routing)
func (c *Container) MustInitBusiness() {
	deps := market.Deps{Gateway: c.Adapters.Gateway}

	// The junior tier works from prefetched quotes plus the cheap lookup
	// tools; the master tier additionally gets history and technicals.
	c.Business.JuniorTools = provideToolRegistry(deps, false)
	c.Business.MasterTools = provideToolRegistry(deps, true)

	c.Business.DefaultProvider = c.Adapters.ChatProvider.Name()
	c.Business.DefaultModel = c.Config.AI.Model

	c.Business.Engine = agents.NewEngine(c.Adapters.ChatProvider)

	configs := agents.WorkerConfigs(c.Config.AI.Model, c.Config.Workers)
	c.Business.Junior = agents.NewJuniorWorker(
		configs[conversation.WorkerJunior],
		c.Business.Engine,
		c.Adapters.Gateway,
		c.Business.JuniorTools,
	)
	c.Business.Master = agents.NewMasterWorker(
		configs[conversation.WorkerMaster],
		c.Business.Engine,
		c.Adapters.Gateway,
		c.Business.MasterTools,
	)

	c.Business.Router = router.New(
		c.Adapters.ChatProvider,
		c.Config.AI.Model,
		c.Config.Workers.ExtractTemperature,
		c.Config.Router,
	)
	c.Business.Synthesizer = agents.NewSynthesizer()

	c.Business.Coordinator = agents.NewCoordinator(
		c.Business.Router,
		c.Business.Junior,
		c.Business.Master,
		c.Business.Synthesizer,
		c.Repos.Session,
		c.Config.Workers.PreseedMaster,
	)

	c.Log.Infow("✓ Business logic initialized",
		"provider", c.Business.DefaultProvider,
		"model", c.Business.DefaultModel,
		"junior_tools", len(c.Business.JuniorTools.List()),
		"master_tools", len(c.Business.MasterTools.List()),
	)
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication initializes application layer (service facade, HTTP)
func (c *Container) MustInitApplication() {
	configs := agents.WorkerConfigs(c.Config.AI.Model, c.Config.Workers)
	tiers := []analysis.WorkerTier{
		{
			ID:    conversation.WorkerJunior,
			Name:  configs[conversation.WorkerJunior].Name,
			Tools: c.Business.JuniorTools.List(),
		},
		{
			ID:    conversation.WorkerMaster,
			Name:  configs[conversation.WorkerMaster].Name,
			Tools: c.Business.MasterTools.List(),
		},
	}

	c.Application.Analysis = analysis.NewService(
		c.Business.Coordinator,
		c.Repos.Session,
		c.Adapters.AIRegistry,
		c.Adapters.Gateway,
		tiers,
		c.Config.App.Name,
		c.Config.App.Version,
		c.Redis != nil,
	)

	var redisConn *goredis.Client
	if c.Redis != nil {
		redisConn = c.Redis.Client()
	}

	chatNames := make([]string, 0, 2)
	for _, p := range c.Adapters.AIRegistry.List() {
		chatNames = append(chatNames, p.Name())
	}

	c.Application.HealthHandler = health.New(
		c.Log,
		redisConn,
		chatNames,
		c.Adapters.Gateway.Providers(),
		c.Config.App.Name,
		c.Config.App.Version,
	)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.HTTP.Port,
		ServiceName: c.Config.App.Name,
		Version:     c.Config.App.Version,
	}, c.Application.HealthHandler, c.Log)

	// Initialize metrics
	if c.Config.HTTP.MetricsEnabled {
		metrics.Init()
		c.Log.Info("✓ Metrics initialized")
	} else {
		c.Log.Info("Metrics collection disabled")
	}

	c.Log.Info("✓ Application layer initialized")
}

// ========================================
// Helper Provider Functions
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("✓ Error tracking initialized (Sentry)")
	return tracker
}

// provideChatProviders registers every chat provider with a configured key
// and resolves the default one. At least one key must be present.
func provideChatProviders(cfg config.AIConfig, log *logger.Logger) (*ai.ProviderRegistry, ai.ChatProvider, error) {
	registry := ai.NewProviderRegistry()

	if cfg.OpenAIKey != "" {
		provider, err := ai.NewOpenAIProvider(cfg.OpenAIKey, cfg.Timeout)
		if err != nil {
			return nil, nil, errors.Wrap(err, "openai provider")
		}
		if err := registry.Register(provider); err != nil {
			return nil, nil, err
		}
		log.Info("✓ OpenAI chat provider registered")
	}

	if cfg.DeepSeekKey != "" {
		provider, err := ai.NewDeepSeekProvider(cfg.DeepSeekKey, cfg.Timeout)
		if err != nil {
			return nil, nil, errors.Wrap(err, "deepseek provider")
		}
		if err := registry.Register(provider); err != nil {
			return nil, nil, err
		}
		log.Info("✓ DeepSeek chat provider registered")
	}

	registered := registry.List()
	if len(registered) == 0 {
		return nil, nil, errors.Wrap(errors.ErrUnavailable,
			"no chat provider configured, set OPENAI_API_KEY or DEEPSEEK_API_KEY")
	}

	chat, err := registry.Get(cfg.DefaultProvider)
	if err != nil {
		chat = registered[0]
		log.Warnf("Default AI provider %q not registered, using %s", cfg.DefaultProvider, chat.Name())
	}

	return registry, chat, nil
}

// provideMarketData builds the provider chain in the configured fallback
// order, skipping providers whose API keys are missing. Yahoo needs no key
// and is the usual last resort.
func provideMarketData(cfg *config.Config, redisClient *redisclient.Client, log *logger.Logger) (*gateway.Cache, *gateway.Gateway, error) {
	httpClient := &http.Client{Timeout: cfg.MarketData.RequestTimeout}

	var providers []marketdata.Provider
	for _, name := range cfg.MarketData.ProviderOrder {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "alphavantage":
			if cfg.MarketData.AlphaVantageKey == "" {
				log.Warn("Alpha Vantage key not set, provider skipped")
				continue
			}
			client, err := alphavantage.NewClient(alphavantage.Config{
				APIKey:     cfg.MarketData.AlphaVantageKey,
				HTTPClient: httpClient,
			})
			if err != nil {
				return nil, nil, errors.Wrap(err, "alphavantage client")
			}
			providers = append(providers, client)
		case "finnhub":
			if cfg.MarketData.FinnhubKey == "" {
				log.Warn("Finnhub key not set, provider skipped")
				continue
			}
			client, err := finnhub.NewClient(finnhub.Config{
				APIKey:     cfg.MarketData.FinnhubKey,
				HTTPClient: httpClient,
			})
			if err != nil {
				return nil, nil, errors.Wrap(err, "finnhub client")
			}
			providers = append(providers, client)
		case "yahoo":
			providers = append(providers, yahoo.NewClient(yahoo.Config{HTTPClient: httpClient}))
		default:
			log.Warnf("Unknown market data provider %q in PROVIDER_ORDER, skipped", name)
		}
	}

	if len(providers) == 0 {
		return nil, nil, errors.Wrap(errors.ErrUnavailable,
			"no market data providers available, check PROVIDER_ORDER and API keys")
	}

	limiter := ratelimit.NewRegistry()

	cache := gateway.NewCache(gateway.CacheConfig{
		Enabled:    redisClient != nil,
		QuoteTTL:   cfg.Cache.QuoteTTL,
		ProfileTTL: cfg.Cache.ProfileTTL,
		HistoryTTL: cfg.Cache.HistoryTTL,
	}, redisClient)

	gw, err := gateway.New(providers, limiter, cache, retry.Config{
		MaxRetries:   cfg.MarketData.MaxRetries,
		InitialDelay: cfg.MarketData.InitialBackoff,
		MaxDelay:     cfg.MarketData.MaxBackoff,
		Strategy:     retry.StrategyExponential,
		Multiplier:   2.0,
	})
	if err != nil {
		return nil, nil, err
	}

	log.Infow("✓ Market data gateway initialized",
		"providers", gw.Providers(),
		"cache_enabled", redisClient != nil,
	)
	return cache, gw, nil
}

// provideToolRegistry assembles the tool set for one worker tier
func provideToolRegistry(deps market.Deps, deep bool) *tools.Registry {
	registry := tools.NewRegistry()

	registry.Register(market.NewQuoteTool(deps))
	registry.Register(market.NewProfileTool(deps))

	if deep {
		registry.Register(market.NewHistoryTool(deps))
		registry.Register(market.NewTechnicalsTool(deps))
	}

	return registry
}
