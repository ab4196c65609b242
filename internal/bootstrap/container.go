package bootstrap

import (
	"context"
	"sync"

	"minerva/internal/adapters/ai"
	"minerva/internal/adapters/config"
	redisclient "minerva/internal/adapters/redis"
	"minerva/internal/agents"
	"minerva/internal/api"
	"minerva/internal/api/health"
	"minerva/internal/domain/conversation"
	"minerva/internal/gateway"
	"minerva/internal/router"
	"minerva/internal/services/analysis"
	"minerva/internal/tools"
	"minerva/pkg/errors"
	"minerva/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (nil when no cache backend is configured)
	Redis *redisclient.Client

	// Domain Layer - Repositories
	Repos *Repositories

	// External Adapters
	Adapters *Adapters

	// Business Logic
	Business *Business

	// Application Layer
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Session conversation.Repository
}

// Adapters groups all external adapters
type Adapters struct {
	// AI chat providers
	AIRegistry   *ai.ProviderRegistry
	ChatProvider ai.ChatProvider // default provider used by workers and the router

	// Market data
	Cache   *gateway.Cache
	Gateway *gateway.Gateway
}

// Business groups business logic components
type Business struct {
	JuniorTools *tools.Registry
	MasterTools *tools.Registry

	Engine      *agents.Engine
	Junior      *agents.JuniorWorker
	Master      *agents.MasterWorker
	Router      *router.Router
	Synthesizer *agents.Synthesizer
	Coordinator *agents.Coordinator

	DefaultProvider string
	DefaultModel    string
}

// Application groups application layer components
type Application struct {
	Analysis      *analysis.Service
	HealthHandler *health.Handler
	HTTPServer    *api.Server
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Business:    &Business{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitBusiness()
	c.MustInitApplication()
}

// Start starts the operational HTTP server in the background
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}
