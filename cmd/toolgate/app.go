package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/toolgate/internal/auth"
	"github.com/vyrodovalexey/toolgate/internal/authz"
	"github.com/vyrodovalexey/toolgate/internal/config"
	"github.com/vyrodovalexey/toolgate/internal/interceptor"
	"github.com/vyrodovalexey/toolgate/internal/mcp"
	"github.com/vyrodovalexey/toolgate/internal/observability"
	"github.com/vyrodovalexey/toolgate/internal/sharing"
)

const metricsNamespace = "toolgate"

// application holds all application components.
type application struct {
	server   *interceptor.Server
	resolver *sharing.Resolver
	tracer   *observability.Tracer
	config   *config.Config
}

// initApplication wires the authorization pipeline and the HTTP server.
func initApplication(cfg *config.Config, logger observability.Logger) *application {
	tracer := initTracer(cfg, logger)

	authMetrics := auth.NewMetrics(metricsNamespace)
	sharingMetrics := sharing.NewMetrics(metricsNamespace)
	authzMetrics := authz.NewMetrics(metricsNamespace)
	interceptorMetrics := interceptor.NewMetrics(metricsNamespace)
	authMetrics.Init()
	sharingMetrics.Init()
	authzMetrics.Init()
	interceptorMetrics.Init()

	keys := auth.NewJWKSCache(auth.JWKSConfig{
		URL:          cfg.Auth.JWKSURL,
		CacheTTL:     cfg.Auth.JWKSCacheTTL.Duration(),
		FetchTimeout: cfg.Auth.FetchTimeout.Duration(),
	}, auth.WithJWKSMetrics(authMetrics))

	builder := auth.NewBuilder(auth.BuilderConfig{
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		RoleClaim:   cfg.Auth.RoleClaim,
		TenantClaim: cfg.Auth.TenantClaim,
		Algorithms:  cfg.Auth.Algorithms,
	}, keys,
		auth.WithLogger(logger),
		auth.WithMetrics(authMetrics),
	)

	store, err := sharing.NewStore(cfg.Sharing, logger, sharing.WithStoreMetrics(sharingMetrics))
	if err != nil {
		fatal(logger, "failed to create sharing store", observability.Error(err))
	}

	resolver := sharing.NewResolver(
		store,
		sharing.NewMemoryDecisionCache(
			cfg.Sharing.CacheTTL.Duration(),
			cfg.Sharing.CacheMaxEntries,
			sharing.WithCacheLogger(logger),
			sharing.WithCacheMetrics(sharingMetrics),
		),
		sharing.WithResolverLogger(logger),
		sharing.WithResolverMetrics(sharingMetrics),
	)

	table := authz.NewPermissionTable(cfg.Authz.Permissions)
	authorizer := authz.NewAuthorizer(table, resolver,
		authz.WithAuthorizerLogger(logger),
		authz.WithAuthorizerMetrics(authzMetrics),
		authz.WithResourceArgument(cfg.Authz.ResourceArgument),
	)
	filter := authz.NewResponseFilter(table,
		authz.WithFilterLogger(logger),
		authz.WithFilterMetrics(authzMetrics),
	)

	service := interceptor.NewService(
		builder,
		mcp.NewClassifier(cfg.Authz.LifecycleMethods, cfg.Authz.SystemTools),
		authorizer,
		filter,
		interceptor.WithServiceLogger(logger),
		interceptor.WithServiceMetrics(interceptorMetrics),
	)

	server := interceptor.NewServer(cfg.Server, service,
		interceptor.WithServerLogger(logger),
		interceptor.WithServerMetrics(interceptorMetrics),
		interceptor.WithReadyChecks(
			interceptor.ReadyCheck{
				Name:  "sharing_store",
				Check: store.Ping,
			},
			interceptor.ReadyCheck{
				Name:  "jwks_keys",
				Check: keys.Ready,
			},
		),
	)

	return &application{
		server:   server,
		resolver: resolver,
		tracer:   tracer,
		config:   cfg,
	}
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config, logger observability.Logger) *observability.Tracer {
	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "toolgate",
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
		SamplingRate: cfg.Observability.SamplingRate,
		Enabled:      cfg.Observability.TracingEnabled,
	})
	if err != nil {
		fatal(logger, "failed to initialize tracer", observability.Error(err))
	}

	if cfg.Observability.TracingEnabled {
		logger.Info("tracing enabled",
			observability.String("endpoint", cfg.Observability.OTLPEndpoint),
			observability.Float64("samplingRate", cfg.Observability.SamplingRate),
		)
	}
	return tracer
}

// run starts the server and blocks until a shutdown signal or a server
// failure, then tears components down in reverse order.
func run(app *application, logger observability.Logger) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", observability.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			fatal(logger, "server failed", observability.Error(err))
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		logger.Error("failed to stop server gracefully", observability.Error(err))
	}

	if err := app.resolver.Close(); err != nil {
		logger.Error("failed to close sharing resolver", observability.Error(err))
	}

	if err := app.tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown tracer", observability.Error(err))
	}
}
