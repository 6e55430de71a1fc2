package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	appauthz "github.com/astro-web3/teams-gate/internal/app/authz"
	"github.com/astro-web3/teams-gate/internal/config"
	authzdomain "github.com/astro-web3/teams-gate/internal/domain/authz"
	"github.com/astro-web3/teams-gate/internal/infra/cache"
	"github.com/astro-web3/teams-gate/internal/infra/directory"
	httpclient "github.com/astro-web3/teams-gate/pkg/http"
	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/astro-web3/teams-gate/pkg/otel"
	"github.com/astro-web3/teams-gate/pkg/tracer"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	httpServer  *http.Server
	stopJanitor context.CancelFunc
	redisClient *redis.Client
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "teams-gate"
)

func NewServer(cfg *config.Config) (*Server, error) {
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	otelCfg := otel.DefaultConfig(serviceName)
	otelCfg.ServiceVersion = cfg.Observability.ServiceVersion
	otelCfg.EndpointURL = cfg.Observability.TracingEndpointURL
	otelCfg.Enabled = cfg.Observability.TraceEnabled
	otelCfg.MetricsEnabled = cfg.Observability.MetricsEnabled
	otelCfg.MetricsEndpointURL = cfg.Observability.MetricsEndpointURL
	otelCfg.MetricsInterval = cfg.Observability.MetricsInterval
	if err := tracer.InitTracer(otelCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	meterProvider, err := otel.InitMeter(otelCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter: %w", err)
	}

	srv := &Server{}

	store, err := srv.newStore(cfg)
	if err != nil {
		return nil, err
	}

	rosterClient := directory.NewClient(httpclient.New(httpclient.Options{
		BaseURL:    cfg.Directory.BaseURL,
		Timeout:    cfg.Directory.Timeout,
		RetryCount: cfg.Directory.RetryCount,
		AuthToken:  cfg.Directory.Token,
	}))

	memberships, err := authzdomain.NewMembershipCache(
		store,
		rosterClient,
		cfg.CacheTTL(),
		authzdomain.WithLookupTimeout(cfg.Membership.LookupTimeout),
		authzdomain.WithMeterProvider(meterProvider),
	)
	if err != nil {
		_ = srv.release()
		return nil, fmt.Errorf("failed to create membership cache: %w", err)
	}

	evaluator := appauthz.NewEvaluator(
		appauthz.NewTeamResolver(cfg.Membership.MaxBodyBytes),
		authzdomain.NewService(memberships, authzdomain.WithServiceMeterProvider(meterProvider)),
	)

	authn, err := newAuthenticator(cfg)
	if err != nil {
		_ = srv.release()
		return nil, err
	}

	upstreamURL, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		_ = srv.release()
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	upstream := NewUpstreamProxy(upstreamURL, ForwardHeaders{
		TeamID: cfg.Upstream.ForwardHeaders.TeamID,
		UserID: cfg.Upstream.ForwardHeaders.UserID,
	}, nil)

	router := NewRouter(cfg, RouterDeps{
		Authenticator: authn,
		Evaluator:     evaluator,
		Routes:        TeamRoutes(cfg.Gate.Rules),
		Upstream:      upstream,
	})

	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return srv, nil
}

func (s *Server) newStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Membership.CacheBackend == config.CacheBackendRedis {
		client, err := cache.NewRedisClient(context.Background(), cfg.Redis.URL, cfg.Redis.PoolSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}
		s.redisClient = client
		return cache.NewRedisStore(client), nil
	}

	store := cache.NewMemoryStore()
	janitorCtx, cancel := context.WithCancel(context.Background())
	s.stopJanitor = cancel
	go store.RunJanitor(janitorCtx, cfg.Membership.JanitorInterval)
	return store, nil
}

func newAuthenticator(cfg *config.Config) (Authenticator, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeJWT:
		return NewJWTAuthenticator(cfg.Auth.JWT.Secret, cfg.Auth.JWT.Issuer, cfg.Auth.JWT.Audience), nil
	case config.AuthModeHeader:
		return NewHeaderAuthenticator(cfg.Auth.HeaderKeys.ObjectID), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}

func (s *Server) release() error {
	if s.stopJanitor != nil {
		s.stopJanitor()
	}
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.httpServer.Shutdown(ctx), s.release())
}
