package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gogotex/records/handlers"
	"github.com/gogotex/records/internal/config"
	"github.com/gogotex/records/internal/oidc"
	"github.com/gogotex/records/internal/record/events"
	"github.com/gogotex/records/internal/record/handler"
	"github.com/gogotex/records/internal/record/repository"
	"github.com/gogotex/records/internal/record/service"
	"github.com/gogotex/records/internal/revoke"
	"github.com/gogotex/records/internal/snapshot"
	"github.com/gogotex/records/internal/storage"
	"github.com/gogotex/records/internal/tokens"
	"github.com/gogotex/records/pkg/logger"
	"github.com/gogotex/records/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var errNoVerifier = errors.New("no token verifier configured: set KEYCLOAK_URL/KEYCLOAK_REALM/KEYCLOAK_CLIENT_ID, JWT_SECRET or ALLOW_INSECURE_TOKEN=true")

// server holds the runtime dependencies shared by the HTTP routes.
type server struct {
	cfg      *config.Config
	store    repository.Store
	svc      service.Service
	hub      *events.Hub
	exporter *snapshot.Exporter
	verifier middleware.Verifier
	revoked  *revoke.RedisList
	redis    *redis.Client
	started  time.Time
}

// newServer wires the record service over store. rdb may be nil.
func newServer(ctx context.Context, cfg *config.Config, store repository.Store, rdb *redis.Client) (*server, error) {
	ver, err := selectVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hub := events.NewHub()
	svc := service.New(store, service.Options{StrictDelete: cfg.Records.StrictDelete, Notifier: hub})

	var objects snapshot.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshots disabled: %v", err)
		} else {
			objects = ms
		}
	}

	return &server{
		cfg:      cfg,
		store:    store,
		svc:      svc,
		hub:      hub,
		exporter: snapshot.NewExporter(svc, objects),
		verifier: ver,
		revoked:  revoke.NewRedisList(rdb, ""),
		redis:    rdb,
		started:  time.Now(),
	}, nil
}

// selectVerifier prefers Keycloak OIDC, then HMAC tokens signed with
// JWT_SECRET, then the insecure verifier when explicitly allowed.
func selectVerifier(ctx context.Context, cfg *config.Config) (middleware.Verifier, error) {
	if cfg.Keycloak.URL != "" && cfg.Keycloak.ClientID != "" {
		issuer := oidc.IssuerURL(cfg.Keycloak.URL, cfg.Keycloak.Realm)
		ver, err := oidc.NewVerifier(ctx, issuer, cfg.Keycloak.ClientID)
		if err == nil {
			logger.Infof("using OIDC verifier: issuer=%s", issuer)
			return ver, nil
		}
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
	}
	if cfg.JWT.Secret != "" {
		logger.Infof("using HMAC token verifier")
		return tokens.NewHMACVerifier(cfg.JWT.Secret), nil
	}
	if cfg.JWT.AllowInsecure {
		logger.Warn("enabling insecure token verifier (integration mode)")
		return oidc.NewInsecureVerifier(), nil
	}
	return nil, errNoVerifier
}

func (s *server) router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), gin.Logger(), gin.Recovery(), cors())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", s.ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	auth := middleware.AuthMiddleware(s.verifier, s.revoked)
	r.POST("/auth/logout", auth, s.logout)

	api := r.Group("/api", auth)
	if rl := s.cfg.RateLimit; rl.Enabled {
		var shared *redis.Client
		if rl.UseRedis {
			shared = s.redis
		}
		api.Use(middleware.RateLimit(middleware.Limits{
			RPS:    rl.RPS,
			Burst:  rl.Burst,
			Window: time.Duration(rl.WindowSeconds) * time.Second,
		}, shared))
	}
	handler.NewHandler(s.svc, s.hub, s.exporter).Register(api)

	return r
}

// cors sets permissive headers and answers preflight requests.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// ready returns 200 only when the record store answers and Redis, when
// configured, responds to PING.
func (s *server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	deps := map[string]bool{}

	if _, err := s.store.ReadCounter(ctx); err != nil {
		logger.Warnf("readiness: storage: %v", err)
		deps["storage"] = false
		ready = false
	} else {
		deps["storage"] = true
	}

	if s.redis != nil {
		deps["redis"] = s.redis.Ping(ctx).Err() == nil
		if !deps["redis"] {
			ready = false
		}
	}

	uptime := fmt.Sprintf("%s", time.Since(s.started).Round(time.Second))
	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
}

// logout revokes the presented token for the rest of its lifetime.
func (s *server) logout(c *gin.Context) {
	raw := middleware.RawToken(c)
	ttl := time.Hour
	if tok, err := s.verifier.Verify(c.Request.Context(), raw); err == nil {
		if left := tokens.ExpiresIn(tok); left > 0 {
			ttl = left
		}
	}
	if err := s.revoked.Revoke(c.Request.Context(), raw, ttl); err != nil {
		logger.Errorf("logout: revoke failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.Status(http.StatusNoContent)
}
