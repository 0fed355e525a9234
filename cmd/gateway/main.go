// Command gateway is the front-end application the supervisor's App
// interface expects: a fasthttp-based HTTP front door that turns inbound
// requests into RemoteCalls against named workers. Wiring order is
// config -> logger -> telemetry -> auth/rate-limit/audit -> supervisor.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"

	"github.com/fluxorio/procmesh/internal/audit"
	"github.com/fluxorio/procmesh/internal/authjwt"
	"github.com/fluxorio/procmesh/internal/authstore"
	"github.com/fluxorio/procmesh/internal/ratelimit"
	"github.com/fluxorio/procmesh/internal/telemetry"
	"github.com/fluxorio/procmesh/pkg/core"
	"github.com/fluxorio/procmesh/pkg/corelog"
	promexport "github.com/fluxorio/procmesh/pkg/observability/prometheus"
)

// gatewayApp implements core.App: Start() on the supervisor calls Listen,
// and Stop() calls Close.
type gatewayApp struct {
	cfg    *GatewayConfig
	logger corelog.Logger
	svc    *core.Service

	authKeys    *authstore.Store
	rateLimiter *ratelimit.Limiter
	tracing     *telemetry.Tracing
	observer    *telemetry.ObserverHub
	audit       *audit.Sink
	metrics     *promexport.Metrics

	fastServer   *fasthttp.Server
	obsServer    *http.Server
	watchStop    func()
	metricsUnsub func()
	sweepStop    chan struct{}
}

func (g *gatewayApp) issueToken(id authstore.Identity) (string, error) {
	return authjwt.Generate([]byte(g.cfg.Auth.JWTSecret), id.UserID, id.Username, id.Role, g.cfg.tokenTTL())
}

func (g *gatewayApp) authenticate(ctx *fasthttp.RequestCtx) (authstore.Identity, error) {
	token := bearerToken(ctx)
	if token == "" {
		return authstore.Identity{}, errors.New("missing bearer token")
	}
	claims, err := authjwt.Validate([]byte(g.cfg.Auth.JWTSecret), token)
	if err != nil {
		return authstore.Identity{}, err
	}
	return authstore.Identity{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

// Listen starts the fasthttp listener (the core's domain: /call,
// /auth/login, /healthz) and a second, plain net/http listener one port
// above it carrying /watch (gorilla/websocket) and /metrics (promhttp) -
// neither library speaks fasthttp's request type, so they get their own
// listener rather than a half-hearted adapter.
func (g *gatewayApp) Listen(ctx context.Context, svc *core.Service, host string, port int) error {
	g.svc = svc

	g.fastServer = &fasthttp.Server{Handler: g.fasthttpHandler}
	addr := fmt.Sprintf("%s:%d", host, port)
	go func() {
		if err := g.fastServer.ListenAndServe(addr); err != nil {
			g.logger.Errorf("fasthttp listener on %s stopped: %v", addr, err)
		}
	}()
	g.logger.Infof("gateway: /call, /auth/login, /healthz listening on %s", addr)

	mux := http.NewServeMux()
	mux.HandleFunc("/watch", g.handleWatch)
	mux.Handle("/metrics", promhttp.HandlerFor(promexport.DefaultRegistry, promhttp.HandlerOpts{}))
	obsAddr := fmt.Sprintf("%s:%d", host, port+1)
	g.obsServer = &http.Server{Addr: obsAddr, Handler: mux}
	go func() {
		if err := g.obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			g.logger.Errorf("observability listener on %s stopped: %v", obsAddr, err)
		}
	}()
	g.logger.Infof("gateway: /watch, /metrics listening on %s", obsAddr)

	if g.observer != nil {
		g.watchStop = g.observer.Watch(svc)
		g.logger.Infof("gateway: observer hub publishing on %s", g.observer.ClientURL())
	}

	g.sweepStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.rateLimiter.Sweep()
			case <-g.sweepStop:
				return
			}
		}
	}()

	g.metrics.UpdateWorkerCount(svc.WorkerCount())
	metricEvents, unsubMetrics := svc.Subscribe(32)
	g.metricsUnsub = unsubMetrics
	go func() {
		for ev := range metricEvents {
			g.metrics.RecordSupervisorEvent(string(ev.Kind))
			g.metrics.UpdateWorkerCount(svc.WorkerCount())
		}
	}()

	return nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWatch streams every worker respawn / watchdog-timeout event to a
// connected observer as JSON frames.
func (g *gatewayApp) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warnf("watch: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, unsubscribe := g.svc.Subscribe(32)
	defer unsubscribe()

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// Close stops both listeners and the observer hub.
func (g *gatewayApp) Close() error {
	if g.watchStop != nil {
		g.watchStop()
	}
	if g.metricsUnsub != nil {
		g.metricsUnsub()
	}
	if g.sweepStop != nil {
		close(g.sweepStop)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if g.fastServer != nil {
		if err := g.fastServer.ShutdownWithContext(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if g.obsServer != nil {
		if err := g.obsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	if g.observer != nil {
		if err := g.observer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.audit != nil {
		if err := g.audit.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.tracing != nil {
		if err := g.tracing.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func main() {
	cfg, err := loadGatewayConfig("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := corelog.NewJSON()

	tracing, err := telemetry.InitTracing(context.Background(), telemetry.TracingConfig{
		ServiceName: "procmesh-gateway",
		Exporter:    cfg.Observability.TracingExporter,
		Endpoint:    cfg.Observability.TracingEndpoint,
		SampleRate:  1.0,
	})
	if err != nil {
		logger.Warnf("tracing disabled: %v", err)
		tracing, _ = telemetry.InitTracing(context.Background(), telemetry.TracingConfig{ServiceName: "procmesh-gateway"})
	}

	observer, err := telemetry.NewObserverHub(cfg.Observability.NATSSubjectPrefix, logger)
	if err != nil {
		logger.Warnf("observer hub disabled: %v", err)
		observer = nil
	}

	var auditSink *audit.Sink
	if cfg.Audit.Enabled {
		auditSink, err = audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			logger.Warnf("audit sink disabled: %v", err)
			auditSink = nil
		}
	}

	app := &gatewayApp{
		cfg:         cfg,
		logger:      logger,
		authKeys:    authstore.New(),
		rateLimiter: ratelimit.New(cfg.Auth.RequestsPerMinute),
		tracing:     tracing,
		observer:    observer,
		audit:       auditSink,
		metrics:     promexport.GetMetrics(),
	}

	keyID, secret, err := app.authKeys.Issue("1", "demo", "operator")
	if err != nil {
		log.Fatalf("issue demo api key: %v", err)
	}
	logger.Infof("demo API key issued: key_id=%s secret=%s (POST /auth/login to exchange for a bearer token)", keyID, secret)

	svc := core.NewService(cfg.toProvider(), logger)

	if err := svc.Start(app, map[string]core.WorkerFactory{
		"worker.primary":   newDemoWorker("primary"),
		"worker.secondary": newDemoWorker("secondary"),
	}); err != nil {
		log.Fatalf("service stopped: %v", err)
	}
}
