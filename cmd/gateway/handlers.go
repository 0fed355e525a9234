package main

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fluxorio/procmesh/pkg/core"
)

type callRequest struct {
	Worker    string                 `json:"worker"`
	Method    string                 `json:"method"`
	Args      []interface{}          `json:"args"`
	Kwargs    map[string]interface{} `json:"kwargs"`
	TimeoutMS int64                  `json:"timeout_ms"`
}

// handleCall is the /call endpoint: it authenticates the bearer token,
// enforces the per-identity rate limit, then issues one RemoteCall
// against the caller-chosen worker - any registered name, not a
// hardcoded pair.
func (g *gatewayApp) handleCall(ctx *fasthttp.RequestCtx) {
	started := time.Now()

	identity, authErr := g.authenticate(ctx)
	if authErr != nil {
		writeJSONError(ctx, fasthttp.StatusUnauthorized, authErr.Error())
		return
	}

	if !g.rateLimiter.Allow(identity.Username) {
		g.metrics.RecordRateLimitRejected(identity.Username)
		writeJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req callRequest
	if err := core.JSONDecode(ctx.PostBody(), &req); err != nil {
		writeJSONError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}
	if req.Worker == "" || req.Method == "" {
		writeJSONError(ctx, fasthttp.StatusBadRequest, "worker and method are required")
		return
	}

	spanCtx, span := g.tracing.Tracer().Start(context.Background(), "gateway.remote_call")
	span.SetAttributes(
		attribute.String("procmesh.worker", req.Worker),
		attribute.String("procmesh.method", req.Method),
		attribute.String("procmesh.identity", identity.Username),
	)
	defer span.End()

	var opts []core.CallOption
	if req.TimeoutMS > 0 {
		opts = append(opts, core.WithDeadline(time.Duration(req.TimeoutMS)*time.Millisecond))
	}

	future := g.svc.RemoteCall(req.Worker, req.Method, req.Args, req.Kwargs, opts...)
	result, err := future.Wait(spanCtx)
	duration := time.Since(started)

	g.metrics.RecordHTTPRequest("POST", "/call", statusLabel(err), duration, int64(len(ctx.PostBody())), 0)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if g.observer != nil {
			g.observer.PublishCallFailure(req.Worker, req.Method, err.Error())
		}
		if g.audit != nil {
			_ = g.audit.Record(context.Background(), req.Worker, req.Method, false, duration)
		}
		writeJSONError(ctx, fasthttp.StatusBadGateway, err.Error())
		return
	}

	if g.audit != nil {
		_ = g.audit.Record(context.Background(), req.Worker, req.Method, true, duration)
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"result": result})
}

// handleLogin issues a bearer token for a valid API key, the credential
// the JWT-protected /call endpoint ultimately trusts. Backed by the
// in-memory authstore rather than a database-backed user table.
func (g *gatewayApp) handleLogin(ctx *fasthttp.RequestCtx) {
	var req struct {
		KeyID  string `json:"key_id"`
		Secret string `json:"secret"`
	}
	if err := core.JSONDecode(ctx.PostBody(), &req); err != nil {
		writeJSONError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	identity, err := g.authKeys.Authenticate(req.KeyID, req.Secret)
	if err != nil {
		writeJSONError(ctx, fasthttp.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := g.issueToken(identity)
	if err != nil {
		writeJSONError(ctx, fasthttp.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"token": token})
}

func (g *gatewayApp) handleHealth(ctx *fasthttp.RequestCtx) {
	body := map[string]interface{}{
		"status": "ok",
		"state":  g.svc.State().String(),
	}
	if g.audit != nil {
		health := g.audit.Health(ctx)
		g.metrics.UpdateAuditPool(health.Open, health.Idle, health.InUse)
		body["audit_pool"] = health
	}
	writeJSON(ctx, fasthttp.StatusOK, body)
}

func (g *gatewayApp) fasthttpHandler(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/call":
		if !ctx.IsPost() {
			writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "POST only")
			return
		}
		g.handleCall(ctx)
	case "/auth/login":
		if !ctx.IsPost() {
			writeJSONError(ctx, fasthttp.StatusMethodNotAllowed, "POST only")
			return
		}
		g.handleLogin(ctx)
	case "/healthz":
		g.handleHealth(ctx)
	default:
		writeJSONError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, payload interface{}) {
	data, err := core.JSONEncode(payload)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func writeJSONError(ctx *fasthttp.RequestCtx, status int, message string) {
	writeJSON(ctx, status, map[string]string{"error": message})
}

func statusLabel(err error) string {
	if err == nil {
		return strconv.Itoa(fasthttp.StatusOK)
	}
	return strconv.Itoa(fasthttp.StatusBadGateway)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header.
func bearerToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
