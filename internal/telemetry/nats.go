package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	natssrv "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/fluxorio/procmesh/pkg/core"
	"github.com/fluxorio/procmesh/pkg/corelog"
)

// ObserverHub embeds an in-process NATS server and republishes
// core.Event values onto it - an observer-only side channel external
// monitoring tools can subscribe to, on prefix.kind.worker subjects.
// Strictly one-way: nothing in the router/mailbox path reads from it.
type ObserverHub struct {
	server *natssrv.Server
	conn   *nats.Conn
	prefix string
	logger corelog.Logger
}

// NewObserverHub starts an embedded NATS server on an OS-assigned port and
// opens a publishing connection to it.
func NewObserverHub(prefix string, logger corelog.Logger) (*ObserverHub, error) {
	server, err := natssrv.NewServer(&natssrv.Options{Port: -1})
	if err != nil {
		return nil, fmt.Errorf("start embedded nats server: %w", err)
	}
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		server.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready")
	}

	conn, err := nats.Connect(server.ClientURL())
	if err != nil {
		server.Shutdown()
		return nil, fmt.Errorf("connect to embedded nats server: %w", err)
	}

	return &ObserverHub{server: server, conn: conn, prefix: prefix, logger: logger}, nil
}

// ClientURL is the address external observers connect to.
func (h *ObserverHub) ClientURL() string { return h.server.ClientURL() }

// Watch subscribes to svc's lifecycle events and republishes each one to
// "<prefix>.<kind>.<worker>" until stop is called.
func (h *ObserverHub) Watch(svc *core.Service) (stop func()) {
	events, unsubscribe := svc.Subscribe(64)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				h.publishEvent(ev)
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsubscribe()
		close(done)
	}
}

// PublishCallFailure publishes a call-failure observation the gateway
// itself detected (the core has no notion of "call" beyond CALL/FUTURE
// envelopes, so this is recorded at the front-end, not inside core.Event).
func (h *ObserverHub) PublishCallFailure(worker, method, reason string) {
	h.publish("call_failed", worker, map[string]interface{}{
		"method": method,
		"reason": reason,
		"at":     time.Now().Format(time.RFC3339Nano),
	})
}

func (h *ObserverHub) publishEvent(ev core.Event) {
	h.publish(string(ev.Kind), ev.Worker, map[string]interface{}{
		"detail": ev.Detail,
		"at":     ev.At.Format(time.RFC3339Nano),
	})
}

func (h *ObserverHub) publish(kind, worker string, payload map[string]interface{}) {
	subject := fmt.Sprintf("%s.%s.%s", h.prefix, kind, worker)
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warnf("observer hub: failed to marshal %s: %v", subject, err)
		return
	}
	if err := h.conn.Publish(subject, data); err != nil {
		h.logger.Warnf("observer hub: publish to %s failed: %v", subject, err)
	}
}

// Close drains the publishing connection and shuts the embedded server
// down.
func (h *ObserverHub) Close() error {
	h.conn.Close()
	h.server.Shutdown()
	return nil
}
