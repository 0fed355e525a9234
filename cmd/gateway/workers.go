package main

import (
	"context"
	"fmt"

	"github.com/fluxorio/procmesh/pkg/core"
)

// demoWorker is a small illustrative worker exposing a "ping" method and
// an "echo" method, so the gateway's /call endpoint can be demonstrated
// against two registered workers without an external worker
// implementation.
type demoWorker struct {
	label string
}

func newDemoWorker(label string) core.WorkerFactory {
	return func() core.Worker { return &demoWorker{label: label} }
}

func (w *demoWorker) Register(ep *core.Endpoint) {
	ep.RegisterMethod("ping", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		return map[string]interface{}{"worker": w.label, "pong": true}, nil
	})
	ep.RegisterMethod("echo", func(args []interface{}, kwargs map[string]interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, fmt.Errorf("echo requires one argument")
		}
		return map[string]interface{}{"worker": w.label, "echo": args[0]}, nil
	})
}

func (w *demoWorker) BeforeStart(ctx context.Context) error { return nil }
func (w *demoWorker) OnStop() {}
