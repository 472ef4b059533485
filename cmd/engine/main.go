// Command engine is the flowengine binary: bootstrap the shared components,
// wire the node registry and the Engine, then serve until a shutdown signal
// arrives. The same binary re-execs itself as a node-worker subprocess for
// the Pool Dispatcher's process substrate.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/lyzr/flowengine/common/bootstrap"
	"github.com/lyzr/flowengine/internal/builder"
	"github.com/lyzr/flowengine/internal/demo"
	"github.com/lyzr/flowengine/internal/dispatch"
	"github.com/lyzr/flowengine/internal/engine"
	"github.com/lyzr/flowengine/internal/registry"
	"github.com/lyzr/flowengine/internal/template"
	"github.com/lyzr/flowengine/internal/tracker"
)

func main() {
	nodeWorker := flag.Bool("node-worker", false, "run as a process-pool node worker subprocess")
	memBackend := flag.Bool("dev", false, "use the in-memory backend instead of Redis")
	devNodeID := flag.String("dev-node", "", "run a single node in development mode and exit")
	workflowID := flag.String("workflow-id", "", "workflow instance id, used to namespace the dead-letter queue (random if omitted)")
	flag.Parse()

	reg := registry.New()
	demo.Register(reg)

	if *nodeWorker {
		dispatch.ServeNodeWorker(reg)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []bootstrap.Option
	if *memBackend {
		opts = append(opts, bootstrap.WithMemoryBackend())
	}
	components, err := bootstrap.Setup(ctx, "flowengine", opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap failed:", err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	reg.MustRegister("queue-writer", demo.NewQueueWriterFactory(components.Backend))
	reg.MustRegister("queue-reader", demo.NewQueueReaderFactory(components.Backend))

	runID := *workflowID
	if runID == "" {
		runID = uuid.NewString()
	}
	components.Logger.Info("starting workflow run", "workflow_id", runID)

	renderer := template.New()
	t := tracker.New()
	if components.Redis != nil {
		t.Subscribe(tracker.NewRedisMirror(components.Redis, runID).OnEvent(t))
	}
	disp := dispatch.New(dispatch.Config{
		ThreadPoolSize:    components.Config.Dispatch.ThreadPoolSize,
		ProcessPoolSize:   components.Config.Dispatch.ProcessPoolSize,
		ProcessWorkerPath: processWorkerPath(components.Config.Dispatch.ProcessWorkerPath),
		ProcessWorkerArgs: []string{"-node-worker"},
	})
	defer disp.Shutdown(components.Config.Dispatch.ShutdownGrace)

	eng := engine.New(reg, disp, components.Backend, renderer, t, runID)
	if err := eng.Load(demoWorkflow()); err != nil {
		components.Logger.Error("failed to load demo workflow", "error", err)
		os.Exit(1)
	}

	if *devNodeID != "" {
		out, err := eng.RunDevelopmentNode(ctx, *devNodeID, nil)
		if err != nil {
			components.Logger.Error("development node run failed", "node", *devNodeID, "error", err)
			os.Exit(1)
		}
		components.Logger.Info("development node run complete", "node", *devNodeID, "output", out.Data)
		return
	}

	go func() {
		if err := eng.RunProduction(ctx); err != nil {
			components.Logger.Error("workflow run failed", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: ":8080", Handler: mux}
	go func() {
		components.Logger.Info("health endpoint listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			components.Logger.Error("health server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	components.Logger.Info("shutdown signal received")
	eng.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), components.Config.Dispatch.ShutdownGrace)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// demoWorkflow builds the fixture workflow description the binary runs by
// default: a counting producer P feeding a passthrough blocking node B,
// conditionally routed by a yes/no gate into a cross-loop queue
// writer/reader pair, terminating at N.
func demoWorkflow() builder.WorkflowDescription {
	yes := "yes"
	no := "no"
	return builder.WorkflowDescription{
		Nodes: []builder.NodeDescription{
			{ID: "P", Type: "counter-producer", Data: builder.NodeData{Form: map[string]interface{}{"limit": float64(3)}}},
			{ID: "B", Type: "passthrough-blocking"},
			{ID: "C", Type: "yes-no-conditional", Data: builder.NodeData{Form: map[string]interface{}{"field": "seen"}}},
			{ID: "W", Type: "queue-writer"},
			{ID: "P2", Type: "queue-reader"},
			{ID: "N", Type: "terminator-nonblocking"},
		},
		Edges: []builder.EdgeDescription{
			{Source: "P", Target: "B"},
			{Source: "B", Target: "C"},
			{Source: "C", Target: "W", SourceHandle: &yes},
			{Source: "C", Target: "N", SourceHandle: &no},
			{Source: "W", Target: "P2", SourceHandle: &queueHandle},
			{Source: "P2", Target: "N"},
		},
	}
}

var queueHandle = builder.QueueHandle

// processWorkerPath defaults to this same binary (self-re-exec) unless an
// explicit worker path is configured.
func processWorkerPath(configured string) string {
	if configured != "" {
		return configured
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return exe
}
