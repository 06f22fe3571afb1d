// Command qapi-watcherd runs a Temporal worker that supervises one
// node's health, restarting its systemd unit through watchdog when the
// façade's ping fails repeatedly.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	qapi "github.com/pierreaubert/qapi-go"
	"github.com/pierreaubert/qapi-go/healthflow"
	"github.com/pierreaubert/qapi-go/watchdog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

const taskQueue = "qapi-watcherd"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	configFile := flag.String("conf", "", "TOML configuration file")
	flag.Parse()

	if *configFile == "" {
		log.Fatal("configuration file is required (use -conf flag)")
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	log.Printf("connecting to %s, watching unit %s", cfg.Endpoint, cfg.SystemdUnit)

	ctx := context.Background()
	q, err := qapi.Connect(ctx, qapi.Config{Endpoint: cfg.Endpoint})
	if err != nil {
		log.Fatalf("failed to connect to node: %v", err)
	}
	defer q.Disconnect()

	manager, err := watchdog.New(watchdog.Config{
		SystemdUnit:     cfg.SystemdUnit,
		RestartMode:     cfg.RestartMode,
		RestartCooldown: cfg.RestartCooldown,
	})
	if err != nil {
		log.Fatalf("failed to start watchdog: %v", err)
	}
	defer manager.Close()

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("failed to create Temporal client: %v", err)
	}
	defer temporalClient.Close()

	log.Println("connected to Temporal server")

	activities := &healthflow.Activities{Pinger: q, Restarter: manager}

	w := worker.New(temporalClient, taskQueue, worker.Options{})
	w.RegisterWorkflow(healthflow.NodeHealthWorkflow)
	w.RegisterActivity(activities.PingActivity)
	w.RegisterActivity(activities.RestartActivity)

	if err := w.Start(); err != nil {
		log.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	workflowOptions := client.StartWorkflowOptions{
		ID:        "qapi-watcherd-" + cfg.SystemdUnit,
		TaskQueue: taskQueue,
	}
	workflowCfg := healthflow.Config{
		PollInterval:     cfg.PollInterval,
		FailureThreshold: cfg.FailureThreshold,
		RestartBackoff:   cfg.RestartBackoff,
		MaxRestarts:      cfg.MaxRestarts,
	}
	run, err := temporalClient.ExecuteWorkflow(ctx, workflowOptions, healthflow.NodeHealthWorkflow, workflowCfg)
	if err != nil {
		log.Fatalf("failed to start health workflow: %v", err)
	}
	log.Printf("started workflow %s (run %s)", run.GetID(), run.GetRunID())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("received signal %v, shutting down", sig)
}
