// Command qapi-nodewatch pings a connected node on an interval and
// restarts its systemd unit through watchdog after three consecutive
// failed pings.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	qapi "github.com/pierreaubert/qapi-go"
	"github.com/pierreaubert/qapi-go/watchdog"
)

const failureThreshold = 3

func main() {
	configPath := flag.String("config", "/etc/qapi/nodewatch.toml", "Path to a TOML configuration file")
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		log.Println("received interrupt signal, shutting down...")
		cancel()
	}()

	q, err := qapi.Connect(ctx, qapi.Config{Endpoint: cfg.Endpoint})
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", cfg.Endpoint, err)
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

	log.Printf("watching %s via %s, polling every %s", cfg.SystemdUnit, cfg.Endpoint, cfg.PollInterval)

	consecutiveFailures := 0
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("shutting down")
			return
		case <-ticker.C:
			if err := q.Ping(ctx); err != nil {
				consecutiveFailures++
				log.Printf("ping failed (%d/%d): %v", consecutiveFailures, failureThreshold, err)
				if consecutiveFailures >= failureThreshold {
					log.Printf("restarting %s after %d consecutive failures", cfg.SystemdUnit, consecutiveFailures)
					if err := manager.OnTransportUnhealthy(ctx); err != nil {
						log.Printf("restart failed: %v", err)
					} else {
						consecutiveFailures = 0
					}
				}
				continue
			}
			consecutiveFailures = 0
		}
	}
}
