// ABOUTME: Entry point for the Resonate client
// ABOUTME: Parses CLI flags and starts the controller, optionally with a status TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/resonate-go/internal/controller"
	"github.com/Resonate-Protocol/resonate-go/internal/discovery"
	"github.com/Resonate-Protocol/resonate-go/internal/hostid"
)

var (
	host        = flag.String("host", "", "Server host, required unless -discover is set")
	port        = flag.Int("port", 1704, "Server port")
	device      = flag.String("device", "", "Device name reported to the server (default: hostname)")
	instance    = flag.Int("instance", 1, "Instance number, for multiple clients on one host")
	latencyMs   = flag.Int("latency", 0, "Extra local output latency compensation, in milliseconds")
	id          = flag.String("hostid", "", "Stable host id (default: derived from a hardware address)")
	discover    = flag.Bool("discover", false, "Find the server via mDNS instead of -host/-port")
	discoverSec = flag.Int("discover-timeout", 10, "Seconds to wait for mDNS discovery before giving up")
	useTUI      = flag.Bool("tui", false, "Show a live status display")
)

func main() {
	flag.Parse()

	deviceName := *device
	if deviceName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		deviceName = hostname
	}

	hostID := *id
	if hostID == "" {
		resolved, err := hostid.Resolve()
		if err != nil {
			log.Fatalf("resonate-client: resolve host id: %v", err)
		}
		hostID = resolved
	}

	if *host == "" && !*discover {
		log.Fatalf("resonate-client: pass -host or -discover")
	}
	serverHost, serverPort, err := resolveServer(*host, *port, *discoverSec)
	if err != nil {
		log.Fatalf("resonate-client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("resonate-client: shutdown signal received")
		cancel()
	}()

	c := controller.New(controller.Config{
		Host:         serverHost,
		Port:         serverPort,
		HostID:       hostID,
		Instance:     *instance,
		DeviceName:   deviceName,
		ExtraLatency: time.Duration(*latencyMs) * time.Millisecond,
		OnStateChange: func(s controller.State) {
			log.Printf("resonate-client: state -> %s", s)
		},
		OnError: func(err error) {
			log.Printf("resonate-client: session error: %v", err)
		},
	})

	if *useTUI {
		runWithTUI(ctx, cancel, c, fmt.Sprintf("%s:%d", serverHost, serverPort))
		return
	}

	c.Run(ctx)
	log.Printf("resonate-client: stopped")
}

// resolveServer returns host and waits for mDNS discovery when host is
// empty.
func resolveServer(host string, port, discoverTimeoutSec int) (string, int, error) {
	if host != "" {
		return host, port, nil
	}

	log.Printf("resonate-client: no host given, discovering via mDNS")
	browser := discovery.NewBrowser()
	browser.Start()
	defer browser.Stop()

	select {
	case srv := <-browser.Servers():
		log.Printf("resonate-client: discovered %s at %s:%d", srv.Name, srv.Host, srv.Port)
		return srv.Host, srv.Port, nil
	case <-time.After(time.Duration(discoverTimeoutSec) * time.Second):
		return "", 0, fmt.Errorf("no server discovered within %ds, pass -host explicitly", discoverTimeoutSec)
	}
}
