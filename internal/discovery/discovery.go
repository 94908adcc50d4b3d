// ABOUTME: Client-side mDNS discovery of Resonate servers
// ABOUTME: Browses _snapcast._tcp and streams ServerInfo as entries arrive
package discovery

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/mdns"
)

// serviceType is the mDNS service servers advertise.
const serviceType = "_snapcast._tcp"

// ServerInfo describes one discovered server.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Browser continuously queries mDNS and reports discovered servers.
type Browser struct {
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan ServerInfo
	done    chan struct{}
	started atomic.Bool
}

// NewBrowser creates a Browser. Call Start to begin querying.
func NewBrowser() *Browser {
	ctx, cancel := context.WithCancel(context.Background())
	return &Browser{
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan ServerInfo, 10),
		done:    make(chan struct{}),
	}
}

// Start launches the browse loop in its own goroutine.
func (b *Browser) Start() {
	b.started.Store(true)
	go b.loop()
}

// Servers returns the channel of discovered servers. It is closed
// after Stop once the loop has exited.
func (b *Browser) Servers() <-chan ServerInfo { return b.servers }

// Stop cancels the browse loop and waits for it to exit, if Start was
// ever called.
func (b *Browser) Stop() {
	b.cancel()
	if b.started.Load() {
		<-b.done
	}
}

func (b *Browser) loop() {
	defer close(b.done)
	defer close(b.servers)

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		go func() {
			for entry := range entries {
				host := entry.Host
				if entry.AddrV4 != nil {
					host = entry.AddrV4.String()
				}
				info := ServerInfo{Name: entry.Name, Host: host, Port: entry.Port}
				select {
				case b.servers <- info:
				case <-b.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: 3,
			Entries: entries,
		}
		_ = mdns.Query(params)
		close(entries)

		select {
		case <-b.ctx.Done():
			return
		default:
		}
	}
}
