package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// errNoProbe means the probe could not run at all; the host gets no result.
var errNoProbe = errors.New("probe unavailable")

// Prober checks host reachability before uploading.
type Prober struct {
	// Lookup resolves a hostname to addresses.
	Lookup func(ctx context.Context, host string) ([]string, error)
	// Ping reports whether addr answered.
	Ping func(ctx context.Context, addr string) (bool, error)
	// Workers bounds concurrent probes. <= 0 means NumCPU-1 (at least 1).
	Workers int
	// Timeout bounds each probe.
	Timeout time.Duration
	// Report, if set, is called once per host that got a result.
	Report func(name string, online bool)
}

// NewProber returns a prober using the system resolver and ping.
func NewProber() *Prober {
	return &Prober{
		Lookup:  net.DefaultResolver.LookupHost,
		Ping:    systemPing,
		Timeout: DefaultProbeTimeout,
	}
}

// DefaultWorkers is the probe pool size: one less than the CPU count.
func DefaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// Probe checks every host in parallel and returns name -> reachable for the
// hosts that got a result. All probes finish before Probe returns.
func (p *Prober) Probe(ctx context.Context, hosts []HostDescriptor) map[string]bool {
	workers := p.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	var (
		mu      sync.Mutex
		results = make(map[string]bool, len(hosts))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, h := range hosts {
		g.Go(func() error {
			online, err := p.probeOne(gctx, h)
			if errors.Is(err, errNoProbe) {
				log.WithFields(log.Fields{"host": h.Name, "err": err}).Debug("No probe result")
				return nil
			}
			if err != nil {
				log.WithFields(log.Fields{"host": h.Name, "err": err}).Warn("Probe failed")
			}
			mu.Lock()
			results[h.Name] = online
			mu.Unlock()
			if online {
				log.WithField("host", h.Name).Info("Host is online")
			} else {
				log.WithField("host", h.Name).Warn("Host is offline")
			}
			if p.Report != nil {
				p.Report(h.Name, online)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) probeOne(ctx context.Context, h HostDescriptor) (bool, error) {
	if ctx.Err() != nil {
		return false, fmt.Errorf("%w: %v", errNoProbe, ctx.Err())
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := p.Lookup(ctx, h.Hostname())
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", h.Hostname(), err)
	}
	if len(addrs) == 0 {
		return false, fmt.Errorf("resolve %s: no addresses", h.Hostname())
	}
	return p.Ping(ctx, addrs[0])
}

// systemPing sends one echo request with the platform's ping binary.
func systemPing(ctx context.Context, addr string) (bool, error) {
	flag := "-c"
	if runtime.GOOS == "windows" {
		flag = "-n"
	}
	return pingResult(exec.CommandContext(ctx, "ping", flag, "1", addr).Run())
}

// pingResult maps the outcome of a ping run. Only a clean exit means a reply
// came back; ping exits 1 on no reply and 2 on other errors. A ping binary
// that cannot be run gives no result.
func pingResult(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", errNoProbe, err)
}
