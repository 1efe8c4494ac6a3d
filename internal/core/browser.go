package core

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Provider uploads a file through something other than a plain HTTP API.
// Results follow the same contract as Transport.Send.
type Provider interface {
	Name() string
	Upload(ctx context.Context, f UploadFile) (string, error)
}

// BrowserOptions controls the Chrome instances used by page providers.
type BrowserOptions struct {
	// ChromePath optionally overrides the Chrome/Chromium executable path.
	ChromePath string
	// Headless controls whether Chrome runs without a visible window.
	Headless bool
	// PIDs, if set, tracks every browser process that is started.
	PIDs *PIDTracker
}

// PageProvider drives an upload web page in a real browser.
type PageProvider struct {
	Desc BrowserDescriptor
	Opts BrowserOptions
}

// NewPageProviders builds one provider per browser descriptor.
func NewPageProviders(descs []BrowserDescriptor, opts BrowserOptions) []Provider {
	out := make([]Provider, 0, len(descs))
	for _, d := range descs {
		out = append(out, &PageProvider{Desc: d, Opts: opts})
	}
	return out
}

func (p *PageProvider) Name() string { return p.Desc.Name }

func (p *PageProvider) timeout() time.Duration {
	if p.Desc.TimeoutSeconds > 0 {
		return time.Duration(p.Desc.TimeoutSeconds) * time.Second
	}
	return DefaultBrowserTimeout
}

// Upload opens the provider page, submits f and reads the resulting link.
func (p *PageProvider) Upload(ctx context.Context, f UploadFile) (string, error) {
	if p.Desc.SizeLimitMB > 0 && f.SizeMB() > p.Desc.SizeLimitMB {
		return "", &SkipError{Reason: fmt.Sprintf("%.2fMB exceeds the %gMB limit", f.SizeMB(), p.Desc.SizeLimitMB)}
	}
	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return "", &TransportError{Host: p.Desc.Name, Kind: Generic, Err: err}
	}

	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.UserAgent(UserAgent),
	)
	if p.Opts.ChromePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(p.Opts.ChromePath))
	}
	if p.Opts.Headless {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Start the browser so its process can be tracked.
	if err := chromedp.Run(browserCtx); err != nil {
		return "", &TransportError{Host: p.Desc.Name, Kind: Generic, Err: fmt.Errorf("failed to start browser: %w", err)}
	}
	if p.Opts.PIDs != nil {
		if c := chromedp.FromContext(browserCtx); c != nil && c.Browser != nil {
			if proc := c.Browser.Process(); proc != nil {
				p.Opts.PIDs.Add(proc)
				defer p.Opts.PIDs.Remove(proc.Pid)
			}
		}
	}

	runCtx, cancelRun := context.WithTimeout(browserCtx, p.timeout())
	defer cancelRun()

	log.WithFields(log.Fields{"provider": p.Desc.Name, "url": p.Desc.URL}).Debug("Opening upload page")

	var html string
	actions := []chromedp.Action{
		chromedp.ActionFunc(navigateIdle(p.Desc.URL)),
		chromedp.WaitReady(p.Desc.Input, chromedp.ByQuery),
		chromedp.SetUploadFiles(p.Desc.Input, []string{abs}, chromedp.ByQuery),
	}
	if strings.TrimSpace(p.Desc.Submit) != "" {
		actions = append(actions, chromedp.Click(p.Desc.Submit, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.WaitVisible(p.Desc.Result, chromedp.ByQuery),
		chromedp.Sleep(DefaultSettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimedOut, p.timeout())
		}
		return "", &TransportError{Host: p.Desc.Name, Kind: Generic, Err: err}
	}

	link, err := resultLink(html, p.Desc)
	if err != nil {
		return "", &TransportError{Host: p.Desc.Name, Kind: Generic, Err: err}
	}
	if err := classifyLink(p.Desc.Name, link); err != nil {
		return "", err
	}
	if err := ValidateLink(link); err != nil {
		return "", &TransportError{Host: p.Desc.Name, Kind: Generic, Err: err}
	}
	return link, nil
}

// navigateIdle navigates to target and waits for the networkIdle lifecycle event.
func navigateIdle(target string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}

		ch := make(chan struct{}, 1)
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		})

		if err := chromedp.Navigate(target).Do(ctx); err != nil {
			return err
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	}
}

// resultLink reads the link out of the rendered page.
func resultLink(html string, d BrowserDescriptor) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}
	sel := doc.Find(d.Result).First()
	if sel.Length() == 0 {
		return "", fmt.Errorf("no element matches %q", d.Result)
	}

	var link string
	if d.Attr != "" {
		link, _ = sel.Attr(d.Attr)
	} else if sel.Is("input, textarea") {
		link, _ = sel.Attr("value")
	} else {
		link = sel.Text()
	}
	link = resolveLink(d.URL, strings.TrimSpace(link))
	if link == "" {
		return "", fmt.Errorf("element %q holds no link", d.Result)
	}
	return link, nil
}

// resolveLink resolves a relative href against the page it came from.
// Script and data references resolve to "".
func resolveLink(pageURL, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	refURL, err := url.Parse(ref)
	if err != nil || refURL.IsAbs() {
		return ref
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}

// PIDTracker records browser processes so they can be killed on interrupt.
type PIDTracker struct {
	mu    sync.Mutex
	procs map[int]*os.Process
}

func NewPIDTracker() *PIDTracker {
	return &PIDTracker{procs: make(map[int]*os.Process)}
}

func (t *PIDTracker) Add(p *os.Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.procs == nil {
		t.procs = make(map[int]*os.Process)
	}
	t.procs[p.Pid] = p
}

func (t *PIDTracker) Remove(pid int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

// PIDs returns the tracked process ids.
func (t *PIDTracker) PIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.procs))
	for pid := range t.procs {
		out = append(out, pid)
	}
	return out
}

// KillAll kills every tracked process and forgets them. It returns the
// number of processes it signalled.
func (t *PIDTracker) KillAll() int {
	t.mu.Lock()
	procs := t.procs
	t.procs = make(map[int]*os.Process)
	t.mu.Unlock()

	n := 0
	for pid, p := range procs {
		if err := p.Kill(); err != nil {
			log.WithFields(log.Fields{"pid": pid, "err": err}).Debug("Failed to kill browser")
			continue
		}
		n++
	}
	return n
}

// KillOnDone kills the tracked processes as soon as ctx is done. The
// returned stop function disarms it.
func (t *PIDTracker) KillOnDone(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		if n := t.KillAll(); n > 0 {
			log.WithField("count", n).Info("Killed browser processes")
		}
	})
}

// RunProviders runs providers in a pool of workers and appends their links
// to state in provider order. Providers that have not started once the
// quota is covered are skipped. Failures are logged, never returned; the
// only error is ErrInterrupted.
func RunProviders(ctx context.Context, providers []Provider, f UploadFile, workers int, state *RunState) error {
	if len(providers) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultBrowserPool
	}
	if state.QuotaMet() {
		log.Debug("Link quota reached, skipping browser providers")
		return nil
	}
	remaining, capped := state.Remaining()

	var (
		mu       sync.Mutex
		accepted int
		links    = make([]string, len(providers))
		attempts = make([]Attempt, len(providers))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range providers {
		g.Go(func() error {
			a := Attempt{Host: p.Name(), Start: time.Now()}
			mu.Lock()
			full := capped && accepted >= remaining
			mu.Unlock()
			if full || gctx.Err() != nil {
				a.Outcome = OutcomeSkipped
				a.Err = &SkipError{Reason: "not needed"}
				attempts[i] = a
				return nil
			}

			link, err := p.Upload(gctx, f)
			a.Elapsed = time.Since(a.Start)
			switch {
			case err == nil:
				mu.Lock()
				accepted++
				mu.Unlock()
				a.Outcome = OutcomeSuccess
				a.Link = link
				links[i] = link
				log.WithFields(log.Fields{"provider": p.Name(), "link": link, "took": a.Elapsed}).Info("[OK]")
			case errors.Is(err, ErrSkipped):
				a.Outcome = OutcomeSkipped
				a.Err = err
				log.WithFields(log.Fields{"provider": p.Name(), "err": err}).Debug("Skipping provider")
			case errors.Is(err, ErrTimedOut):
				a.Outcome = OutcomeTimedOut
				a.Err = err
				log.WithField("provider", p.Name()).Warn("Timed out, skipping")
			default:
				a.Outcome = OutcomeFailed
				a.Err = err
				if ctx.Err() == nil {
					log.WithFields(log.Fields{"provider": p.Name(), "err": fmt.Sprintf("%+v", err)}).Error("Upload failed")
				}
			}
			attempts[i] = a
			return nil
		})
	}
	_ = g.Wait()

	for i := range providers {
		state.Attempts = append(state.Attempts, attempts[i])
		if links[i] != "" && !state.QuotaMet() {
			state.Add(links[i])
		}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	}
	return nil
}
