// Package browser drives a Chromium browser over the DevTools protocol:
// it is the tab inventory for tab refresh and enforces the rule engine on
// every request the browser makes.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// Matcher decides whether a request is blocked.
type Matcher interface {
	Match(rawURL string, rt domain.ResourceType) domain.BlockDecision
}

type Options struct {
	// ControlURL is a DevTools ws:// URL or a host:port serving
	// /json/version. Empty launches a local headless browser.
	ControlURL string
	Matcher    Matcher
	Logger     log.Logger
}

// Gateway is a connected browser.
type Gateway struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	owned   bool // launched by us, so Close kills it
	matcher Matcher
	logger  log.Logger

	mu     sync.Mutex
	router *rod.HijackRouter
}

// Connect attaches to the browser described by opts. ctx bounds the
// lifetime of the connection and of a launched browser, not just the dial.
func Connect(ctx context.Context, opts Options) (*Gateway, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	g := &Gateway{matcher: opts.Matcher, logger: opts.Logger}

	wsURL := opts.ControlURL
	if wsURL == "" {
		g.lnch = launcher.New().Context(ctx).Headless(true)
		u, err := g.lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		g.owned = true
		g.logger.Info(map[string]any{"url": wsURL}, "Launched local browser")
	} else {
		u, err := launcher.ResolveURL(wsURL)
		if err != nil {
			return nil, fmt.Errorf("browser: resolve %s: %w", wsURL, err)
		}
		wsURL = u
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		g.cleanupLauncher()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	g.browser = b
	g.logger.Info(map[string]any{"url": wsURL}, "Browser connected")
	return g, nil
}

// Tabs lists open page targets.
func (g *Gateway) Tabs(ctx context.Context) ([]domain.Tab, error) {
	pages, err := g.browser.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("browser: list pages: %w", err)
	}
	tabs := make([]domain.Tab, 0, len(pages))
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			// the page can close between listing and inspection
			g.logger.Debug(map[string]any{"target": string(p.TargetID), "error": err}, "Skipping page without info")
			continue
		}
		tabs = append(tabs, domain.Tab{ID: string(info.TargetID), URL: info.URL})
	}
	return tabs, nil
}

// Reload reloads the page with target id.
func (g *Gateway) Reload(ctx context.Context, id string) error {
	p, err := g.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return fmt.Errorf("browser: attach %s: %w", id, err)
	}
	if err := p.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("browser: reload %s: %w", id, err)
	}
	return nil
}

// Intercept routes every browser request through the matcher. Blocked
// requests fail with BlockedByClient; the rest continue unchanged.
func (g *Gateway) Intercept() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.router != nil {
		return nil
	}
	router := g.browser.HijackRequests()
	if err := router.Add("*", "", g.handle); err != nil {
		return fmt.Errorf("browser: hijack: %w", err)
	}
	go router.Run()
	g.router = router
	return nil
}

func (g *Gateway) handle(h *rod.Hijack) {
	rawURL := h.Request.URL().String()
	if d := g.decide(rawURL, h.Request.Type()); d.Blocked {
		g.logger.Debug(map[string]any{"url": rawURL, "rule": d.RuleID, "site": d.Site}, "Request blocked")
		h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		return
	}
	h.ContinueRequest(&proto.FetchContinueRequest{})
}

func (g *Gateway) decide(rawURL string, t proto.NetworkResourceType) domain.BlockDecision {
	if g.matcher == nil {
		return domain.AllowDecision()
	}
	return g.matcher.Match(rawURL, resourceTypeFor(t))
}

// Close stops interception. A launched browser is killed; a remote one is
// left running for its owner.
func (g *Gateway) Close() error {
	g.mu.Lock()
	router := g.router
	g.router = nil
	g.mu.Unlock()

	var err error
	if router != nil {
		// Stop fails once the connection context is done; the hijack is gone then anyway.
		if stopErr := router.Stop(); stopErr != nil && !errors.Is(stopErr, context.Canceled) {
			err = stopErr
		}
	}
	// the launcher kills the process itself once the connection context ends
	if g.owned && g.browser.GetContext().Err() == nil {
		if closeErr := g.browser.Context(context.Background()).Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	g.cleanupLauncher()
	return err
}

func (g *Gateway) cleanupLauncher() {
	if g.lnch != nil {
		g.lnch.Cleanup()
		g.lnch = nil
	}
}
