package synchronizer

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/common/utils"
	"github.com/haukened/rr-block/internal/block/domain"
)

// RefreshReport summarizes one refresh pass.
type RefreshReport struct {
	Matched  int
	Reloaded int
	Failed   int
}

// Refresher reloads tabs whose URL matches a blocked entry.
type Refresher struct {
	tabs    TabInventory
	logger  log.Logger
	workers int
}

// NewRefresher builds a Refresher reloading up to workers tabs at once.
func NewRefresher(tabs TabInventory, logger log.Logger, workers int) *Refresher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Refresher{tabs: tabs, logger: logger, workers: workers}
}

// RefreshMatchingTabs enumerates tabs once and reloads every tab matching
// any entry. Reloads are independent: a failure is collected and the
// remaining reloads still run. The returned error wraps domain.ErrTabRefresh.
func (r *Refresher) RefreshMatchingTabs(ctx context.Context, entries []string) (RefreshReport, error) {
	var rep RefreshReport
	if len(entries) == 0 {
		return rep, nil
	}

	patterns := make([]*regexp.Regexp, 0, len(entries))
	for _, e := range entries {
		re, err := compileTabPattern(e)
		if err != nil {
			// QuoteMeta makes this unreachable for any string input.
			return rep, fmt.Errorf("%w: pattern for %q: %v", domain.ErrTabRefresh, e, err)
		}
		patterns = append(patterns, re)
	}

	tabs, err := r.tabs.Tabs(ctx)
	if err != nil {
		return rep, fmt.Errorf("%w: list tabs: %w", domain.ErrTabRefresh, err)
	}

	var matched []domain.Tab
	for _, tab := range tabs {
		for _, re := range patterns {
			if re.MatchString(tab.URL) {
				matched = append(matched, tab)
				break
			}
		}
	}
	rep.Matched = len(matched)
	if len(matched) == 0 {
		return rep, nil
	}

	errs := make([]error, len(matched))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, tab := range matched {
		g.Go(func() error {
			if err := r.tabs.Reload(ctx, tab.ID); err != nil {
				errs[i] = fmt.Errorf("reload tab %s: %w", tab.ID, err)
				r.logger.Warn(map[string]any{"tab": tab.ID, "site": utils.SiteOf(tab.URL), "error": err}, "Tab reload failed")
				return nil
			}
			r.logger.Debug(map[string]any{"tab": tab.ID, "site": utils.SiteOf(tab.URL)}, "Tab reloaded")
			return nil
		})
	}
	_ = g.Wait()

	combined := multierr.Combine(errs...)
	rep.Failed = len(multierr.Errors(combined))
	rep.Reloaded = rep.Matched - rep.Failed
	if combined != nil {
		return rep, fmt.Errorf("%w: %w", domain.ErrTabRefresh, combined)
	}
	return rep, nil
}
