package render

import (
	"context"

	"github.com/chromedp/chromedp"
)

// chromiumSession is a dedicated headless Chromium process plus one tab.
// Both cancel funcs must fire on Close so neither the tab nor the browser
// process outlives the render.
type chromiumSession struct {
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func newChromiumSession(ctx context.Context) (session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so a broken Chromium install fails here
	// instead of on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}
	return &chromiumSession{
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

func (s *chromiumSession) Navigate(ctx context.Context, pageURL string) error {
	return chromedp.Run(s.browserCtx, chromedp.Navigate(pageURL))
}

func (s *chromiumSession) Evaluate(ctx context.Context, expr string, out any) error {
	return chromedp.Run(s.browserCtx, chromedp.Evaluate(expr, out))
}

func (s *chromiumSession) Close() error {
	s.cancelBrowser()
	s.cancelAlloc()
	return nil
}
