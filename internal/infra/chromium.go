package infra

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"invoiceflow/internal/document"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 in inches with 2cm top/bottom and 1cm side margins.
const (
	a4WidthIn   = 8.27
	a4HeightIn  = 11.69
	marginTBIn  = 0.79
	marginLRIn  = 0.39
	defaultWait = 30 * time.Second
)

// ChromiumEngine prints the invoice HTML through headless Chromium. Each
// render gets its own browser process; the breaker stops new launches while
// Chromium keeps failing.
type ChromiumEngine struct {
	execPath string
	timeout  time.Duration
	breaker  *CircuitBreaker
}

func NewChromiumEngine(execPath string, timeout time.Duration, breaker *CircuitBreaker) *ChromiumEngine {
	if timeout <= 0 {
		timeout = defaultWait
	}
	if breaker == nil {
		breaker = NewCircuitBreaker(DefaultCBConfig("chromium"))
	}
	return &ChromiumEngine{execPath: execPath, timeout: timeout, breaker: breaker}
}

func (e *ChromiumEngine) Name() string { return "chromium" }

// Breaker exposes the breaker state for the health endpoint.
func (e *ChromiumEngine) Breaker() *CircuitBreaker { return e.breaker }

func (e *ChromiumEngine) Render(ctx context.Context, doc *document.Document) ([]byte, error) {
	var out []byte
	err := e.breaker.Execute(func() error {
		buf, err := e.print(ctx, doc.HTML)
		out = buf
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *ChromiumEngine) print(ctx context.Context, html string) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if e.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(e.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, e.timeout)
	defer cancelTimeout()

	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("data:text/html;charset=utf-8,"+url.PathEscape(html)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(marginTBIn).
				WithMarginBottom(marginTBIn).
				WithMarginLeft(marginLRIn).
				WithMarginRight(marginLRIn).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromium: print to pdf: %w", err)
	}
	return pdf, nil
}
