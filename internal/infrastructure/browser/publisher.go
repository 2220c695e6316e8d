package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// ErrSessionExpired signals that the persisted session artifact no longer
// authenticates. Operators must re-capture it; retrying does not help.
var ErrSessionExpired = domain.ErrAuthExpired

// locatorStrategy is one way of finding a target element. Strategies are
// tried in order; the first selector visible within its timeout wins.
type locatorStrategy struct {
	name     string
	selector string
	timeout  time.Duration
}

// The platform ships UI changes without notice, so every target element gets
// an ordered list of fallback locators.
var (
	composeStrategies = []locatorStrategy{
		{"testid", `div[data-testid="tweetTextarea_0"]`, 10 * time.Second},
		{"aria-label", `div[aria-label="Post text"]`, 6 * time.Second},
		{"contenteditable", `div[role="textbox"][contenteditable="true"]`, 6 * time.Second},
	}
	submitStrategies = []locatorStrategy{
		{"testid", `button[data-testid="tweetButton"]`, 10 * time.Second},
		{"aria-label", `button[aria-label="Post"]`, 6 * time.Second},
		{"role", `div[role="button"][data-testid="tweetButtonInline"]`, 6 * time.Second},
	}
	authMarkers = []locatorStrategy{
		{"account-switcher", `div[data-testid="SideNav_AccountSwitcher_Button"]`, 8 * time.Second},
		{"primary-column", `div[data-testid="primaryColumn"]`, 6 * time.Second},
	}
	permalinkSelector = `article a[href*="/status/"]`
)

// sessionCookie mirrors one entry of the serialized session artifact.
type sessionCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	HTTPOnly bool   `json:"httpOnly"`
	Secure   bool   `json:"secure"`
}

// Publisher performs one publish attempt per call against a live browser.
// Each call starts a fresh browser context; callers own the retry policy.
type Publisher struct {
	cfg    config.PublishConfig
	logger *slog.Logger
}

var _ ports.PostPublisher = (*Publisher)(nil)

// NewPublisher builds a publisher from configuration.
func NewPublisher(cfg config.PublishConfig, logger *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, logger: logger}
}

// VerifySession loads the session artifact into a fresh browser, navigates
// home and checks for a known authenticated-state marker.
func (p *Publisher) VerifySession(ctx context.Context) (bool, error) {
	cookies, err := p.loadSession()
	if err != nil {
		return false, err
	}

	browserCtx, cancel, err := p.newBrowser(ctx)
	if err != nil {
		return false, err
	}
	defer cancel()

	if err := chromedp.Run(browserCtx, setCookies(cookies), chromedp.Navigate(p.cfg.HomeURL)); err != nil {
		return false, fmt.Errorf("navigate home: %w", err)
	}

	_, err = firstVisible(browserCtx, authMarkers)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// Publish runs one full attempt: fresh navigation, compose, submit, settle,
// best-effort permalink recovery.
func (p *Publisher) Publish(ctx context.Context, text string) (ports.PublishOutcome, error) {
	cookies, err := p.loadSession()
	if err != nil {
		return ports.PublishOutcome{}, err
	}

	browserCtx, cancel, err := p.newBrowser(ctx)
	if err != nil {
		return ports.PublishOutcome{}, err
	}
	defer cancel()

	if err := chromedp.Run(browserCtx, setCookies(cookies), chromedp.Navigate(p.cfg.ComposeURL)); err != nil {
		return ports.PublishOutcome{}, fmt.Errorf("navigate compose: %w", err)
	}

	composeSel, err := firstVisible(browserCtx, composeStrategies)
	if err != nil {
		return ports.PublishOutcome{}, fmt.Errorf("locate compose surface: %w", err)
	}
	if err := chromedp.Run(browserCtx,
		chromedp.Click(composeSel, chromedp.ByQuery),
		chromedp.SendKeys(composeSel, text, chromedp.ByQuery),
	); err != nil {
		return ports.PublishOutcome{}, fmt.Errorf("fill compose surface: %w", err)
	}

	submitSel, err := firstVisible(browserCtx, submitStrategies)
	if err != nil {
		return ports.PublishOutcome{}, fmt.Errorf("locate submit control: %w", err)
	}
	if err := chromedp.Run(browserCtx, chromedp.Click(submitSel, chromedp.ByQuery)); err != nil {
		return ports.PublishOutcome{}, fmt.Errorf("click submit: %w", err)
	}

	// The platform gives no synchronous acknowledgement; after the settle
	// period the submission counts as confirmed.
	if err := chromedp.Run(browserCtx, chromedp.Sleep(p.cfg.SettleWait.Std())); err != nil {
		return ports.PublishOutcome{}, fmt.Errorf("settle wait: %w", err)
	}

	url := p.recoverPermalink(browserCtx)
	return ports.PublishOutcome{Confirmed: true, URL: url}, nil
}

// recoverPermalink tries to read the new post's URL from the home timeline.
// Failure never downgrades the confirmed outcome.
func (p *Publisher) recoverPermalink(browserCtx context.Context) string {
	recoverCtx, cancel := context.WithTimeout(browserCtx, 10*time.Second)
	defer cancel()

	var href string
	var ok bool
	err := chromedp.Run(recoverCtx,
		chromedp.Navigate(p.cfg.HomeURL),
		chromedp.WaitVisible(permalinkSelector, chromedp.ByQuery),
		chromedp.AttributeValue(permalinkSelector, "href", &href, &ok, chromedp.ByQuery),
	)
	if err != nil || !ok || href == "" {
		if p.logger != nil {
			p.logger.Debug("permalink not recovered", "error", err)
		}
		return domain.URLUnknown
	}
	if strings.HasPrefix(href, "/") {
		href = "https://x.com" + href
	}
	return href
}

func (p *Publisher) newBrowser(ctx context.Context) (context.Context, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	// Start the browser eagerly so allocation failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	return browserCtx, cancel, nil
}

// loadSession reads the serialized cookie jar. A missing or empty artifact
// means the session is gone, not that publishing transiently failed.
func (p *Publisher) loadSession() ([]sessionCookie, error) {
	raw, err := os.ReadFile(p.cfg.SessionFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrSessionExpired, p.cfg.SessionFile, err)
	}

	var cookies []sessionCookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrSessionExpired, p.cfg.SessionFile, err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: %s holds no cookies", ErrSessionExpired, p.cfg.SessionFile)
	}
	return cookies, nil
}

func setCookies(cookies []sessionCookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithHTTPOnly(c.HTTPOnly).
				WithSecure(c.Secure).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("set cookie %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// firstVisible tries each strategy in order and returns the selector of the
// first element visible within that strategy's own timeout.
func firstVisible(browserCtx context.Context, strategies []locatorStrategy) (string, error) {
	var lastErr error
	for _, s := range strategies {
		waitCtx, cancel := context.WithTimeout(browserCtx, s.timeout)
		err := chromedp.Run(waitCtx, chromedp.WaitVisible(s.selector, chromedp.ByQuery))
		cancel()
		if err == nil {
			return s.selector, nil
		}
		lastErr = fmt.Errorf("strategy %s: %w", s.name, err)
	}
	return "", lastErr
}
