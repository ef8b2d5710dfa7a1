package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/nurbekov/engage-scheduler/internal/domain"
)

const (
	navigateBudget  = 15 * time.Second
	loggedInBudget  = 12 * time.Second
	tweetBudget     = 15 * time.Second
	controlBudget   = 9 * time.Second
	confirmBudget   = 5 * time.Second
	clickableBudget = 6 * time.Second

	scrollStep     = 400
	scrollTotal    = 2000
	scrollInterval = 300 * time.Millisecond

	scrollSettle    = 1500 * time.Millisecond
	clickSettle     = 2 * time.Second
	postClickSettle = 3 * time.Second

	maxCandidates = 10
)

// session wraps a chromedp context attached to a remote browser's CDP
// endpoint. The remote browser belongs to AdsPower; we never launch one.
type session struct {
	ctx    context.Context
	cancel []context.CancelFunc
}

// attach connects to the remote debugging endpoint returned by AdsPower.
func attach(parent context.Context, wsURL string) (*session, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(parent, wsURL, chromedp.NoModifyURL)
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)

	s := &session{
		ctx:    taskCtx,
		cancel: []context.CancelFunc{cancelTask, cancelAlloc},
	}

	// Force the connection now so a dead endpoint fails the invocation
	// here instead of on the first action.
	probeCtx, cancel := context.WithTimeout(taskCtx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(probeCtx); err != nil {
		s.close()
		return nil, fmt.Errorf("attach to browser endpoint: %w", err)
	}
	return s, nil
}

func (s *session) close() {
	for _, c := range s.cancel {
		c()
	}
}

// open navigates to the feed and verifies the account is logged in by
// checking the marker selectors in order.
func (s *session) open(feedURL string) error {
	navCtx, cancel := context.WithTimeout(s.ctx, navigateBudget)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(feedURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate to %s: %w", feedURL, err)
	}

	if _, err := firstMatch(s.ctx, "logged-in check", loggedInMarkers, loggedInBudget); err != nil {
		if IsNotFound(err) {
			return domain.ErrNotLoggedIn
		}
		return err
	}
	return nil
}

// scrollFeed nudges the page down in fixed increments to trigger
// lazy-loaded timeline content.
func (s *session) scrollFeed() error {
	for scrolled := 0; scrolled < scrollTotal; scrolled += scrollStep {
		if err := chromedp.Run(s.ctx,
			chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", scrollStep), nil),
			chromedp.Sleep(scrollInterval),
		); err != nil {
			return fmt.Errorf("scroll feed: %w", err)
		}
	}
	return nil
}

// locateTweets returns the first tweet selector that resolves, trying the
// candidate list with a split budget.
func (s *session) locateTweets() (string, error) {
	return firstMatch(s.ctx, "tweet discovery", tweetSelectors, tweetBudget)
}

// extractScript pulls per-tweet facts out of the page in one pass: text,
// promoted DOM markers, and the host of every absolute link. The Go side
// does all the actual filtering.
const extractScript = `(() => {
	const items = document.querySelectorAll(%q);
	const promotedMarkers = ['div[data-testid="placementTracking"]', 'svg[aria-label="Promoted"]', 'a[href*="/i/ads"]'];
	const out = [];
	const n = Math.min(items.length, %d);
	for (let i = 0; i < n; i++) {
		const it = items[i];
		const textEl = it.querySelector('div[data-testid="tweetText"]');
		const text = textEl ? textEl.innerText : it.innerText;
		const promoted = promotedMarkers.some(m => it.querySelector(m) !== null);
		const hosts = [];
		for (const a of it.querySelectorAll('a[href]')) {
			const href = a.getAttribute('href') || '';
			if (/^[a-z][a-z0-9+.-]*:\/\//i.test(href)) {
				try { hosts.push(new URL(href).hostname); } catch (e) {}
			}
		}
		out.push({index: i, text: text || '', promoted: promoted, hosts: hosts});
	}
	return out;
})()`

// extract reads up to maxCandidates tweets matching itemSel.
func (s *session) extract(itemSel string) ([]Candidate, error) {
	var out []Candidate
	script := fmt.Sprintf(extractScript, itemSel, maxCandidates)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &out)); err != nil {
		return nil, fmt.Errorf("extract tweets: %w", err)
	}
	return out, nil
}

// scrollTo brings item idx into view and lets the page settle.
func (s *session) scrollTo(itemSel string, idx int) error {
	script := fmt.Sprintf(
		`(() => { const it = document.querySelectorAll(%q)[%d]; if (it) it.scrollIntoView({block: 'center'}); })()`,
		itemSel, idx)
	return chromedp.Run(s.ctx,
		chromedp.Evaluate(script, nil),
		chromedp.Sleep(scrollSettle),
	)
}

// controlRect returns the viewport center and size of the first control
// matching sel inside item idx, or nil when absent.
func (s *session) controlRect(itemSel string, idx int, sel string) ([]float64, error) {
	script := fmt.Sprintf(`(() => {
		const it = document.querySelectorAll(%q)[%d];
		if (!it) return null;
		const el = it.querySelector(%q);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return [r.x + r.width/2, r.y + r.height/2, r.width, r.height];
	})()`, itemSel, idx, sel)

	var rect []float64
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &rect)); err != nil {
		return nil, err
	}
	if len(rect) != 4 {
		return nil, nil
	}
	return rect, nil
}

// hasControl reports whether sel resolves inside item idx right now.
func (s *session) hasControl(itemSel string, idx int, sel string) (bool, error) {
	rect, err := s.controlRect(itemSel, idx, sel)
	if err != nil {
		return false, err
	}
	return rect != nil, nil
}

// clickControl clicks the control at its geometric center once it has a
// nonzero bounding box, falling back to a direct element click when the
// box never materializes within budget.
func (s *session) clickControl(itemSel string, idx int, sel string) error {
	deadline := time.Now().Add(clickableBudget)
	for {
		rect, err := s.controlRect(itemSel, idx, sel)
		if err != nil {
			return err
		}
		if rect != nil && rect[2] > 0 && rect[3] > 0 {
			return chromedp.Run(s.ctx,
				chromedp.MouseClickXY(rect[0], rect[1]),
				chromedp.Sleep(clickSettle),
			)
		}
		if time.Now().After(deadline) {
			break
		}
		if err := chromedp.Run(s.ctx, chromedp.Sleep(250 * time.Millisecond)); err != nil {
			return err
		}
	}

	// No usable bounding box; click the element directly.
	script := fmt.Sprintf(`(() => {
		const it = document.querySelectorAll(%q)[%d];
		if (!it) return false;
		const el = it.querySelector(%q);
		if (!el) return false;
		el.click();
		return true;
	})()`, itemSel, idx, sel)
	var clicked bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &clicked), chromedp.Sleep(clickSettle)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("control %s vanished before click", sel)
	}
	return nil
}

// findControl returns the first selector from candidates that resolves
// inside item idx, polling until budget runs out.
func (s *session) findControl(itemSel string, idx int, step string, candidates []string, budget time.Duration) (string, error) {
	per := budget / time.Duration(len(candidates))
	for _, sel := range candidates {
		deadline := time.Now().Add(per)
		for {
			ok, err := s.hasControl(itemSel, idx, sel)
			if err != nil {
				return "", err
			}
			if ok {
				return sel, nil
			}
			if time.Now().After(deadline) {
				break
			}
			if err := chromedp.Run(s.ctx, chromedp.Sleep(250 * time.Millisecond)); err != nil {
				return "", err
			}
		}
	}
	return "", &NotFoundError{Step: step, Candidates: candidates}
}

// clickPageControl clicks the first page-level (not item-scoped) match of
// sel at its center, with the same fallback as clickControl.
func (s *session) clickPageControl(sel string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return null;
		const r = el.getBoundingClientRect();
		return [r.x + r.width/2, r.y + r.height/2, r.width, r.height];
	})()`, sel)

	var rect []float64
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &rect)); err != nil {
		return err
	}
	if len(rect) == 4 && rect[2] > 0 && rect[3] > 0 {
		return chromedp.Run(s.ctx,
			chromedp.MouseClickXY(rect[0], rect[1]),
			chromedp.Sleep(clickSettle),
		)
	}
	return chromedp.Run(s.ctx,
		chromedp.Evaluate(fmt.Sprintf(`(() => { const el = document.querySelector(%q); if (el) el.click(); })()`, sel), nil),
		chromedp.Sleep(clickSettle),
	)
}

// typeInto sends text to sel and verifies the editor actually accepted it.
func (s *session) typeInto(sel, text string) (bool, error) {
	if err := chromedp.Run(s.ctx,
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
		chromedp.Sleep(time.Second),
	); err != nil {
		return false, nil // treated as "this candidate did not accept input"
	}

	var got string
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return el ? (el.value || el.innerText || '') : ''; })()`, sel)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &got)); err != nil {
		return false, err
	}
	return strings.Contains(got, firstLine(text)), nil
}

// submitEnabled reports whether sel resolves to an enabled submit control.
func (s *session) submitEnabled(sel string) (bool, error) {
	var enabled bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (!el) return false;
		if (el.disabled) return false;
		return el.getAttribute('aria-disabled') !== 'true';
	})()`, sel)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &enabled)); err != nil {
		return false, err
	}
	return enabled, nil
}

// openItem clicks item idx itself (its text block when present) to open
// the tweet detail view.
func (s *session) openItem(itemSel string, idx int) error {
	script := fmt.Sprintf(`(() => {
		const it = document.querySelectorAll(%q)[%d];
		if (!it) return null;
		const el = it.querySelector('div[data-testid="tweetText"]') || it;
		const r = el.getBoundingClientRect();
		return [r.x + r.width/2, r.y + r.height/2, r.width, r.height];
	})()`, itemSel, idx)

	var rect []float64
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &rect)); err != nil {
		return err
	}
	if len(rect) != 4 {
		return fmt.Errorf("tweet %d not present to open", idx)
	}
	return chromedp.Run(s.ctx,
		chromedp.MouseClickXY(rect[0], rect[1]),
		chromedp.Sleep(postClickSettle),
	)
}

// permalink best-effort extracts the canonical status URL of the page the
// session is currently on.
func (s *session) permalink() string {
	var href string
	script := `(() => {
		const a = document.querySelector('a[href*="/status/"][role="link"]');
		if (a) return a.href;
		return location.href.includes('/status/') ? location.href : '';
	})()`
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &href)); err != nil {
		return ""
	}
	return href
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
