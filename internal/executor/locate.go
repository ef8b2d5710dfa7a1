package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/nurbekov/engage-scheduler/internal/metrics"
)

// The platform ships UI changes without notice, so every control is
// located through an ordered candidate list: try each selector in order,
// first success wins, exhaustion is a typed NotFoundError.

// NotFoundError is returned when every candidate selector for a step was
// tried without a match.
type NotFoundError struct {
	Step       string
	Candidates []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: none of the selectors found a match: %s",
		e.Step, strings.Join(e.Candidates, ", "))
}

// IsNotFound reports whether err is a selector-exhaustion failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

var loggedInMarkers = []string{
	`a[data-testid="AppTabBar_Profile_Link"]`,
	`div[data-testid="SideNav_AccountSwitcher_Button"]`,
	`a[data-testid="SideNav_NewTweet_Button"]`,
	`a[aria-label="Profile"]`,
}

var tweetSelectors = []string{
	`article[data-testid="tweet"]`,
	`div[data-testid="cellInnerDiv"] article`,
	`article[role="article"]`,
	`div[data-testid="primaryColumn"] article`,
	`section[role="region"] article`,
}

var likeSelectors = []string{
	`button[data-testid="like"]`,
	`div[data-testid="like"]`,
	`button[aria-label*="Like"]`,
}

// likedStateSelector indicates the like already happened; clicking again
// would undo it.
const likedStateSelector = `button[data-testid="unlike"]`

var retweetSelectors = []string{
	`button[data-testid="retweet"]`,
	`div[data-testid="retweet"]`,
	`button[aria-label*="Repost"]`,
}

var retweetConfirmSelectors = []string{
	`div[data-testid="retweetConfirm"]`,
	`div[role="menuitem"][data-testid="retweetConfirm"]`,
	`div[data-testid="Dropdown"] div[role="menuitem"]`,
	`div[role="menu"] div[role="menuitem"]`,
}

var replySelectors = []string{
	`button[data-testid="reply"]`,
	`div[data-testid="reply"]`,
	`button[aria-label*="Reply"]`,
	`div[role="button"][data-testid="reply"]`,
}

var composeSelectors = []string{
	`div[data-testid="tweetTextarea_0"]`,
	`div[role="textbox"][data-testid="tweetTextarea_0"]`,
	`div.public-DraftEditor-content`,
	`div[contenteditable="true"][role="textbox"]`,
}

var submitSelectors = []string{
	`button[data-testid="tweetButtonInline"]`,
	`button[data-testid="tweetButton"]`,
	`div[data-testid="tweetButtonInline"]`,
}

// firstMatch tries each candidate in order, giving each an equal slice of
// budget, and returns the first selector that matches at least one node.
// Earlier candidates therefore get less total wall time when later ones
// end up being needed.
func firstMatch(ctx context.Context, step string, candidates []string, budget time.Duration) (string, error) {
	started := time.Now()
	defer func() {
		metrics.SelectorWaitDuration.WithLabelValues(step).Observe(time.Since(started).Seconds())
	}()

	per := budget / time.Duration(len(candidates))
	for _, sel := range candidates {
		waitCtx, cancel := context.WithTimeout(ctx, per)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", &NotFoundError{Step: step, Candidates: candidates}
}

// countMatches returns how many nodes sel currently resolves to, without
// waiting.
func countMatches(ctx context.Context, sel string) (int, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}
