package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/nurbekov/engage-scheduler/internal/domain"
)

// retweetConfirmMissing maps an absent confirmation dialog to the
// configured outcome.
func (p Policy) retweetConfirmMissing(err error) (*domain.ActionResult, error) {
	if p.RetweetAssumeDirect {
		// No dialog within budget: the platform reposted directly.
		return &domain.ActionResult{Success: true, Message: "Tweet retweeted"}, nil
	}
	return nil, fmt.Errorf("retweet confirmation never appeared: %w", err)
}

// commentNotPosted maps a comment that never reached a successful submit
// to the configured outcome.
func (p Policy) commentNotPosted(text, reason string) (*domain.ActionResult, error) {
	if p.CommentPartialOnTypeFail {
		return &domain.ActionResult{
			Success: true,
			Partial: true,
			Message: "Comment typed but not posted",
			Comment: text,
		}, nil
	}
	return nil, errors.New(reason)
}

func (e *Executor) like(s *session, itemSel string, idx int) (*domain.ActionResult, error) {
	already, err := s.hasControl(itemSel, idx, likedStateSelector)
	if err != nil {
		return nil, fmt.Errorf("check liked state: %w", err)
	}
	if already {
		return &domain.ActionResult{Success: true, Message: "Tweet already liked"}, nil
	}

	sel, err := s.findControl(itemSel, idx, "like control", likeSelectors, controlBudget)
	if err != nil {
		return nil, err
	}
	if err := s.clickControl(itemSel, idx, sel); err != nil {
		return nil, fmt.Errorf("click like control: %w", err)
	}

	return &domain.ActionResult{Success: true, Message: "Tweet liked"}, nil
}

func (e *Executor) retweet(s *session, itemSel string, idx int) (*domain.ActionResult, error) {
	sel, err := s.findControl(itemSel, idx, "retweet control", retweetSelectors, controlBudget)
	if err != nil {
		return nil, err
	}
	if err := s.clickControl(itemSel, idx, sel); err != nil {
		return nil, fmt.Errorf("click retweet control: %w", err)
	}

	// The confirmation lives in a page-level menu, not inside the tweet.
	confirmSel, err := firstMatch(s.ctx, "retweet confirmation", retweetConfirmSelectors, confirmBudget)
	if err != nil {
		if IsNotFound(err) {
			return e.policy.retweetConfirmMissing(err)
		}
		return nil, err
	}
	if err := s.clickPageControl(confirmSel); err != nil {
		return nil, fmt.Errorf("click retweet confirmation: %w", err)
	}

	return &domain.ActionResult{Success: true, Message: "Tweet retweeted"}, nil
}

func (e *Executor) comment(s *session, itemSel string, idx int, text string) (*domain.ActionResult, error) {
	if err := s.openItem(itemSel, idx); err != nil {
		return nil, fmt.Errorf("open tweet: %w", err)
	}

	replySel, err := firstMatch(s.ctx, "reply control", replySelectors, controlBudget)
	if err != nil {
		return nil, err
	}
	if err := s.clickPageControl(replySel); err != nil {
		return nil, fmt.Errorf("click reply control: %w", err)
	}

	typed := false
	for _, sel := range composeSelectors {
		ok, err := s.typeInto(sel, text)
		if err != nil {
			return nil, fmt.Errorf("type comment: %w", err)
		}
		if ok {
			typed = true
			break
		}
	}
	if !typed {
		return e.policy.commentNotPosted(text, "no compose box accepted the comment text")
	}

	submitSel := ""
	deadline := time.Now().Add(controlBudget)
	for submitSel == "" && time.Now().Before(deadline) {
		for _, sel := range submitSelectors {
			enabled, err := s.submitEnabled(sel)
			if err != nil {
				return nil, fmt.Errorf("check submit control: %w", err)
			}
			if enabled {
				submitSel = sel
				break
			}
		}
		if submitSel == "" {
			if err := chromedp.Run(s.ctx, chromedp.Sleep(250 * time.Millisecond)); err != nil {
				return nil, err
			}
		}
	}
	if submitSel == "" {
		return e.policy.commentNotPosted(text, "submit control never became enabled")
	}

	if err := s.clickPageControl(submitSel); err != nil {
		return nil, fmt.Errorf("click submit control: %w", err)
	}
	if err := chromedp.Run(s.ctx, chromedp.Sleep(postClickSettle)); err != nil {
		return nil, err
	}

	res := &domain.ActionResult{
		Success: true,
		Message: "Comment posted",
		Comment: text,
	}
	res.CommentURL = s.permalink()
	return res, nil
}
