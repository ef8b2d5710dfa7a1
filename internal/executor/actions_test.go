package executor

import (
	"errors"
	"testing"
)

func TestPolicyRetweetConfirmMissing(t *testing.T) {
	nf := &NotFoundError{Step: "retweet confirmation", Candidates: retweetConfirmSelectors}

	res, err := Policy{RetweetAssumeDirect: true}.retweetConfirmMissing(nf)
	if err != nil {
		t.Fatalf("assume-direct on: %v", err)
	}
	if !res.Success || res.Message != "Tweet retweeted" {
		t.Fatalf("result = %+v, want successful retweet", res)
	}

	res, err = Policy{RetweetAssumeDirect: false}.retweetConfirmMissing(nf)
	if err == nil {
		t.Fatal("assume-direct off: missing confirmation should be a failure")
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil on failure", res)
	}
	if !errors.As(err, new(*NotFoundError)) {
		t.Fatalf("error %v does not wrap the selector failure", err)
	}
}

func TestPolicyCommentNotPosted(t *testing.T) {
	res, err := Policy{CommentPartialOnTypeFail: true}.commentNotPosted("nice take", "submit control never became enabled")
	if err != nil {
		t.Fatalf("partial on: %v", err)
	}
	if !res.Success || !res.Partial {
		t.Fatalf("result = %+v, want partial success", res)
	}
	if res.Message != "Comment typed but not posted" || res.Comment != "nice take" {
		t.Fatalf("result = %+v", res)
	}

	res, err = Policy{CommentPartialOnTypeFail: false}.commentNotPosted("nice take", "submit control never became enabled")
	if err == nil {
		t.Fatal("partial off: unposted comment should be a failure")
	}
	if err.Error() != "submit control never became enabled" {
		t.Fatalf("error = %q", err)
	}
	if res != nil {
		t.Fatalf("result = %+v, want nil on failure", res)
	}
}
