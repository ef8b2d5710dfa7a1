package executor

import (
	"regexp"
	"strings"

	"github.com/nurbekov/engage-scheduler/internal/domain"
)

// Candidate is one tweet pulled out of the feed, reduced to the facts the
// filters need. Extraction happens in the page (see extractScript);
// filtering happens here so it stays testable without a browser.
type Candidate struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Promoted bool     `json:"promoted"`
	Hosts    []string `json:"hosts"`
}

// promoRegexes flag promotional copy that slips past the DOM markers.
var promoRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpromoted\b`),
	regexp.MustCompile(`(?i)\bsponsored\b`),
	regexp.MustCompile(`(?i)#ad\b`),
	regexp.MustCompile(`(?i)\bpartnered with\b`),
	regexp.MustCompile(`(?i)\blimited time offer\b`),
	regexp.MustCompile(`(?i)\buse (?:promo |discount )?code\b`),
}

// commentBlocklist applies only to comment actions: replying under these is
// a bigger exposure than a silent like, so the bar is higher.
var commentBlocklist = []string{
	"giveaway",
	"airdrop",
	"promo code",
	"referral link",
	"sign up now",
	"presale",
	"dm me",
}

// platformHosts are the two domains whose links do not count as outbound.
// Subdomains included. Shortener hosts (t.co) deliberately count as
// outbound: they are exactly what promoted posts carry.
var platformHosts = []string{"x.com", "twitter.com"}

// IsAd reports whether the candidate looks promotional. The DOM marker
// check comes first, then the regex pass over the text, then, for
// comments only, the keyword blocklist.
func IsAd(c Candidate, action domain.ActionType) bool {
	if c.Promoted {
		return true
	}
	for _, re := range promoRegexes {
		if re.MatchString(c.Text) {
			return true
		}
	}
	if action == domain.ActionComment {
		lower := strings.ToLower(c.Text)
		for _, kw := range commentBlocklist {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// HasExternalLink reports whether any anchor in the candidate points off
// the platform. Hosts is empty for tweets with only relative links.
func HasExternalLink(c Candidate) bool {
	for _, h := range c.Hosts {
		if !platformHost(h) {
			return true
		}
	}
	return false
}

func platformHost(host string) bool {
	host = strings.ToLower(host)
	for _, p := range platformHosts {
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}

// Filter drops promotional and outbound-linking candidates. Rejected
// items are skipped, not scored; order is preserved.
func Filter(candidates []Candidate, action domain.ActionType) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if IsAd(c, action) {
			continue
		}
		if HasExternalLink(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
