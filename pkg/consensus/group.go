package consensus

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/magajico/oddsfeed/pkg/feed"
)

// contribution ties a record to its adapter's invocation order, which is
// the deterministic tie breaker for consensus votes.
type contribution struct {
	record feed.Record
	order  int
}

// group accumulates contributions believed to describe the same match.
type group struct {
	homeNorm string
	awayNorm string
	members  []contribution
}

// mergeContributions groups records across sources by team identity and
// computes the consensus block per group. Input order (adapter order, then
// record order) is preserved into the output.
func mergeContributions(contributions []contribution) []Match {
	groups := make([]*group, 0)

	for _, c := range contributions {
		home := normalizeTeam(c.record.HomeTeam)
		away := normalizeTeam(c.record.AwayTeam)
		if home == "" || away == "" {
			continue
		}

		placed := false
		for _, g := range groups {
			if teamOverlap(g.homeNorm, g.awayNorm, home, away) >= 2 {
				g.members = append(g.members, c)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &group{homeNorm: home, awayNorm: away, members: []contribution{c}})
		}
	}

	matches := make([]Match, 0, len(groups))
	for _, g := range groups {
		matches = append(matches, g.toMatch())
	}
	return matches
}

func (g *group) toMatch() Match {
	first := g.members[0].record
	m := Match{
		HomeTeam: first.HomeTeam,
		AwayTeam: first.AwayTeam,
		Records:  make([]feed.Record, 0, len(g.members)),
	}
	for _, c := range g.members {
		if m.League == "" {
			m.League = c.record.League
		}
		if m.GameTime == "" {
			m.GameTime = c.record.GameTime
		}
		m.Records = append(m.Records, c.record)
	}
	m.Consensus = computeConsensus(g.members)
	return m
}

// computeConsensus picks the most common prediction label (ties broken by
// earliest adapter order), averages confidence across all members, and
// measures how many members agree with the winner.
func computeConsensus(members []contribution) Consensus {
	type vote struct {
		count      int
		firstOrder int
		firstSeen  int
	}
	votes := make(map[string]*vote)

	for i, c := range members {
		label := c.record.Prediction
		if label == "" {
			continue
		}
		v, ok := votes[label]
		if !ok {
			votes[label] = &vote{count: 1, firstOrder: c.order, firstSeen: i}
			continue
		}
		v.count++
		if c.order < v.firstOrder {
			v.firstOrder = c.order
		}
	}

	var winner string
	var best *vote
	for label, v := range votes {
		if best == nil ||
			v.count > best.count ||
			(v.count == best.count && v.firstOrder < best.firstOrder) ||
			(v.count == best.count && v.firstOrder == best.firstOrder && v.firstSeen < best.firstSeen) {
			winner = label
			best = v
		}
	}

	sum := decimal.Zero
	agree := 0
	for _, c := range members {
		sum = sum.Add(decimal.NewFromInt(int64(memberConfidence(c.record))))
		if winner != "" && c.record.Prediction == winner {
			agree++
		}
	}

	total := decimal.NewFromInt(int64(len(members)))
	cons := Consensus{Prediction: winner}
	if len(members) > 0 {
		cons.AvgConfidence = sum.Div(total).Round(2).InexactFloat64()
	}
	if winner != "" && len(members) > 0 {
		pct := decimal.NewFromInt(int64(agree)).Mul(decimal.NewFromInt(100)).Div(total)
		cons.AgreementPct = pct.Round(2).InexactFloat64()
	}
	return cons
}

// memberConfidence reads a record's confidence, deriving it from odds for
// odds-only members.
func memberConfidence(r feed.Record) int {
	if r.Confidence > 0 {
		return r.Confidence
	}
	if r.Odds >= feed.MinDecimalOdds {
		if pct, err := feed.ConfidenceFromOdds(r.Odds); err == nil {
			return pct
		}
	}
	return 0
}

// teamOverlap counts how many of one match's two teams have a recognizable
// counterpart in the other's. Two overlaps merge the matches; a single
// overlap is deliberately treated as distinct — with no canonical team
// registry, a false merge is worse than a missed one.
func teamOverlap(aHome, aAway, bHome, bAway string) int {
	n := 0
	if teamsEquivalent(aHome, bHome) {
		n++
		if teamsEquivalent(aAway, bAway) {
			n++
		}
		return n
	}
	// Sources disagree on side ordering sometimes; try the swap.
	if teamsEquivalent(aHome, bAway) {
		n++
		if teamsEquivalent(aAway, bHome) {
			n++
		}
		return n
	}
	if teamsEquivalent(aAway, bAway) || teamsEquivalent(aAway, bHome) {
		n++
	}
	return n
}

// teamsEquivalent reports whether two normalized names recognizably refer
// to the same team: equal, or one contained in the other ("inter" inside
// "inter milan"). Containment needs at least three characters so stub
// fragments cannot bridge unrelated teams.
func teamsEquivalent(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	return len(short) >= 3 && strings.Contains(long, short)
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeTeam lowercases, strips accents and boilerplate suffixes, and
// collapses whitespace.
func normalizeTeam(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name, _, _ = transform.String(accentStripper, name)

	for _, suffix := range []string{" fc", " afc", " cf", " sc"} {
		name = strings.TrimSuffix(name, suffix)
	}

	return strings.Join(strings.Fields(name), " ")
}
