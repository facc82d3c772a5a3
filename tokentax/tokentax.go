// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package tokentax allocates a token budget across named text items so that
// small items are preserved and large items absorb the shortfall in
// proportion to their size. The discipline works like a progressive tax:
// items below the average deficit are exempt, everyone above it pays
// proportionally.
package tokentax

// Mode identifies which allocation discipline produced a result.
type Mode string

const (
	// ModeNoTruncation means everything fit inside the target budget.
	ModeNoTruncation Mode = "no-truncation"
	// ModeProtection means items below the average tax kept all their
	// tokens and larger items were scaled down.
	ModeProtection Mode = "protection"
	// ModeFallback means even the small items exceeded the budget on their
	// own, so every item was scaled by target/total.
	ModeFallback Mode = "fallback"
)

// Marker terminates content that was cut short.
const Marker = "\n... [truncated]"

// Item is one named piece of text competing for budget.
type Item struct {
	Name    string
	Content string
	Tokens  int
}

// EstimateTokens approximates the token count of content at four bytes per
// token, rounding up.
func EstimateTokens(content string) int {
	return (len(content) + 3) / 4
}

// NewItem builds an Item with its token estimate filled in.
func NewItem(name, content string) Item {
	return Item{Name: name, Content: content, Tokens: EstimateTokens(content)}
}

// Allocation is the budget decision for one item, in input order.
type Allocation struct {
	Name            string
	AllocatedTokens float64
	AllocatedChars  int
	Truncated       bool
	Protected       bool
}

// Stats summarizes one Allocate run.
type Stats struct {
	TotalBefore    float64
	TotalAfter     float64
	Target         float64
	ItemsProtected int
	ItemsTruncated int
	Mode           Mode
}

// Allocate decides how many tokens each item keeps so that the total does not
// exceed target. When the inputs already fit, everything is kept. Otherwise
// items below the average per-item deficit are protected in full and larger
// items give up tokens proportionally to their size; if the protected set
// alone would blow the budget, every item is scaled down instead. Allocations
// are never negative and, when truncation occurs, sum to target within
// rounding error.
func Allocate(items []Item, target float64) ([]Allocation, Stats) {
	if len(items) == 0 {
		return []Allocation{}, Stats{Target: target, Mode: ModeNoTruncation}
	}

	var sum float64
	for _, it := range items {
		sum += float64(it.Tokens)
	}

	stats := Stats{TotalBefore: sum, Target: target}
	allocs := make([]Allocation, len(items))

	if sum <= target {
		stats.Mode = ModeNoTruncation
		stats.TotalAfter = sum
		for i, it := range items {
			allocs[i] = allocation(it, float64(it.Tokens), false, false)
		}
		return allocs, stats
	}

	deficit := sum - target
	avgTax := deficit / float64(len(items))

	var belowSum float64
	for _, it := range items {
		if float64(it.Tokens) < avgTax {
			belowSum += float64(it.Tokens)
		}
	}

	if belowSum > target {
		// Even the small items overflow the budget. Tax everyone at the
		// same rate.
		stats.Mode = ModeFallback
		ratio := target / sum
		if ratio < 0 {
			ratio = 0
		}
		for i, it := range items {
			kept := float64(it.Tokens) * ratio
			allocs[i] = allocation(it, kept, kept < float64(it.Tokens), false)
			stats.TotalAfter += kept
			if allocs[i].Truncated {
				stats.ItemsTruncated++
			}
		}
		return allocs, stats
	}

	// Small items keep everything, the rest absorb the whole deficit in
	// proportion to their size. The after-sum equals target by construction.
	stats.Mode = ModeProtection
	aboveSum := sum - belowSum
	for i, it := range items {
		tokens := float64(it.Tokens)
		if tokens < avgTax {
			allocs[i] = allocation(it, tokens, false, true)
			stats.ItemsProtected++
			stats.TotalAfter += tokens
			continue
		}
		kept := tokens - tokens/aboveSum*deficit
		if kept < 0 {
			kept = 0
		}
		allocs[i] = allocation(it, kept, true, false)
		stats.ItemsTruncated++
		stats.TotalAfter += kept
	}
	return allocs, stats
}

func allocation(it Item, tokens float64, truncated, protected bool) Allocation {
	chars := int(tokens * 4)
	if chars < 0 {
		chars = 0
	}
	return Allocation{
		Name:            it.Name,
		AllocatedTokens: tokens,
		AllocatedChars:  chars,
		Truncated:       truncated,
		Protected:       protected,
	}
}

// Apply renders the allocation decisions onto the items, returning a new
// slice in input order. Content longer than its character budget is cut to
// the budget with Marker spliced in at the end; everything else is returned
// untouched.
func Apply(items []Item, allocs []Allocation) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it
		if i >= len(allocs) {
			continue
		}
		budget := allocs[i].AllocatedChars
		if budget >= len(it.Content) {
			continue
		}
		if budget == 0 {
			out[i].Content = ""
			out[i].Tokens = 0
			continue
		}
		keep := budget - len(Marker)
		if keep < 0 {
			keep = 0
		}
		out[i].Content = it.Content[:keep] + Marker
		out[i].Tokens = EstimateTokens(out[i].Content)
	}
	return out
}
