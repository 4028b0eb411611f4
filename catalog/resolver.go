package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ganderhq/gander/client"
)

var (
	// ErrNoMatch means a request resolved to zero candidates.
	ErrNoMatch = errors.New("no matching title")
	// ErrSelectionAborted means the user declined to pick a candidate.
	ErrSelectionAborted = errors.New("selection aborted")
)

// Policy decides how an ambiguous result set is reduced to one title.
type Policy int

const (
	// First picks the first candidate in upstream search order.
	First Policy = iota
	// Interactive asks the selection capability to pick one.
	Interactive
)

// Selector is the interactive selection capability. PickOne presents the
// labeled choices and returns the chosen index, or ok=false when the user
// declines.
type Selector interface {
	PickOne(prompt string, items []string) (index int, ok bool, err error)
}

// Resolve reduces a candidate list to exactly one product.
//
// The candidate order is whatever the upstream search produced; under the
// First policy that order is the documented tie-break. The interactive list
// is sorted by title for display only.
func Resolve(candidates []client.Product, policy Policy, sel Selector) (client.Product, error) {
	switch {
	case len(candidates) == 0:
		return client.Product{}, ErrNoMatch
	case len(candidates) == 1:
		return candidates[0], nil
	}

	if policy == First {
		return candidates[0], nil
	}

	if sel == nil {
		return client.Product{}, fmt.Errorf("interactive policy requires a selector")
	}

	// Display-sorted view over the original slice.
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Title < candidates[order[b]].Title
	})

	items := make([]string, len(order))
	for i, idx := range order {
		items[i] = fmt.Sprintf("%s - %d", candidates[idx].Title, candidates[idx].ID)
	}

	picked, ok, err := sel.PickOne("Select a game:", items)
	if err != nil {
		return client.Product{}, err
	}
	if !ok || picked < 0 || picked >= len(order) {
		return client.Product{}, ErrSelectionAborted
	}
	return candidates[order[picked]], nil
}
