// Package federated runs store operations across the primary and secondary database instances.
//
// Writes go to the instance the router designates. Reads probe or merge both instances, and an
// instance that fails is treated as empty for that call while the failure is reported back as a
// warning.
package federated

import (
	"fmt"
	"strings"

	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/metrics"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
)

var ErrStorageUnavailable = errors.New("storage instance unavailable")

// Member is one instance handle of a Pair
type Member[B any] struct {
	Instance models.Instance
	Backend  B
}

// Pair holds the two instance handles of one logical store
type Pair[B any] struct {
	primary      B
	secondary    B
	hasSecondary bool
	router       *router.Router
}

// NewPair pairs primary with an optional secondary. Without a secondary every call is served
// by the primary alone, whatever the router says.
func NewPair[B any](primary B, secondary B, hasSecondary bool, r *router.Router) Pair[B] {
	return Pair[B]{
		primary:      primary,
		secondary:    secondary,
		hasSecondary: hasSecondary,
		router:       r,
	}
}

// Writer returns the member that receives new writes
func (p Pair[B]) Writer() Member[B] {
	if p.hasSecondary && p.router.Target() == models.SecondaryInstance {
		return Member[B]{Instance: models.SecondaryInstance, Backend: p.secondary}
	}
	return Member[B]{Instance: models.PrimaryInstance, Backend: p.primary}
}

func (p Pair[B]) Primary() Member[B] {
	return Member[B]{Instance: models.PrimaryInstance, Backend: p.primary}
}

// Secondary returns the secondary member and whether one is configured
func (p Pair[B]) Secondary() (Member[B], bool) {
	return Member[B]{Instance: models.SecondaryInstance, Backend: p.secondary}, p.hasSecondary
}

// Lookup returns the members in probe order, primary first
func (p Pair[B]) Lookup() []Member[B] {
	members := []Member[B]{p.Primary()}
	if secondary, ok := p.Secondary(); ok {
		members = append(members, secondary)
	}
	return members
}

// NewestFirst returns the members with the secondary, which holds the newer entries, first
func (p Pair[B]) NewestFirst() []Member[B] {
	members := make([]Member[B], 0, 2)
	if secondary, ok := p.Secondary(); ok {
		members = append(members, secondary)
	}
	return append(members, p.Primary())
}

// Warning is a failure of one instance that was absorbed
type Warning struct {
	Instance models.Instance
	Err      error
}

type Warnings []Warning

func (w Warnings) Degraded() bool {
	return len(w) > 0
}

// Err summarizes the warnings as one error that unwraps to ErrStorageUnavailable, or nil
func (w Warnings) Err() error {
	if len(w) == 0 {
		return nil
	}
	parts := make([]string, 0, len(w))
	for _, warning := range w {
		parts = append(parts, fmt.Sprintf("%s: %s", warning.Instance, warning.Err.Error()))
	}
	return errors.Wrap(ErrStorageUnavailable, strings.Join(parts, "; "))
}

// Log writes every warning at warn level
func (w Warnings) Log(module string, operation string) {
	for _, warning := range w {
		metrics.StorageWarnings.Add(1)
		cache.GetLogger().WithField("module", module).WithField("instance", warning.Instance.String()).
			Warnf("%s failed, treating instance as empty: %s", operation, warning.Err.Error())
	}
}

// Probe calls fn on every member in order and returns the first hit
func Probe[B, T any](members []Member[B], fn func(B) (T, bool, error)) (result T, found Member[B], ok bool, warnings Warnings) {
	for _, member := range members {
		value, hit, err := fn(member.Backend)
		if err != nil {
			warnings = append(warnings, Warning{Instance: member.Instance, Err: err})
			continue
		}
		if hit {
			return value, member, true, warnings
		}
	}
	return result, found, false, warnings
}

// Collect calls fn on every member and concatenates the results in member order
func Collect[B, T any](members []Member[B], fn func(B) ([]T, error)) (results []T, warnings Warnings) {
	for _, member := range members {
		values, err := fn(member.Backend)
		if err != nil {
			warnings = append(warnings, Warning{Instance: member.Instance, Err: err})
			continue
		}
		results = append(results, values...)
	}
	return results, warnings
}

// Sum adds up fn over every member
func Sum[B any](members []Member[B], fn func(B) (int, error)) (total int, warnings Warnings) {
	for _, member := range members {
		value, err := fn(member.Backend)
		if err != nil {
			warnings = append(warnings, Warning{Instance: member.Instance, Err: err})
			continue
		}
		total += value
	}
	return total, warnings
}
