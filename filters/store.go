// Package filters keeps keyword auto-replies, one collection per group or global bucket on each instance.
package filters

import (
	"strconv"
	"strings"

	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/federated"
	"github.com/mediabot/mediabot/metrics"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
)

// Backend is the filter storage of one database instance, the scope is the collection name
type Backend interface {
	Upsert(scope string, entry models.FilterEntry) error
	Find(scope string, keyword string) (*models.FilterEntry, error)
	Keywords(scope string) ([]string, error)
	// Delete reports whether a filter was removed
	Delete(scope string, keyword string) (bool, error)
	Drop(scope string) error
	Count(scope string) (int, error)
	// Scopes lists every collection of the instance
	Scopes() ([]string, error)
}

// Cache sits in front of lookups. Misses are never cached.
type Cache interface {
	GetReply(scope, keyword string) (*models.FilterEntry, bool)
	SetReply(scope, keyword string, entry models.FilterEntry)
	GetKeywords(scope string) ([]string, bool)
	SetKeywords(scope string, keywords []string)
	Invalidate(scope, keyword string)
	InvalidateScope(scope string)
}

type Options struct {
	Cache Cache
	// Reserved collections are never treated as scopes
	Reserved []string
	// DefaultScope is used by calls with an empty scope
	DefaultScope string
}

type Store struct {
	name    string
	pair    federated.Pair[Backend]
	cache        Cache
	defaultScope string
	isScope      func(name string) bool
}

// NewGroupStore keeps filters of groups, scopes are numeric group ids
func NewGroupStore(primary Backend, secondary Backend, hasSecondary bool, r *router.Router, options Options) *Store {
	reserved := reservedSet(options.Reserved)
	return newStore("filters", primary, secondary, hasSecondary, r, options, func(name string) bool {
		return !reserved(name) && isGroupID(name)
	})
}

// NewGlobalStore keeps bot-wide filters, scopes are bucket names. The default scope falls back
// to the gfilters bucket.
func NewGlobalStore(primary Backend, secondary Backend, hasSecondary bool, r *router.Router, options Options) *Store {
	if options.DefaultScope == "" {
		options.DefaultScope = models.GlobalFiltersBucket
	}
	reserved := reservedSet(options.Reserved)
	return newStore("gfilters", primary, secondary, hasSecondary, r, options, func(name string) bool {
		return !reserved(name) && !isGroupID(name)
	})
}

func newStore(name string, primary, secondary Backend, hasSecondary bool, r *router.Router, options Options, isScope func(string) bool) *Store {
	return &Store{
		name:         name,
		pair:         federated.NewPair(primary, secondary, hasSecondary, r),
		cache:        options.Cache,
		defaultScope: options.DefaultScope,
		isScope:      isScope,
	}
}

func reservedSet(extra []string) func(string) bool {
	names := map[string]bool{models.ConnectionsTable.String(): true}
	for _, name := range extra {
		names[name] = true
	}
	return func(name string) bool {
		return names[name] || strings.HasPrefix(name, "system.")
	}
}

// DefaultScope returns the scope used for calls without one
func (s *Store) DefaultScope() string {
	return s.defaultScope
}

func (s *Store) scopeOf(scope string) string {
	if scope == "" {
		return s.defaultScope
	}
	return scope
}

func isGroupID(name string) bool {
	_, err := strconv.ParseInt(name, 10, 64)
	return err == nil
}

// Upsert writes or replaces the filter for keyword in the instance the router designates
func (s *Store) Upsert(scope string, entry models.FilterEntry) error {
	scope = s.scopeOf(scope)
	writer := s.pair.Writer()
	if err := writer.Backend.Upsert(scope, entry); err != nil {
		cache.GetLogger().WithField("module", s.name).WithField("instance", writer.Instance.String()).
			Errorf("error adding filter %q for %s: %s", entry.Keyword, scope, err.Error())
		return errors.Wrap(federated.ErrStorageUnavailable, err.Error())
	}

	if s.cache != nil {
		s.cache.Invalidate(scope, entry.Keyword)
	}
	return nil
}

// Find returns the reply for keyword, probing the primary first
func (s *Store) Find(scope string, keyword string) (*models.FilterEntry, bool) {
	scope = s.scopeOf(scope)
	if s.cache != nil {
		if entry, ok := s.cache.GetReply(scope, keyword); ok {
			metrics.FilterHits.Add(1)
			return entry, true
		}
	}

	entry, _, found, warnings := federated.Probe(s.pair.Lookup(), func(backend Backend) (*models.FilterEntry, bool, error) {
		entry, err := backend.Find(scope, keyword)
		return entry, entry != nil, err
	})
	warnings.Log(s.name, "find "+scope)
	if !found {
		return nil, false
	}

	metrics.FilterHits.Add(1)
	if s.cache != nil {
		s.cache.SetReply(scope, keyword, *entry)
	}
	return entry, true
}

// ListKeywords returns the keywords of both instances. A keyword stored in both shows up twice.
func (s *Store) ListKeywords(scope string) []string {
	scope = s.scopeOf(scope)
	if s.cache != nil {
		if keywords, ok := s.cache.GetKeywords(scope); ok {
			return keywords
		}
	}

	keywords, warnings := federated.Collect(s.pair.Lookup(), func(backend Backend) ([]string, error) {
		return backend.Keywords(scope)
	})
	warnings.Log(s.name, "list "+scope)

	if s.cache != nil && !warnings.Degraded() {
		s.cache.SetKeywords(scope, keywords)
	}
	return keywords
}

// Delete removes keyword from the primary, or from the secondary if the primary had none
func (s *Store) Delete(scope string, keyword string) (bool, error) {
	scope = s.scopeOf(scope)
	_, _, deleted, warnings := federated.Probe(s.pair.Lookup(), func(backend Backend) (struct{}, bool, error) {
		removed, err := backend.Delete(scope, keyword)
		return struct{}{}, removed, err
	})
	warnings.Log(s.name, "delete "+scope)

	if s.cache != nil {
		s.cache.Invalidate(scope, keyword)
	}
	if !deleted && warnings.Degraded() {
		return false, warnings.Err()
	}
	return deleted, nil
}

type Removal int

const (
	Removed Removal = iota
	NothingToRemove
)

// DeleteScope drops the scope's collection on both instances
func (s *Store) DeleteScope(scope string) (Removal, error) {
	scope = s.scopeOf(scope)
	exists, warnings := federated.Collect(s.pair.Lookup(), func(backend Backend) ([]bool, error) {
		names, err := backend.Scopes()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if name == scope {
				return []bool{true}, nil
			}
		}
		return nil, nil
	})
	if warnings.Degraded() {
		warnings.Log(s.name, "drop "+scope)
		return NothingToRemove, warnings.Err()
	}
	if len(exists) == 0 {
		return NothingToRemove, nil
	}

	for _, member := range s.pair.Lookup() {
		if err := member.Backend.Drop(scope); err != nil {
			cache.GetLogger().WithField("module", s.name).WithField("instance", member.Instance.String()).
				Errorf("error removing all filters from %s: %s", scope, err.Error())
			return NothingToRemove, errors.Wrap(federated.ErrStorageUnavailable, err.Error())
		}
	}

	if s.cache != nil {
		s.cache.InvalidateScope(scope)
	}
	return Removed, nil
}

type CountState int

const (
	Counted CountState = iota
	Empty
	Failed
)

// Count keeps "no filters" and "could not count" apart
type Count struct {
	N     int
	State CountState
}

// Count returns the filters of scope over both instances
func (s *Store) Count(scope string) Count {
	scope = s.scopeOf(scope)
	total, warnings := federated.Sum(s.pair.Lookup(), func(backend Backend) (int, error) {
		return backend.Count(scope)
	})
	if warnings.Degraded() {
		warnings.Log(s.name, "count "+scope)
		return Count{N: total, State: Failed}
	}
	if total == 0 {
		return Count{State: Empty}
	}
	return Count{N: total, State: Counted}
}

type Stats struct {
	Scopes   int
	Keywords int
	Degraded bool
}

// AggregateStats counts scopes and filters over both instances. A scope present on both counts twice.
func (s *Store) AggregateStats() (stats Stats) {
	var warnings federated.Warnings
	for _, member := range s.pair.Lookup() {
		names, err := member.Backend.Scopes()
		if err != nil {
			warnings = append(warnings, federated.Warning{Instance: member.Instance, Err: err})
			continue
		}
		for _, name := range names {
			if !s.isScope(name) {
				continue
			}
			count, err := member.Backend.Count(name)
			if err != nil {
				warnings = append(warnings, federated.Warning{Instance: member.Instance, Err: err})
				continue
			}
			stats.Scopes++
			stats.Keywords += count
		}
	}
	warnings.Log(s.name, "stats")
	stats.Degraded = warnings.Degraded()
	return stats
}
