package filters

import (
	"sort"
	"testing"

	"github.com/mediabot/mediabot/federated"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryBackend maps scope -> keyword -> entry, keeping insertion order per scope
type memoryBackend struct {
	scopes map[string][]models.FilterEntry
	extra  []string
	err    error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{scopes: map[string][]models.FilterEntry{}}
}

func (m *memoryBackend) Upsert(scope string, entry models.FilterEntry) error {
	if m.err != nil {
		return m.err
	}
	for i, existing := range m.scopes[scope] {
		if existing.Keyword == entry.Keyword {
			m.scopes[scope][i] = entry
			return nil
		}
	}
	m.scopes[scope] = append(m.scopes[scope], entry)
	return nil
}

func (m *memoryBackend) Find(scope string, keyword string) (*models.FilterEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, entry := range m.scopes[scope] {
		if entry.Keyword == keyword {
			found := entry
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memoryBackend) Keywords(scope string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var keywords []string
	for _, entry := range m.scopes[scope] {
		keywords = append(keywords, entry.Keyword)
	}
	return keywords, nil
}

func (m *memoryBackend) Delete(scope string, keyword string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for i, entry := range m.scopes[scope] {
		if entry.Keyword == keyword {
			m.scopes[scope] = append(m.scopes[scope][:i], m.scopes[scope][i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryBackend) Drop(scope string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.scopes, scope)
	return nil
}

func (m *memoryBackend) Count(scope string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return len(m.scopes[scope]), nil
}

func (m *memoryBackend) Scopes() ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	names := append([]string{}, m.extra...)
	for name := range m.scopes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func newTestStore(target models.Instance) (*Store, *memoryBackend, *memoryBackend) {
	primary, secondary := newMemoryBackend(), newMemoryBackend()
	return NewGroupStore(primary, secondary, true, router.New(target), Options{Reserved: []string{"Telegram_files"}}), primary, secondary
}

func TestUpsertIsIdempotent(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)

	require.NoError(t, store.Upsert("-1001", models.FilterEntry{Keyword: "hello", Reply: "first"}))
	require.NoError(t, store.Upsert("-1001", models.FilterEntry{Keyword: "hello", Reply: "second"}))

	assert.Len(t, primary.scopes["-1001"], 1)
	assert.Empty(t, secondary.scopes["-1001"])
	assert.Equal(t, []string{"hello"}, store.ListKeywords("-1001"))

	entry, ok := store.Find("-1001", "hello")
	require.True(t, ok)
	assert.Equal(t, "second", entry.Reply)
}

func TestUpsertFollowsRouter(t *testing.T) {
	store, primary, secondary := newTestStore(models.SecondaryInstance)

	require.NoError(t, store.Upsert("-1001", models.FilterEntry{Keyword: "hello", Reply: "hi"}))
	assert.Empty(t, primary.scopes["-1001"])
	assert.Len(t, secondary.scopes["-1001"], 1)

	secondary.err = errors.New("timeout")
	err := store.Upsert("-1001", models.FilterEntry{Keyword: "bye"})
	assert.Equal(t, federated.ErrStorageUnavailable, errors.Cause(err))
}

func TestFindProbesBothInstances(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)
	primary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a", Reply: "primary"}}
	secondary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a", Reply: "secondary"}, {Keyword: "b", Reply: "only secondary"}}

	entry, ok := store.Find("-1001", "a")
	require.True(t, ok)
	assert.Equal(t, "primary", entry.Reply)

	entry, ok = store.Find("-1001", "b")
	require.True(t, ok)
	assert.Equal(t, "only secondary", entry.Reply)

	_, ok = store.Find("-1001", "c")
	assert.False(t, ok)

	// a failing primary does not hide the secondary
	primary.err = errors.New("timeout")
	entry, ok = store.Find("-1001", "a")
	require.True(t, ok)
	assert.Equal(t, "secondary", entry.Reply)
}

func TestListKeywordsKeepsDuplicates(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)
	primary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}, {Keyword: "b"}}
	secondary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}}

	assert.Equal(t, []string{"a", "b", "a"}, store.ListKeywords("-1001"))
	assert.Empty(t, store.ListKeywords("-1002"))
}

func TestDelete(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)
	primary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}}
	secondary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}, {Keyword: "b"}}

	deleted, err := store.Delete("-1001", "a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, primary.scopes["-1001"])
	assert.Len(t, secondary.scopes["-1001"], 2)

	deleted, err = store.Delete("-1001", "b")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete("-1001", "missing")
	require.NoError(t, err)
	assert.False(t, deleted)

	primary.err = errors.New("timeout")
	secondary.err = errors.New("timeout")
	_, err = store.Delete("-1001", "a")
	assert.Equal(t, federated.ErrStorageUnavailable, errors.Cause(err))
}

func TestDeleteScope(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)

	removal, err := store.DeleteScope("-1001")
	require.NoError(t, err)
	assert.Equal(t, NothingToRemove, removal)

	secondary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}}
	primary.scopes["-1001"] = []models.FilterEntry{{Keyword: "b"}}
	primary.scopes["-1002"] = []models.FilterEntry{{Keyword: "c"}}

	removal, err = store.DeleteScope("-1001")
	require.NoError(t, err)
	assert.Equal(t, Removed, removal)
	assert.NotContains(t, primary.scopes, "-1001")
	assert.NotContains(t, secondary.scopes, "-1001")
	assert.Contains(t, primary.scopes, "-1002")
}

func TestCount(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)

	assert.Equal(t, Count{State: Empty}, store.Count("-1001"))

	primary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}}
	secondary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}, {Keyword: "b"}}
	assert.Equal(t, Count{N: 3, State: Counted}, store.Count("-1001"))

	secondary.err = errors.New("timeout")
	assert.Equal(t, Count{N: 1, State: Failed}, store.Count("-1001"))
}

func TestAggregateStats(t *testing.T) {
	store, primary, secondary := newTestStore(models.PrimaryInstance)
	primary.extra = []string{"CONNECTION", "Telegram_files", "system.indexes"}
	primary.scopes["-1001"] = []models.FilterEntry{{Keyword: "a"}, {Keyword: "b"}}
	primary.scopes["gfilters"] = []models.FilterEntry{{Keyword: "global"}}
	secondary.scopes["-1001"] = []models.FilterEntry{{Keyword: "c"}}
	secondary.scopes["-1002"] = []models.FilterEntry{{Keyword: "d"}}

	assert.Equal(t, Stats{Scopes: 3, Keywords: 4}, store.AggregateStats())

	global := NewGlobalStore(primary, secondary, true, router.New(models.PrimaryInstance), Options{Reserved: []string{"Telegram_files"}})
	assert.Equal(t, Stats{Scopes: 1, Keywords: 1}, global.AggregateStats())

	secondary.err = errors.New("timeout")
	assert.Equal(t, Stats{Scopes: 1, Keywords: 2, Degraded: true}, store.AggregateStats())
}

// recordingCache is a map backed Cache
type recordingCache struct {
	replies     map[string]models.FilterEntry
	keywords    map[string][]string
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{replies: map[string]models.FilterEntry{}, keywords: map[string][]string{}}
}

func (c *recordingCache) GetReply(scope, keyword string) (*models.FilterEntry, bool) {
	entry, ok := c.replies[scope+"/"+keyword]
	return &entry, ok
}

func (c *recordingCache) SetReply(scope, keyword string, entry models.FilterEntry) {
	c.replies[scope+"/"+keyword] = entry
}

func (c *recordingCache) GetKeywords(scope string) ([]string, bool) {
	keywords, ok := c.keywords[scope]
	return keywords, ok
}

func (c *recordingCache) SetKeywords(scope string, keywords []string) {
	c.keywords[scope] = keywords
}

func (c *recordingCache) Invalidate(scope, keyword string) {
	delete(c.replies, scope+"/"+keyword)
	delete(c.keywords, scope)
	c.invalidated = append(c.invalidated, scope+"/"+keyword)
}

func (c *recordingCache) InvalidateScope(scope string) {
	for key := range c.replies {
		delete(c.replies, key)
	}
	delete(c.keywords, scope)
	c.invalidated = append(c.invalidated, scope+"/*")
}

func TestStoreUsesCache(t *testing.T) {
	replies := newRecordingCache()
	primary, secondary := newMemoryBackend(), newMemoryBackend()
	store := NewGroupStore(primary, secondary, true, router.New(models.PrimaryInstance), Options{Cache: replies})

	require.NoError(t, store.Upsert("-1001", models.FilterEntry{Keyword: "hello", Reply: "hi"}))
	_, ok := store.Find("-1001", "hello")
	require.True(t, ok)
	assert.Contains(t, replies.replies, "-1001/hello")
	assert.Equal(t, []string{"hello"}, store.ListKeywords("-1001"))

	// served from cache even when both instances are down
	primary.err = errors.New("timeout")
	secondary.err = errors.New("timeout")
	entry, ok := store.Find("-1001", "hello")
	require.True(t, ok)
	assert.Equal(t, "hi", entry.Reply)
	assert.Equal(t, []string{"hello"}, store.ListKeywords("-1001"))

	primary.err, secondary.err = nil, nil
	deleted, err := store.Delete("-1001", "hello")
	require.NoError(t, err)
	assert.True(t, deleted)
	_, ok = store.Find("-1001", "hello")
	assert.False(t, ok)

	require.NoError(t, store.Upsert("-1001", models.FilterEntry{Keyword: "bye"}))
	removal, err := store.DeleteScope("-1001")
	require.NoError(t, err)
	assert.Equal(t, Removed, removal)
	assert.Equal(t, []string{"-1001/hello", "-1001/hello", "-1001/bye", "-1001/*"}, replies.invalidated)
}

func TestGlobalStoreDefaultScope(t *testing.T) {
	primary, secondary := newMemoryBackend(), newMemoryBackend()
	global := NewGlobalStore(primary, secondary, true, router.New(models.PrimaryInstance), Options{})
	assert.Equal(t, "gfilters", global.DefaultScope())

	custom := NewGlobalStore(primary, secondary, true, router.New(models.PrimaryInstance), Options{DefaultScope: "botwide"})
	require.NoError(t, custom.Upsert("", models.FilterEntry{Keyword: "rules", Reply: "be nice"}))
	assert.Len(t, primary.scopes["botwide"], 1)

	entry, ok := custom.Find("", "rules")
	require.True(t, ok)
	assert.Equal(t, "be nice", entry.Reply)
	assert.Equal(t, []string{"rules"}, custom.ListKeywords(""))
	assert.Equal(t, Count{N: 1, State: Counted}, custom.Count(""))

	deleted, err := custom.Delete("", "rules")
	require.NoError(t, err)
	assert.True(t, deleted)
	removal, err := custom.DeleteScope("")
	require.NoError(t, err)
	assert.Equal(t, Removed, removal)
	assert.NotContains(t, primary.scopes, "botwide")
}
