package media

import (
	"os"
	"testing"

	"github.com/globalsign/mgo/bson"
	"github.com/mediabot/mediabot/helpers"
	"github.com/mediabot/mediabot/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	query, err := NewQuery("avatar", "video", true)
	require.NoError(t, err)

	regex := bson.RegEx{Pattern: query.Pattern, Options: "i"}
	assert.Equal(t, bson.M{
		"$or":       []bson.M{{"file_name": regex}, {"caption": regex}},
		"file_type": "video",
	}, selector(query))

	query, err = NewQuery("avatar", "", false)
	require.NoError(t, err)
	assert.Equal(t, bson.M{"file_name": regex}, selector(query))
}

// requires a running server, set MEDIABOT_TEST_MONGO to its url
func TestMgoBackend(t *testing.T) {
	url := os.Getenv("MEDIABOT_TEST_MONGO")
	if url == "" {
		t.Skip("set MEDIABOT_TEST_MONGO to run against MongoDB")
	}

	db, err := helpers.ConnectMDB(url, "mediabot_test", models.PrimaryInstance)
	require.NoError(t, err)
	defer db.Close()

	backend := NewMgoBackend(db, "media_test")
	_ = backend.c().DropCollection()
	require.NoError(t, backend.EnsureIndexes())

	entry := models.MediaEntry{ID: "key-1", Name: "avatar 2009", Size: 10, Kind: "video"}
	require.NoError(t, backend.Insert(entry))
	assert.Equal(t, ErrDuplicate, errors.Cause(backend.Insert(entry)))
	require.NoError(t, backend.Insert(models.MediaEntry{ID: "key-2", Name: "avatar 2022", Size: 20, Kind: "video"}))

	exists, err := backend.Exists("key-1")
	require.NoError(t, err)
	assert.True(t, exists)

	query, err := NewQuery("avatar", "", false)
	require.NoError(t, err)
	count, err := backend.Count(query)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := backend.Find(query, 0, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "key-2", entries[0].ID)

	missing, err := backend.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
