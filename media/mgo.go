package media

import (
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/mediabot/mediabot/helpers"
	"github.com/mediabot/mediabot/models"
	"github.com/pkg/errors"
)

// MgoBackend keeps media entries in a MongoDB collection
type MgoBackend struct {
	db         *helpers.MDb
	collection models.MongoDbCollection
}

func NewMgoBackend(db *helpers.MDb, collection models.MongoDbCollection) *MgoBackend {
	if collection == "" {
		collection = models.MediaTable
	}
	return &MgoBackend{db: db, collection: collection}
}

func (m *MgoBackend) c() *mgo.Collection {
	return m.db.C(m.collection)
}

// EnsureIndexes creates the text index on the file name
func (m *MgoBackend) EnsureIndexes() error {
	return m.c().EnsureIndex(mgo.Index{
		Key:        []string{"$text:file_name"},
		Background: true,
	})
}

func (m *MgoBackend) Exists(key string) (bool, error) {
	count, err := m.c().FindId(key).Limit(1).Count()
	return count > 0, err
}

func (m *MgoBackend) Insert(entry models.MediaEntry) error {
	err := m.c().Insert(entry)
	if helpers.IsMdbDuplicate(err) {
		return errors.Wrap(ErrDuplicate, entry.ID)
	}
	return err
}

func (m *MgoBackend) Get(key string) (*models.MediaEntry, error) {
	var entry models.MediaEntry
	err := m.c().FindId(key).One(&entry)
	if helpers.IsMdbNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (m *MgoBackend) Count(query Query) (int, error) {
	return m.c().Find(selector(query)).Count()
}

func (m *MgoBackend) Find(query Query, skip, limit int) ([]models.MediaEntry, error) {
	q := m.c().Find(selector(query)).Sort("-$natural").Skip(skip)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []models.MediaEntry
	err := q.All(&entries)
	return entries, err
}

func (m *MgoBackend) Total() (int, error) {
	return m.c().Count()
}

func selector(query Query) bson.M {
	regex := bson.RegEx{Pattern: query.Pattern, Options: "i"}

	filter := bson.M{"file_name": regex}
	if query.MatchCaption {
		filter = bson.M{"$or": []bson.M{{"file_name": regex}, {"caption": regex}}}
	}
	if query.Kind != "" {
		filter["file_type"] = query.Kind
	}
	return filter
}
