package filters

import (
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/mediabot/mediabot/helpers"
	"github.com/mediabot/mediabot/models"
)

// MgoBackend stores every scope as its own collection
type MgoBackend struct {
	db *helpers.MDb
}

func NewMgoBackend(db *helpers.MDb) *MgoBackend {
	return &MgoBackend{db: db}
}

func (m *MgoBackend) c(scope string) *mgo.Collection {
	return m.db.C(models.MongoDbCollection(scope))
}

func (m *MgoBackend) Upsert(scope string, entry models.FilterEntry) error {
	_, err := m.c(scope).Upsert(bson.M{"text": entry.Keyword}, bson.M{"$set": entry})
	return err
}

func (m *MgoBackend) Find(scope string, keyword string) (*models.FilterEntry, error) {
	var entry models.FilterEntry
	err := m.c(scope).Find(bson.M{"text": keyword}).One(&entry)
	if helpers.IsMdbNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (m *MgoBackend) Keywords(scope string) ([]string, error) {
	var entries []models.FilterEntry
	err := m.c(scope).Find(nil).Select(bson.M{"text": 1}).All(&entries)
	if err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(entries))
	for _, entry := range entries {
		keywords = append(keywords, entry.Keyword)
	}
	return keywords, nil
}

func (m *MgoBackend) Delete(scope string, keyword string) (bool, error) {
	err := m.c(scope).Remove(bson.M{"text": keyword})
	if helpers.IsMdbNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Drop removes the scope's collection, a missing collection is not an error
func (m *MgoBackend) Drop(scope string) error {
	err := m.c(scope).DropCollection()
	if helpers.IsMdbNamespaceMissing(err) {
		return nil
	}
	return err
}

func (m *MgoBackend) Count(scope string) (int, error) {
	return m.c(scope).Count()
}

func (m *MgoBackend) Scopes() ([]string, error) {
	return m.db.CollectionNames()
}
