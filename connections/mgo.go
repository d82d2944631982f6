package connections

import (
	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	"github.com/mediabot/mediabot/helpers"
	"github.com/mediabot/mediabot/models"
	"github.com/pkg/errors"
)

// MgoBackend keeps one document per user in the CONNECTION collection
type MgoBackend struct {
	db *helpers.MDb
}

func NewMgoBackend(db *helpers.MDb) *MgoBackend {
	return &MgoBackend{db: db}
}

func (m *MgoBackend) c() *mgo.Collection {
	return m.db.C(models.ConnectionsTable)
}

func (m *MgoBackend) Get(userID int64) (*models.ConnectionEntry, error) {
	var entry models.ConnectionEntry
	err := m.c().FindId(userID).One(&entry)
	if helpers.IsMdbNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (m *MgoBackend) Insert(entry models.ConnectionEntry) error {
	err := m.c().Insert(entry)
	if helpers.IsMdbDuplicate(err) {
		return errors.Wrapf(ErrDuplicate, "user %d", entry.UserID)
	}
	return err
}

func (m *MgoBackend) PushGroup(userID int64, groupID int64) error {
	return m.c().UpdateId(userID, bson.M{
		"$push": bson.M{"group_details": models.ConnectionEntryGroup{GroupID: groupID}},
		"$set":  bson.M{"active_group": groupID},
	})
}

func (m *MgoBackend) PullGroup(userID int64, groupID int64) error {
	return m.c().UpdateId(userID, bson.M{
		"$pull": bson.M{"group_details": bson.M{"group_id": groupID}},
	})
}

func (m *MgoBackend) SetActive(userID int64, groupID *int64) (bool, error) {
	err := m.c().UpdateId(userID, bson.M{"$set": bson.M{"active_group": groupID}})
	if helpers.IsMdbNotFound(err) {
		return false, nil
	}
	return err == nil, err
}
