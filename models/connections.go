package models

const (
	ConnectionsTable MongoDbCollection = "CONNECTION"
)

type ConnectionEntry struct {
	UserID      int64                  `bson:"_id"`
	Groups      []ConnectionEntryGroup `bson:"group_details"`
	ActiveGroup *int64                 `bson:"active_group"`
}

type ConnectionEntryGroup struct {
	GroupID int64 `bson:"group_id"`
}

// GroupIDs returns the connected groups in join order
func (c ConnectionEntry) GroupIDs() []int64 {
	ids := make([]int64, 0, len(c.Groups))
	for _, group := range c.Groups {
		ids = append(ids, group.GroupID)
	}
	return ids
}

func (c ConnectionEntry) HasGroup(groupID int64) bool {
	for _, group := range c.Groups {
		if group.GroupID == groupID {
			return true
		}
	}
	return false
}
