package models

const (
	// GlobalFiltersBucket is the default bucket holding bot-wide filters
	GlobalFiltersBucket = "gfilters"
)

// FilterEntry is one keyword auto-reply. The collection name is the scope.
type FilterEntry struct {
	Keyword string `bson:"text"`
	Reply   string `bson:"reply"`
	Buttons string `bson:"btn"`
	File    string `bson:"file"`
	Alert   string `bson:"alert"`
}
