package models

const (
	// MediaTable is the default media collection, overridable with media.collection
	MediaTable MongoDbCollection = "Telegram_files"
)

// MediaEntry is one indexed file. ID is the codec key, not the raw platform identifier.
type MediaEntry struct {
	ID        string `bson:"_id"`
	Reference string `bson:"file_ref,omitempty"`
	Name      string `bson:"file_name"`
	Size      int64  `bson:"file_size"`
	Kind      string `bson:"file_type,omitempty"`
	MimeType  string `bson:"mime_type,omitempty"`
	Caption   string `bson:"caption,omitempty"`
}
