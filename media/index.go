// Package media stores indexed file metadata across both database instances and searches it.
package media

import (
	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/chat"
	"github.com/mediabot/mediabot/codec"
	"github.com/mediabot/mediabot/federated"
	"github.com/mediabot/mediabot/metrics"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
)

const DefaultPageSize = 10

var (
	// ErrDuplicate is returned by backends when the key is already stored
	ErrDuplicate = errors.New("media entry already exists")

	ErrValidation = errors.New("media entry is invalid")
)

// Backend is the media collection of one database instance.
// Find and Page results are ordered newest first.
type Backend interface {
	EnsureIndexes() error
	Exists(key string) (bool, error)
	Insert(entry models.MediaEntry) error
	Get(key string) (*models.MediaEntry, error)
	Count(query Query) (int, error)
	// Find returns matches starting at skip, limit <= 0 returns all of them
	Find(query Query, skip, limit int) ([]models.MediaEntry, error)
	Total() (int, error)
}

type Outcome int

const (
	NotSaved Outcome = iota
	Inserted
	DuplicateByKey
	ValidationFailed
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case DuplicateByKey:
		return "duplicate"
	case ValidationFailed:
		return "invalid"
	}
	return "not saved"
}

type Options struct {
	Decoder  codec.Decoder
	PageSize int
	// PageSizeFunc overrides the page size for searches scoped to a group
	PageSizeFunc func(scopeID int64) int
	// MatchCaption turns on caption matching for every search
	MatchCaption bool
}

type Index struct {
	pair         federated.Pair[Backend]
	decoder      codec.Decoder
	pageSize     int
	pageSizeFunc func(scopeID int64) int
	matchCaption bool
}

func NewIndex(primary Backend, secondary Backend, hasSecondary bool, r *router.Router, options Options) *Index {
	if options.Decoder == nil {
		options.Decoder = codec.Native{}
	}
	if options.PageSize <= 0 {
		options.PageSize = DefaultPageSize
	}
	return &Index{
		pair:         federated.NewPair(primary, secondary, hasSecondary, r),
		decoder:      options.Decoder,
		pageSize:     options.PageSize,
		pageSizeFunc: options.PageSizeFunc,
		matchCaption: options.MatchCaption,
	}
}

// EnsureIndexes creates the name index on every instance. It must succeed before the index serves traffic.
func (i *Index) EnsureIndexes() error {
	for _, member := range i.pair.Lookup() {
		if err := member.Backend.EnsureIndexes(); err != nil {
			return errors.Wrapf(err, "creating media indexes on %s database failed", member.Instance)
		}
	}
	return nil
}

// Save indexes file. A malformed identifier is returned as error, duplicates and invalid
// metadata are reported through the outcome.
func (i *Index) Save(file chat.File) (Outcome, error) {
	key, reference, err := codec.Unpack(i.decoder, file.FileID)
	if err != nil {
		return NotSaved, err
	}

	return i.SaveEntry(models.MediaEntry{
		ID:        key,
		Reference: reference,
		Name:      NormalizeName(file.Name),
		Size:      file.Size,
		Kind:      file.Kind,
		MimeType:  file.MimeType,
		Caption:   file.Caption,
	})
}

// SaveEntry stores entry in the instance the router designates. Only the primary is checked
// for an existing key, the unique index of the target catches the remaining duplicates.
func (i *Index) SaveEntry(entry models.MediaEntry) (Outcome, error) {
	log := cache.GetLogger().WithField("module", "media")

	if err := validate(entry); err != nil {
		log.Errorf("validation error occurred while saving %q: %s", entry.Name, err.Error())
		return ValidationFailed, nil
	}

	primary := i.pair.Primary()
	exists, err := primary.Backend.Exists(entry.ID)
	if err != nil {
		federated.Warnings{{Instance: primary.Instance, Err: err}}.Log("media", "duplicate check")
	}
	if exists {
		log.Warnf("%s is already saved in the primary database", entry.Name)
		metrics.FilesDuplicate.Add(1)
		return DuplicateByKey, nil
	}

	writer := i.pair.Writer()
	err = writer.Backend.Insert(entry)
	if errors.Cause(err) == ErrDuplicate {
		log.Warnf("%s is already saved in the %s database", entry.Name, writer.Instance)
		metrics.FilesDuplicate.Add(1)
		return DuplicateByKey, nil
	}
	if err != nil {
		return NotSaved, errors.Wrap(federated.ErrStorageUnavailable, err.Error())
	}

	log.Infof("%s is saved to the %s database", entry.Name, writer.Instance)
	metrics.FilesSaved.Add(1)
	return Inserted, nil
}

func validate(entry models.MediaEntry) error {
	if entry.ID == "" {
		return errors.Wrap(ErrValidation, "missing key")
	}
	if entry.Name == "" {
		return errors.Wrap(ErrValidation, "missing file name")
	}
	if entry.Size < 0 {
		return errors.Wrap(ErrValidation, "negative file size")
	}
	return nil
}

type SearchRequest struct {
	// ScopeID is the group the search was issued in, 0 for none
	ScopeID      int64
	Query        string
	Kind         string
	PageSize     int
	Offset       int
	MatchCaption bool
}

type Page struct {
	Entries []models.MediaEntry
	// NextOffset is federated.NoNextOffset on the last page
	NextOffset int
	Total      int
	Degraded   bool
}

// Search returns one page of the merged feed, secondary entries first, newest first within each instance
func (i *Index) Search(request SearchRequest) Page {
	metrics.Searches.Add(1)

	query, err := NewQuery(request.Query, request.Kind, request.MatchCaption || i.matchCaption)
	if err != nil {
		return Page{NextOffset: federated.NoNextOffset}
	}

	primary := i.pair.Primary()
	older := federated.Source[models.MediaEntry]{Instance: primary.Instance, Pager: pager{primary.Backend, query}}
	newer := federated.Source[models.MediaEntry]{Instance: models.SecondaryInstance, Pager: federated.Empty[models.MediaEntry]{}}
	if secondary, ok := i.pair.Secondary(); ok {
		newer.Pager = pager{secondary.Backend, query}
	}

	page := federated.Paginate(newer, older, request.Offset, i.resolvePageSize(request))
	page.Warnings.Log("media", "search")

	return Page{
		Entries:    page.Items,
		NextOffset: page.Next,
		Total:      page.Total,
		Degraded:   page.Warnings.Degraded(),
	}
}

func (i *Index) resolvePageSize(request SearchRequest) int {
	if request.ScopeID != 0 && i.pageSizeFunc != nil {
		if size := i.pageSizeFunc(request.ScopeID); size > 0 {
			return size
		}
	}
	if request.PageSize > 0 {
		return request.PageSize
	}
	return i.pageSize
}

// GetAllMatches returns every match, secondary entries first. Meant for bulk review by admins.
func (i *Index) GetAllMatches(text string, kind string, matchCaption bool) (entries []models.MediaEntry, degraded bool) {
	query, err := NewQuery(text, kind, matchCaption || i.matchCaption)
	if err != nil {
		return nil, false
	}

	entries, warnings := federated.Collect(i.pair.NewestFirst(), func(backend Backend) ([]models.MediaEntry, error) {
		return backend.Find(query, 0, 0)
	})
	warnings.Log("media", "bulk match")

	return entries, warnings.Degraded()
}

// GetByKey looks key up in the primary, then the secondary
func (i *Index) GetByKey(key string) (*models.MediaEntry, bool) {
	entry, _, found, warnings := federated.Probe(i.pair.Lookup(), func(backend Backend) (*models.MediaEntry, bool, error) {
		entry, err := backend.Get(key)
		return entry, entry != nil, err
	})
	warnings.Log("media", "lookup")

	return entry, found
}

type InstanceTotals struct {
	Primary   int
	Secondary int
	Degraded  bool
}

// Totals counts the stored entries per instance
func (i *Index) Totals() (totals InstanceTotals) {
	var warnings federated.Warnings
	for _, member := range i.pair.Lookup() {
		total, err := member.Backend.Total()
		if err != nil {
			warnings = append(warnings, federated.Warning{Instance: member.Instance, Err: err})
			continue
		}
		if member.Instance == models.PrimaryInstance {
			totals.Primary = total
		} else {
			totals.Secondary = total
		}
	}
	warnings.Log("media", "totals")
	totals.Degraded = warnings.Degraded()
	return totals
}

// pager adapts a backend and a query to the federated feed
type pager struct {
	backend Backend
	query   Query
}

func (p pager) Count() (int, error) {
	return p.backend.Count(p.query)
}

func (p pager) Page(skip, limit int) ([]models.MediaEntry, error) {
	return p.backend.Find(p.query, skip, limit)
}
