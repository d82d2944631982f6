package main

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/chat"
	"github.com/mediabot/mediabot/codec"
	"github.com/mediabot/mediabot/connections"
	"github.com/mediabot/mediabot/filters"
	"github.com/mediabot/mediabot/helpers"
	"github.com/mediabot/mediabot/indexer"
	"github.com/mediabot/mediabot/media"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/pkg/errors"
)

const restartNotice = "<b>Bot Restarted!</b>\n\n📅 Date: <code>%s</code>\n⏰ Time: <code>%s</code>\n🌐 Timezone: <code>%s</code>"

type settings struct {
	Collection    models.MongoDbCollection
	CaptionFilter bool
	PageSize      int
	QuotaMB       float64
	ThresholdMB   float64
	GlobalBucket  string
	CacheTTL      time.Duration
	LogChannel    int64
	Timezone      string
}

func loadSettings() settings {
	return settings{
		Collection:    models.MongoDbCollection(helpers.ConfigString("media.collection", models.MediaTable.String())),
		CaptionFilter: helpers.ConfigBool("media.caption_filter", true),
		PageSize:      helpers.ConfigInt("media.page_size", media.DefaultPageSize),
		QuotaMB:       helpers.ConfigFloat("router.quota_mb", router.DefaultQuotaMB),
		ThresholdMB:   helpers.ConfigFloat("router.threshold_mb", router.DefaultThresholdMB),
		GlobalBucket:  helpers.ConfigString("filters.global_bucket", models.GlobalFiltersBucket),
		CacheTTL:      helpers.ConfigDuration("filters.cache_ttl", filters.DefaultCacheTTL),
		LogChannel:    helpers.ConfigInt64("chat.log_channel", 0),
		Timezone:      helpers.ConfigString("chat.timezone", "Asia/Kolkata"),
	}
}

// Bot holds everything the chat handlers work with
type Bot struct {
	Settings      settings
	Router        *router.Router
	Media         *media.Index
	Filters       *filters.Store
	GlobalFilters *filters.Store
	Connections   *connections.Directory
	Messenger     chat.Messenger
	Self          chat.Identity
}

// Hooks lets the chat layer plug per-group behavior into the stores
type Hooks struct {
	// PageSizeFunc returns the search page size configured for a group, 0 for the default
	PageSizeFunc func(scopeID int64) int
}

// instanceBackends are the stores of one database instance
type instanceBackends struct {
	Media       media.Backend
	Filters     filters.Backend
	Connections connections.Backend
}

func mgoBackends(db *helpers.MDb, collection models.MongoDbCollection) instanceBackends {
	return instanceBackends{
		Media:       media.NewMgoBackend(db, collection),
		Filters:     filters.NewMgoBackend(db),
		Connections: connections.NewMgoBackend(db),
	}
}

// BotStart decides the write target, builds the stores and creates the media indexes.
// secondary may be nil. A StartupError means the process has to stop.
func BotStart(ctx context.Context, primary *helpers.MDb, secondary *helpers.MDb, messenger chat.Messenger, hooks Hooks) (*Bot, error) {
	log := cache.GetLogger().WithField("module", "bot")
	loaded := loadSettings()

	primaryBackends := mgoBackends(primary, loaded.Collection)
	var secondaryBackends *instanceBackends
	if secondary != nil {
		backends := mgoBackends(secondary, loaded.Collection)
		secondaryBackends = &backends
	}

	r, err := router.Decide(router.Config{
		QuotaMB:             loaded.QuotaMB,
		ThresholdMB:         loaded.ThresholdMB,
		SecondaryConfigured: secondary != nil,
	}, primary.Stats)
	if err != nil {
		return nil, err
	}

	bot, err := newBot(loaded, r, primaryBackends, secondaryBackends, messenger, hooks)
	if err != nil {
		return nil, err
	}

	bot.Self, err = messenger.Self(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading bot identity failed")
	}
	log.Infof("%s started as @%s (#%d), writing to the %s database",
		bot.Self.DisplayName, bot.Self.Username, bot.Self.ID, bot.Router.Target())

	totals := bot.Media.Totals()
	log.Infof("%d files indexed in the primary database, %d in the secondary", totals.Primary, totals.Secondary)

	bot.notifyRestart(ctx, time.Now())
	return bot, nil
}

// newBot wires the stores to the backends of both instances and creates the media indexes
func newBot(loaded settings, r *router.Router, primary instanceBackends, secondary *instanceBackends, messenger chat.Messenger, hooks Hooks) (*Bot, error) {
	bot := &Bot{Settings: loaded, Router: r, Messenger: messenger}

	var secondaryBackends instanceBackends
	hasSecondary := secondary != nil
	if hasSecondary {
		secondaryBackends = *secondary
	}

	bot.Media = media.NewIndex(primary.Media, secondaryBackends.Media, hasSecondary, r, media.Options{
		Decoder:      codec.Native{},
		PageSize:     loaded.PageSize,
		PageSizeFunc: hooks.PageSizeFunc,
		MatchCaption: loaded.CaptionFilter,
	})
	if err := bot.Media.EnsureIndexes(); err != nil {
		return nil, err
	}

	reserved := []string{loaded.Collection.String()}
	var groupCache, globalCache filters.Cache
	if cache.HasRedisClient() {
		groupCache = filters.NewRedisCache(cache.GetRedisClient(), "filters", loaded.CacheTTL)
		globalCache = filters.NewRedisCache(cache.GetRedisClient(), "gfilters", loaded.CacheTTL)
	}
	bot.Filters = filters.NewGroupStore(primary.Filters, secondaryBackends.Filters, hasSecondary, r,
		filters.Options{Cache: groupCache, Reserved: reserved})
	bot.GlobalFilters = filters.NewGlobalStore(primary.Filters, secondaryBackends.Filters, hasSecondary, r,
		filters.Options{Cache: globalCache, Reserved: reserved, DefaultScope: loaded.GlobalBucket})
	bot.Connections = connections.NewDirectory(primary.Connections, secondaryBackends.Connections, hasSecondary, r)

	return bot, nil
}

// NewIndexer returns a channel indexer saving into the media index
func (b *Bot) NewIndexer(history chat.History, progress func(indexer.Report)) *indexer.Indexer {
	return indexer.New(history, b.Media, indexer.Options{Progress: progress})
}

func (b *Bot) notifyRestart(ctx context.Context, now time.Time) {
	if b.Settings.LogChannel == 0 {
		return
	}

	err := b.Messenger.SendMessage(ctx, b.Settings.LogChannel, b.restartText(now), chat.FormattingHTML)
	if err != nil {
		cache.GetLogger().WithField("module", "bot").Warn("sending restart notice failed: ", err.Error())
	}
}

func (b *Bot) restartText(now time.Time) string {
	location, err := time.LoadLocation(b.Settings.Timezone)
	if err != nil {
		cache.GetLogger().WithField("module", "bot").Warnf("unknown timezone %q, using UTC", b.Settings.Timezone)
		location = time.UTC
	}
	now = now.In(location)
	return fmt.Sprintf(restartNotice, now.Format("2006-01-02"), now.Format("15:04:05 PM"), location.String())
}
