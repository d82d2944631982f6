package filters

import (
	"time"

	redisCache "github.com/go-redis/cache"
	"github.com/go-redis/redis"
	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/models"
)

const DefaultCacheTTL = 10 * time.Minute

// RedisCache keeps replies and keyword lists in redis through the msgpack codec
type RedisCache struct {
	client    *redis.Client
	codec     *redisCache.Codec
	namespace string
	ttl       time.Duration
}

// NewRedisCache builds a cache whose keys live under namespace, one namespace per store
func NewRedisCache(client *redis.Client, namespace string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{
		client:    client,
		codec:     cache.NewCodec(client),
		namespace: namespace,
		ttl:       ttl,
	}
}

func (r *RedisCache) scopeKey(scope string) string {
	return "mediabot:" + r.namespace + ":" + scope + ":"
}

func (r *RedisCache) replyKey(scope, keyword string) string {
	return r.scopeKey(scope) + "reply:" + keyword
}

func (r *RedisCache) keywordsKey(scope string) string {
	return r.scopeKey(scope) + "keywords"
}

func (r *RedisCache) GetReply(scope, keyword string) (*models.FilterEntry, bool) {
	var entry models.FilterEntry
	if err := r.codec.Get(r.replyKey(scope, keyword), &entry); err != nil {
		r.logMiss(err)
		return nil, false
	}
	return &entry, true
}

func (r *RedisCache) SetReply(scope, keyword string, entry models.FilterEntry) {
	r.set(r.replyKey(scope, keyword), entry)
}

func (r *RedisCache) GetKeywords(scope string) ([]string, bool) {
	var keywords []string
	if err := r.codec.Get(r.keywordsKey(scope), &keywords); err != nil {
		r.logMiss(err)
		return nil, false
	}
	return keywords, true
}

func (r *RedisCache) SetKeywords(scope string, keywords []string) {
	r.set(r.keywordsKey(scope), keywords)
}

// Invalidate drops the cached reply and the keyword list of scope
func (r *RedisCache) Invalidate(scope, keyword string) {
	err := r.client.Del(r.replyKey(scope, keyword), r.keywordsKey(scope)).Err()
	if err != nil {
		cache.GetLogger().WithField("module", "filters").Warn("invalidating filter cache failed: ", err.Error())
	}
}

// InvalidateScope drops every cached entry of scope
func (r *RedisCache) InvalidateScope(scope string) {
	log := cache.GetLogger().WithField("module", "filters")

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(cursor, r.scopeKey(scope)+"*", 100).Result()
		if err != nil {
			log.Warn("scanning filter cache failed: ", err.Error())
			return
		}
		if len(keys) > 0 {
			if err = r.client.Del(keys...).Err(); err != nil {
				log.Warn("invalidating filter cache failed: ", err.Error())
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

func (r *RedisCache) set(key string, value interface{}) {
	err := r.codec.Set(&redisCache.Item{
		Key:        key,
		Object:     value,
		Expiration: r.ttl,
	})
	if err != nil {
		cache.GetLogger().WithField("module", "filters").Warn("writing filter cache failed: ", err.Error())
	}
}

func (r *RedisCache) logMiss(err error) {
	if err != redisCache.ErrCacheMiss {
		cache.GetLogger().WithField("module", "filters").Warn("reading filter cache failed: ", err.Error())
	}
}
