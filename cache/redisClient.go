package cache

import (
	"errors"
	"sync"

	"github.com/go-redis/cache"
	"github.com/go-redis/redis"
	"github.com/vmihailenco/msgpack"
)

var (
	redisClient *redis.Client
	redisMutext sync.RWMutex
)

func SetRedisClient(s *redis.Client) {
	redisMutext.Lock()
	redisClient = s
	redisMutext.Unlock()
}

// NewCodec builds a msgpack codec on top of client
func NewCodec(client *redis.Client) *cache.Codec {
	return &cache.Codec{
		Redis: client,
		Marshal: func(v interface{}) ([]byte, error) {
			return msgpack.Marshal(v)
		},
		Unmarshal: func(b []byte, v interface{}) error {
			return msgpack.Unmarshal(b, v)
		},
	}
}

func HasRedisClient() bool {
	redisMutext.RLock()
	defer redisMutext.RUnlock()

	return redisClient != nil
}

func GetRedisClient() *redis.Client {
	redisMutext.RLock()
	defer redisMutext.RUnlock()

	if redisClient == nil {
		panic(errors.New("Tried to get redis client before redis#setRedis() was called"))
	}

	return redisClient
}
