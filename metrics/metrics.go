package metrics

import (
	"expvar"
	"net/http"
	"runtime"
	"time"

	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/helpers"
)

var (
	// FilesSaved counts media entries written to either instance
	FilesSaved = expvar.NewInt("files_saved")

	// FilesDuplicate counts saves rejected because the key is already indexed
	FilesDuplicate = expvar.NewInt("files_duplicate")

	// Searches increases after each media search
	Searches = expvar.NewInt("searches")

	// FilterHits counts filter lookups that found a reply
	FilterHits = expvar.NewInt("filter_hits")

	// StorageWarnings counts instance failures that were absorbed
	StorageWarnings = expvar.NewInt("storage_warnings")

	// CoroutineCount counts all running coroutines
	CoroutineCount = expvar.NewInt("coroutine_count")

	// Uptime stores the timestamp of the bot's boot
	Uptime = expvar.NewInt("uptime")
)

// Init starts a http server on metrics_ip:1337 if metrics_ip is set
func Init() {
	Uptime.Set(time.Now().Unix())

	ip := helpers.ConfigString("metrics_ip", "")
	if ip == "" {
		return
	}

	cache.GetLogger().WithField("module", "metrics").Info("Listening on TCP/1337")
	go func() {
		defer helpers.Recover()

		err := http.ListenAndServe(ip+":1337", nil)
		if err != nil {
			cache.GetLogger().WithField("module", "metrics").Error("metrics server stopped: ", err.Error())
		}
	}()
	go CollectRuntimeMetrics()
}

// CollectRuntimeMetrics counts all running coroutines
func CollectRuntimeMetrics() {
	for {
		time.Sleep(15 * time.Second)
		CoroutineCount.Set(int64(runtime.NumGoroutine()))
	}
}
