package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/raven-go"
	"github.com/go-redis/redis"
	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/chat"
	"github.com/mediabot/mediabot/helpers"
	"github.com/mediabot/mediabot/logging"
	"github.com/mediabot/mediabot/metrics"
	"github.com/mediabot/mediabot/models"
	"github.com/mediabot/mediabot/router"
	"github.com/mediabot/mediabot/version"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var BotRuntimeChannel chan os.Signal

// Entrypoint
func main() {
	var err error

	log := logrus.New()
	log.Out = os.Stdout
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339}
	log.Hooks = make(logrus.LevelHooks)
	cache.SetLogger(log)

	// Read config
	configPath := "config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	helpers.LoadConfig(configPath)

	// Check if the bot is being debugged
	if helpers.ConfigBool("debug", false) {
		helpers.DEBUG_MODE = true
		log.Level = logrus.DebugLevel
	}

	if jsonFile := helpers.ConfigString("logging.jsonfile", ""); jsonFile != "" {
		fileHook, err := logging.NewLogrusFileHook(jsonFile, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
		if err != nil {
			log.WithField("module", "launcher").Error("logrus file hook failed, err:", err.Error())
		} else {
			log.Hooks.Add(fileHook)
		}
	}

	log.WithField("module", "launcher").Info("Booting mediabot...")

	// Show version
	version.DumpInfo()

	// Start metric server
	metrics.Init()

	// Print UA
	log.WithField("module", "launcher").Info("USERAGENT: '" + helpers.DEFAULT_UA + "'")

	// Call home
	if dsn := helpers.ConfigString("sentry", ""); dsn != "" {
		log.WithField("module", "launcher").Info("[SENTRY] Calling home...")
		err = raven.SetDSN(dsn)
		if err != nil {
			panic(err)
		}
		if version.BOT_VERSION != "UNSET" {
			raven.SetRelease(version.BOT_VERSION)
		}
	}

	// Connect to DB
	log.WithField("module", "launcher").Info("Opening database connections...")
	database := helpers.ConfigString("mongodb.database", "")
	primary, err := helpers.ConnectMDB(helpers.ConfigString("mongodb.primary.url", ""), database, models.PrimaryInstance)
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		log.WithField("module", "launcher").Fatal(err.Error())
	}
	defer primary.Close()

	var secondary *helpers.MDb
	if secondaryURL := helpers.ConfigString("mongodb.secondary.url", ""); secondaryURL != "" {
		secondary, err = helpers.ConnectMDB(secondaryURL, database, models.SecondaryInstance)
		if err == nil {
			err = secondary.Ping()
		}
		if err != nil {
			raven.CaptureErrorAndWait(err, nil)
			log.WithField("module", "launcher").Fatal(err.Error())
		}
		defer secondary.Close()
	}

	// Connecting to redis
	if address := helpers.ConfigString("redis.address", ""); address != "" {
		log.WithField("module", "launcher").Info("Connecting to redis...")
		redisClient := redis.NewClient(&redis.Options{
			Addr:     address,
			Password: "", // no password set
			DB:       0,  // use default DB
		})
		if err = redisClient.Ping().Err(); err != nil {
			log.WithField("module", "launcher").Warn("redis unreachable, filter replies will not be cached: ", err.Error())
		} else {
			cache.SetRedisClient(redisClient)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	messenger := chat.NewBotAPI(helpers.ConfigString("chat.token", ""), helpers.ConfigString("chat.endpoint", ""))
	_, err = BotStart(ctx, primary, secondary, messenger, Hooks{})
	cancel()
	if err != nil {
		if errors.Cause(err) == router.ErrFatalStartup {
			log.WithField("module", "launcher").Error("Missing secondary database! Exiting...")
		} else {
			raven.CaptureErrorAndWait(err, nil)
		}
		log.WithField("module", "launcher").Fatal(err.Error())
	}

	// Make a channel that waits for a os signal
	BotRuntimeChannel = make(chan os.Signal, 1)
	signal.Notify(BotRuntimeChannel, os.Interrupt, syscall.SIGTERM)

	// Wait until the os wants us to shutdown
	<-BotRuntimeChannel

	log.WithField("module", "launcher").Info("mediabot is stopping")
	if cache.HasRedisClient() {
		helpers.RelaxLog(cache.GetRedisClient().Close())
	}
}
