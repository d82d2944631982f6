// Package router decides once per process which database instance receives new writes.
//
// The decision is taken at startup from the primary's storage statistics and never revisited,
// so a primary that fills up while the bot runs keeps receiving writes until the next restart.
package router

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/models"
	"github.com/pkg/errors"
)

const (
	DefaultQuotaMB     = 512
	DefaultThresholdMB = 10

	megabyte = 1024 * 1024
)

var ErrFatalStartup = errors.New("primary database is out of space and no secondary is configured")

// StartupError is returned by Decide when the process must not start
type StartupError struct {
	HeadroomMB float64
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("%s (%.2f MB left)", ErrFatalStartup.Error(), e.HeadroomMB)
}

// Cause lets errors.Cause unwrap to ErrFatalStartup
func (e *StartupError) Cause() error {
	return ErrFatalStartup
}

// Stats is the storage usage of an instance in bytes
type Stats struct {
	DataSize  float64
	IndexSize float64
}

// StatsFunc queries the storage usage of the primary instance
type StatsFunc func() (Stats, error)

type Config struct {
	QuotaMB             float64
	ThresholdMB         float64
	SecondaryConfigured bool
}

// Router holds the write target. It is immutable after construction.
type Router struct {
	target models.Instance
}

func New(target models.Instance) *Router {
	return &Router{target: target}
}

// Target returns the instance new writes go to
func (r *Router) Target() models.Instance {
	if r == nil {
		return models.PrimaryInstance
	}
	return r.target
}

// Headroom returns the quota left in MB, rounded to two decimals
func Headroom(stats Stats, quotaMB float64) float64 {
	used := (stats.DataSize + stats.IndexSize) / megabyte
	return math.Round((quotaMB-used)*100) / 100
}

// Decide runs the startup check and returns the router to use for the rest of the run
func Decide(config Config, stats StatsFunc) (*Router, error) {
	log := cache.GetLogger().WithField("module", "router")

	if config.QuotaMB <= 0 {
		config.QuotaMB = DefaultQuotaMB
	}
	if config.ThresholdMB <= 0 {
		config.ThresholdMB = DefaultThresholdMB
	}

	usage, err := stats()
	if err != nil {
		return nil, errors.Wrap(err, "reading primary database stats failed")
	}
	headroom := Headroom(usage, config.QuotaMB)
	used := humanize.Bytes(uint64(usage.DataSize + usage.IndexSize))

	if headroom >= config.ThresholdMB {
		log.Infof("primary database has enough space (%.2f MB left, %s used), continuing to use it", headroom, used)
		return New(models.PrimaryInstance), nil
	}

	if !config.SecondaryConfigured {
		log.Errorf("primary database space is low (%.2f MB left) and no secondary database is configured", headroom)
		return nil, &StartupError{HeadroomMB: headroom}
	}

	log.Infof("primary database space is low (%.2f MB left, %s used), using secondary database", headroom, used)
	return New(models.SecondaryInstance), nil
}
