// Except.go: Contains functions to make handling panics less PITA

package helpers

import (
	"fmt"
	"runtime/debug"

	"github.com/getsentry/raven-go"
	"github.com/mediabot/mediabot/cache"
)

// DEBUG_MODE makes Recover() print the stack of the panic
var DEBUG_MODE = false

// Recover recover()s and prints the error to console
func Recover() {
	err := recover()
	if err != nil {
		cache.GetLogger().WithField("module", "helpers").Errorf("recovered: %#v", err)
		if DEBUG_MODE {
			debug.PrintStack()
		}

		raven.CaptureError(fmt.Errorf("%#v", err), map[string]string{})
	}
}

// RelaxLog logs $err and reports it to sentry instead of panicking
func RelaxLog(err error) {
	if err != nil {
		cache.GetLogger().WithField("module", "helpers").Error(err.Error())
		raven.CaptureError(err, map[string]string{})
	}
}
