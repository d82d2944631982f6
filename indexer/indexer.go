// Package indexer walks the history of a channel and saves every media message it finds.
package indexer

import (
	"context"

	"github.com/mediabot/mediabot/cache"
	"github.com/mediabot/mediabot/chat"
	"github.com/mediabot/mediabot/media"
	"github.com/pkg/errors"
)

const (
	DefaultBatchSize     = 200
	DefaultProgressEvery = 20
)

// Kinds that get indexed
var Kinds = map[string]bool{
	"video":    true,
	"audio":    true,
	"document": true,
}

// Saver stores one file, *media.Index implements it
type Saver interface {
	Save(file chat.File) (media.Outcome, error)
}

type Report struct {
	// Total counts every fetched message
	Total       int
	Saved       int
	Duplicate   int
	Errors      int
	Unsupported int
	Deleted     int
	// Current is the id of the last processed message
	Current int
}

type Options struct {
	BatchSize     int
	ProgressEvery int
	// Progress is called every ProgressEvery messages
	Progress func(Report)
}

type Indexer struct {
	history chat.History
	saver   Saver
	options Options
}

func New(history chat.History, saver Saver, options Options) *Indexer {
	if options.BatchSize <= 0 || options.BatchSize > DefaultBatchSize {
		options.BatchSize = DefaultBatchSize
	}
	if options.ProgressEvery <= 0 {
		options.ProgressEvery = DefaultProgressEvery
	}
	return &Indexer{history: history, saver: saver, options: options}
}

// Run indexes the messages skip..lastMessageID of chatID. The report so far is returned
// along with the error if fetching fails or ctx is done.
func (i *Indexer) Run(ctx context.Context, chatID int64, lastMessageID int, skip int) (report Report, err error) {
	log := cache.GetLogger().WithField("module", "indexer").WithField("chat", chatID)
	log.Infof("indexing messages %d to %d", skip, lastMessageID)

	for current := skip; current <= lastMessageID; {
		if err = ctx.Err(); err != nil {
			log.Warnf("indexing cancelled at message %d", current)
			return report, err
		}

		ids := batch(current, lastMessageID, i.options.BatchSize)
		messages, fetchErr := i.history.FetchMessages(ctx, chatID, ids)
		if fetchErr != nil {
			return report, errors.Wrapf(fetchErr, "fetching messages %d to %d failed", ids[0], ids[len(ids)-1])
		}

		for _, message := range messages {
			i.process(message, &report)
			report.Current = message.ID
			if report.Total%i.options.ProgressEvery == 0 && i.options.Progress != nil {
				i.options.Progress(report)
			}
		}
		current = ids[len(ids)-1] + 1
	}

	log.Infof("indexing done: %d saved, %d duplicate, %d errors, %d unsupported, %d deleted",
		report.Saved, report.Duplicate, report.Errors, report.Unsupported, report.Deleted)
	return report, nil
}

func (i *Indexer) process(message chat.Message, report *Report) {
	report.Total++

	switch {
	case message.Empty:
		report.Deleted++
		return
	case message.File == nil || !Kinds[message.File.Kind]:
		report.Unsupported++
		return
	}

	outcome, err := i.saver.Save(*message.File)
	if err != nil {
		cache.GetLogger().WithField("module", "indexer").
			Warnf("saving message %d failed: %s", message.ID, err.Error())
		report.Errors++
		return
	}
	switch outcome {
	case media.Inserted:
		report.Saved++
	case media.DuplicateByKey:
		report.Duplicate++
	default:
		report.Errors++
	}
}

func batch(from, to, size int) []int {
	if to-from+1 < size {
		size = to - from + 1
	}
	ids := make([]int, size)
	for n := range ids {
		ids[n] = from + n
	}
	return ids
}
