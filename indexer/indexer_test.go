package indexer

import (
	"context"
	"testing"

	"github.com/mediabot/mediabot/chat"
	"github.com/mediabot/mediabot/media"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHistory serves messages by id, ids listed in deleted come back empty
type fakeHistory struct {
	files   map[int]*chat.File
	deleted map[int]bool
	calls   [][]int
	err     error
	cancel  func()
}

func (f *fakeHistory) FetchMessages(ctx context.Context, chatID int64, ids []int) ([]chat.Message, error) {
	f.calls = append(f.calls, ids)
	if f.cancel != nil {
		f.cancel()
	}
	if f.err != nil {
		return nil, f.err
	}
	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, chat.Message{ID: id, ChatID: chatID, Empty: f.deleted[id], File: f.files[id]})
	}
	return messages, nil
}

type fakeSaver struct {
	seen map[string]bool
}

func (f *fakeSaver) Save(file chat.File) (media.Outcome, error) {
	if file.FileID == "broken" {
		return media.NotSaved, errors.New("malformed identifier")
	}
	if file.Size == 0 {
		return media.ValidationFailed, nil
	}
	if f.seen[file.FileID] {
		return media.DuplicateByKey, nil
	}
	f.seen[file.FileID] = true
	return media.Inserted, nil
}

func TestRun(t *testing.T) {
	history := &fakeHistory{
		files: map[int]*chat.File{
			1: {FileID: "a", Name: "a.mkv", Size: 1, Kind: "video"},
			2: {FileID: "a", Name: "a.mkv", Size: 1, Kind: "video"},
			3: {FileID: "b", Name: "b.jpg", Size: 1, Kind: "photo"},
			4: {FileID: "broken", Name: "c.mp3", Size: 1, Kind: "audio"},
			5: {FileID: "d", Name: "d.pdf", Size: 0, Kind: "document"},
			6: {FileID: "e", Name: "e.pdf", Size: 3, Kind: "document"},
		},
		deleted: map[int]bool{7: true},
	}

	var progress []Report
	indexer := New(history, &fakeSaver{seen: map[string]bool{}}, Options{
		ProgressEvery: 4,
		Progress:      func(report Report) { progress = append(progress, report) },
	})

	report, err := indexer.Run(context.Background(), -1001, 8, 1)
	require.NoError(t, err)
	assert.Equal(t, Report{
		Total:       8,
		Saved:       2,
		Duplicate:   1,
		Errors:      2,
		Unsupported: 2,
		Deleted:     1,
		Current:     8,
	}, report)
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5, 6, 7, 8}}, history.calls)

	require.Len(t, progress, 2)
	assert.Equal(t, 4, progress[0].Current)
	assert.Equal(t, 8, progress[1].Current)
}

func TestRunBatches(t *testing.T) {
	history := &fakeHistory{}
	indexer := New(history, &fakeSaver{seen: map[string]bool{}}, Options{BatchSize: 3})

	report, err := indexer.Run(context.Background(), -1001, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 8, report.Total)
	assert.Equal(t, 8, report.Unsupported)
	assert.Equal(t, [][]int{{3, 4, 5}, {6, 7, 8}, {9, 10}}, history.calls)
}

func TestRunDefaultBatch(t *testing.T) {
	history := &fakeHistory{}
	indexer := New(history, &fakeSaver{seen: map[string]bool{}}, Options{BatchSize: 500})

	_, err := indexer.Run(context.Background(), -1001, 450, 0)
	require.NoError(t, err)
	require.Len(t, history.calls, 3)
	assert.Len(t, history.calls[0], DefaultBatchSize)
	assert.Len(t, history.calls[2], 51)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	history := &fakeHistory{cancel: cancel}
	indexer := New(history, &fakeSaver{seen: map[string]bool{}}, Options{BatchSize: 2})

	report, err := indexer.Run(ctx, -1001, 10, 1)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 2, report.Total)
	assert.Len(t, history.calls, 1)
}

func TestRunFetchError(t *testing.T) {
	history := &fakeHistory{err: errors.New("flood wait")}
	indexer := New(history, &fakeSaver{seen: map[string]bool{}}, Options{})

	_, err := indexer.Run(context.Background(), -1001, 10, 1)
	require.Error(t, err)
	assert.Equal(t, "flood wait", errors.Cause(err).Error())
}

func TestRunNothingToDo(t *testing.T) {
	history := &fakeHistory{}
	indexer := New(history, &fakeSaver{seen: map[string]bool{}}, Options{})

	report, err := indexer.Run(context.Background(), -1001, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.Empty(t, history.calls)
}
