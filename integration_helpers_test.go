// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	hostdispatch "github.com/buke/host-dispatch"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const planDocument = `{
	"title": "plan",
	"elements": {
		"w1": {"kind": "wall", "x": 0},
		"d1": {"kind": "door"}
	},
	"selection": ["w1"]
}`

var errValidation = errors.New("validation failed")

// evalWork returns work that evaluates src on the host.
func evalWork(host hostdispatch.ScriptHost, name, src string) hostdispatch.Work {
	return func() error {
		_, err := host.Eval(name, src)
		return err
	}
}

func waitAll(t *testing.T, futures ...*hostdispatch.Future) []error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	errs := make([]error, len(futures))
	for i, f := range futures {
		errs[i] = f.Wait(ctx)
		require.True(t, f.Resolved(), "future %s did not resolve", f.Label())
	}
	return errs
}

func newDocumentDispatcher(t *testing.T, host hostdispatch.ScriptHost) (*hostdispatch.Dispatcher, *hostdispatch.Document) {
	t.Helper()
	doc := hostdispatch.NewDocument(host)
	d, err := hostdispatch.NewDispatcher(
		hostdispatch.WithHost(host),
		hostdispatch.WithTransactions(doc),
		hostdispatch.WithName(t.Name()),
		hostdispatch.WithLogger(nil),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d, doc
}

// testDocumentTransactions runs committed and abandoned work against a loaded document.
func testDocumentTransactions(t *testing.T, host hostdispatch.ScriptHost) {
	d, doc := newDocumentDispatcher(t, host)

	// Nothing loaded yet.
	errs := waitAll(t, d.Submit(evalWork(host, "noop.js", "1"), "noop"))
	require.ErrorIs(t, errs[0], hostdispatch.ErrNoDocument)
	require.True(t, hostdispatch.IsStage(errs[0], hostdispatch.StageBegin))

	require.NoError(t, doc.Load(planDocument))

	fa := d.Submit(evalWork(host, "move.js", `document.elements.w1.x = 10`), "move")
	fb := d.Submit(func() error {
		if _, err := host.Eval("delete.js", `delete document.elements.d1`); err != nil {
			return err
		}
		return errValidation
	}, "delete")
	fc := d.Submit(evalWork(host, "select.js", `document.selection.push("d1")`), "select")
	fd := d.Submit(evalWork(host, "throw.js", `document.elements.w1.x = 99; throw new Error("bad move")`), "bad move")

	errs = waitAll(t, fa, fb, fc, fd)
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], errValidation)
	require.NoError(t, errs[2])
	require.Error(t, errs[3])
	require.True(t, hostdispatch.IsStage(errs[3], hostdispatch.StageWork))
	require.Contains(t, errs[3].Error(), "bad move")

	snapshot, err := doc.Snapshot()
	require.NoError(t, err)
	require.Equal(t, int64(2), gjson.Get(snapshot, "revision").Int())
	require.Equal(t, int64(10), gjson.Get(snapshot, "elements.w1.x").Int())
	require.True(t, gjson.Get(snapshot, "elements.d1").Exists())

	var history []string
	for _, label := range gjson.Get(snapshot, "transactions").Array() {
		history = append(history, label.String())
	}
	require.Equal(t, []string{"move", "select"}, history)

	selection, err := doc.Selection()
	require.NoError(t, err)
	require.Len(t, selection, 2)
	require.Equal(t, "w1", selection[0].ID)
	require.Equal(t, "d1", selection[1].ID)
	require.Equal(t, "door", selection[1].Get("kind").String())

	revision, err := doc.Revision()
	require.NoError(t, err)
	require.Equal(t, 2, revision)
}

// testDocumentFiles creates and opens documents on disk.
func testDocumentFiles(t *testing.T, host hostdispatch.ScriptHost) {
	d, doc := newDocumentDispatcher(t, host)
	dir := t.TempDir()

	template := filepath.Join(dir, "template.json")
	require.NoError(t, os.WriteFile(template, []byte(`{"elements":{"grid":{"kind":"grid"}}}`), 0o644))

	path := filepath.Join(dir, "level-1.json")
	require.NoError(t, doc.Create(template, path, false))

	snapshot, err := doc.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "level-1", gjson.Get(snapshot, "title").String())
	require.Equal(t, path, gjson.Get(snapshot, "path").String())
	require.Equal(t, int64(0), gjson.Get(snapshot, "revision").Int())

	errs := waitAll(t, d.Submit(evalWork(host, "rename.js", `document.title = "ground floor"`), "rename"))
	require.NoError(t, errs[0])

	other := filepath.Join(dir, "other.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"title":"other","revision":7}`), 0o644))
	require.NoError(t, doc.Open(other))

	snapshot, err = doc.Snapshot()
	require.NoError(t, err)
	require.Equal(t, "other", gjson.Get(snapshot, "title").String())
	require.Equal(t, other, gjson.Get(snapshot, "path").String())
	require.Equal(t, int64(7), gjson.Get(snapshot, "revision").Int())
}

// testConcurrentProducers submits from many goroutines and checks every item committed on the host thread.
func testConcurrentProducers(t *testing.T, host hostdispatch.ScriptHost) {
	d, doc := newDocumentDispatcher(t, host)
	require.NoError(t, doc.Load(`{"title":"counter","count":0}`))

	const (
		goroutineCount   = 8
		submitsPerWorker = 32
		total            = goroutineCount * submitsPerWorker
	)
	futures := make([]*hostdispatch.Future, total)

	var wg sync.WaitGroup
	wg.Add(goroutineCount)
	for g := 0; g < goroutineCount; g++ {
		go func(gid int) {
			defer wg.Done()
			for i := 0; i < submitsPerWorker; i++ {
				futures[gid*submitsPerWorker+i] = d.Submit(func() error {
					if !host.OnHostThread() {
						return hostdispatch.ErrWrongThread
					}
					_, err := host.Eval("count.js", `document.count++`)
					return err
				}, "count")
			}
		}(g)
	}
	wg.Wait()

	for i, err := range waitAll(t, futures...) {
		require.NoError(t, err, "submission %d failed", i)
	}

	snapshot, err := doc.Snapshot()
	require.NoError(t, err)
	require.Equal(t, int64(total), gjson.Get(snapshot, "count").Int())
	require.Equal(t, int64(total), gjson.Get(snapshot, "revision").Int())
}
