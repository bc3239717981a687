// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

package hostdispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// The active document lives in the script runtime as globalThis.document:
//
//	{"title": "", "path": "", "revision": 0, "elements": {}, "selection": [], "transactions": []}
const (
	documentExpr = `(typeof globalThis.document === "undefined" ? null : globalThis.document)`

	snapshotScript = `JSON.stringify(` + documentExpr + `)`

	loadScript = `(function (doc) {
	doc.elements = doc.elements || {};
	doc.selection = doc.selection || [];
	doc.transactions = doc.transactions || [];
	doc.revision = doc.revision || 0;
	globalThis.document = doc;
})(JSON.parse(%s));`

	commitScript = `(function (label) {
	var doc = globalThis.document;
	doc.revision = (doc.revision || 0) + 1;
	(doc.transactions = doc.transactions || []).push(label);
})(%s);`

	rollbackScript = `globalThis.document = JSON.parse(%s);`
)

// Element is one element of the active document.
type Element struct {
	ID  string // Key in the document's element map
	Raw string // Element JSON
}

// Get returns the value at a gjson path inside the element.
func (e Element) Get(path string) gjson.Result {
	return gjson.Get(e.Raw, path)
}

// Document is the active document of a script host.
// It is a TransactionProvider whose transactions snapshot the document on
// Begin and restore the snapshot on Rollback.
type Document struct {
	host ScriptHost
	open bool // A transaction is active; only touched on the host thread
}

// NewDocument returns the document model of host.
func NewDocument(host ScriptHost) *Document {
	return &Document{host: host}
}

// Begin opens a transaction on the active document.
// It must be called on the host thread, with a document loaded and no other transaction open.
func (d *Document) Begin(label string) (Transaction, error) {
	if !d.host.OnHostThread() {
		return nil, ErrWrongThread
	}
	if d.open {
		return nil, ErrTransactionActive
	}

	snapshot, err := d.host.Eval("begin.js", snapshotScript)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot document: %w", err)
	}
	if snapshot == "null" {
		return nil, ErrNoDocument
	}

	d.open = true
	return &documentTransaction{doc: d, label: label, snapshot: snapshot}, nil
}

// documentTransaction is an open transaction on a Document.
type documentTransaction struct {
	doc      *Document
	label    string
	snapshot string // Document JSON captured by Begin
	done     bool
}

// Commit records the transaction in the document history.
// A failed commit leaves the transaction open for Rollback.
func (t *documentTransaction) Commit() error {
	if !t.doc.host.OnHostThread() {
		return ErrWrongThread
	}
	if t.done {
		return ErrTransactionDone
	}
	if _, err := t.doc.host.Eval("commit.js", fmt.Sprintf(commitScript, jsString(t.label))); err != nil {
		return fmt.Errorf("failed to commit transaction %q: %w", t.label, err)
	}
	t.done = true
	t.doc.open = false
	return nil
}

// Rollback restores the document captured by Begin.
func (t *documentTransaction) Rollback() error {
	if !t.doc.host.OnHostThread() {
		return ErrWrongThread
	}
	if t.done {
		return ErrTransactionDone
	}
	t.done = true
	t.doc.open = false
	if _, err := t.doc.host.Eval("rollback.js", fmt.Sprintf(rollbackScript, jsString(t.snapshot))); err != nil {
		return fmt.Errorf("failed to roll back transaction %q: %w", t.label, err)
	}
	return nil
}

// Load installs content, a JSON object, as the active document.
func (d *Document) Load(content string) error {
	if !gjson.Valid(content) || !gjson.Parse(content).IsObject() {
		return fmt.Errorf("document must be a JSON object")
	}
	return d.eval("load.js", fmt.Sprintf(loadScript, jsString(content)))
}

// Open reads the document at path and makes it active.
func (d *Document) Open(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	withPath, err := sjson.Set(string(content), "path", path)
	if err != nil {
		return fmt.Errorf("failed to open document %s: %w", path, err)
	}
	return d.Load(withPath)
}

// Create writes a new document at path from templatePath and opens it.
// An existing file at path is reused unless overwrite is set.
func (d *Document) Create(templatePath, path string, overwrite bool) error {
	if overwrite {
		// A file that cannot be removed is opened as is.
		_ = os.Remove(path)
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		template, err := os.ReadFile(templatePath)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		content := string(template)
		if !gjson.Get(content, "title").Exists() {
			title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			if content, err = sjson.Set(content, "title", title); err != nil {
				return fmt.Errorf("failed to create document %s: %w", path, err)
			}
		}
		if content, err = sjson.Set(content, "path", path); err != nil {
			return fmt.Errorf("failed to create document %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to save document: %w", err)
		}
	}

	return d.Open(path)
}

// Snapshot returns the active document as JSON, or "null" when none is loaded.
func (d *Document) Snapshot() (string, error) {
	var (
		snapshot string
		evalErr  error
	)
	if err := d.host.Send(func() {
		snapshot, evalErr = d.host.Eval("snapshot.js", snapshotScript)
	}); err != nil {
		return "", err
	}
	return snapshot, evalErr
}

// Revision returns the number of committed transactions recorded in the active document.
func (d *Document) Revision() (int, error) {
	snapshot, err := d.Snapshot()
	if err != nil {
		return 0, err
	}
	return int(gjson.Get(snapshot, "revision").Int()), nil
}

// Selection returns the selected elements of the active document, in selection order.
// Ids without a matching element are skipped.
func (d *Document) Selection() ([]Element, error) {
	snapshot, err := d.Snapshot()
	if err != nil {
		return nil, err
	}

	elements := gjson.Get(snapshot, "elements").Map()
	var selection []Element
	for _, id := range gjson.Get(snapshot, "selection").Array() {
		if el, ok := elements[id.String()]; ok {
			selection = append(selection, Element{ID: id.String(), Raw: el.Raw})
		}
	}
	return selection, nil
}

// Lookup returns the element with the given id.
func (d *Document) Lookup(id string) (Element, bool, error) {
	snapshot, err := d.Snapshot()
	if err != nil {
		return Element{}, false, err
	}
	el, ok := gjson.Get(snapshot, "elements").Map()[id]
	if !ok {
		return Element{}, false, nil
	}
	return Element{ID: id, Raw: el.Raw}, true, nil
}

// eval runs src on the host thread through Send.
func (d *Document) eval(name, src string) error {
	var evalErr error
	if err := d.host.Send(func() {
		_, evalErr = d.host.Eval(name, src)
	}); err != nil {
		return err
	}
	return evalErr
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	quoted, _ := json.Marshal(s)
	return string(quoted)
}
