// Copyright 2025 Brian Wang <wangbuke@gmail.com>
// SPDX-License-Identifier: Apache-2.0

// Package goid reports the id of the calling goroutine.
//
// The id is parsed from the header line of runtime.Stack ("goroutine 123 [running]:").
// It is only used to assert thread affinity, never for scheduling decisions.
package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

var prefix = []byte("goroutine ")

// Get returns the id of the calling goroutine, or 0 if it cannot be parsed.
func Get() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	if !bytes.HasPrefix(buf, prefix) {
		return 0
	}
	buf = buf[len(prefix):]
	if i := bytes.IndexByte(buf, ' '); i > 0 {
		buf = buf[:i]
	}
	id, err := strconv.ParseUint(string(buf), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
