// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"
	"os"
	"sync"
)

// FileReplayer replays a previously captured hello+frame stream from a
// file, presenting the same Transport surface as a live TCP connection
// so the rest of the recording core cannot distinguish a live session
// from an offline replay (§4.A).
type FileReplayer struct {
	f *os.File

	mu      sync.Mutex
	stopped bool
}

// OpenFileReplayer opens path for replay.
func OpenFileReplayer(path string) (*FileReplayer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileReplayer{f: f}, nil
}

func (r *FileReplayer) Read(p []byte) (int, error) {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return 0, io.EOF
	}
	return r.f.Read(p)
}

// Stop causes subsequent reads to return io.EOF immediately.
func (r *FileReplayer) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *FileReplayer) Close() error {
	r.Stop()
	return r.f.Close()
}
