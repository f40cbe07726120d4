// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFileReplayerReadsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.bin")
	want := []byte("PLRC\x01\x00\x00\x00some recorded bytes")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := OpenFileReplayer(path)
	if err != nil {
		t.Fatalf("OpenFileReplayer: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFileReplayerStopReturnsEOF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.bin")
	if err := os.WriteFile(path, []byte("some bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r, err := OpenFileReplayer(path)
	if err != nil {
		t.Fatalf("OpenFileReplayer: %v", err)
	}
	defer r.Close()

	r.Stop()
	if _, err := r.Read(make([]byte, 4)); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestFileReplayerMissingFile(t *testing.T) {
	if _, err := OpenFileReplayer("/nonexistent/path/to/nowhere.bin"); err == nil {
		t.Fatal("expected error opening missing file")
	}
}
