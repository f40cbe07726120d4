// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command recorder accepts one instrumented-process connection,
// records its wire protocol stream to a record file, and periodically
// logs a delta-view summary (§4.A-M).
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/gotrace/recorder/delta"
	"github.com/gotrace/recorder/elem"
	"github.com/gotrace/recorder/record"
	"github.com/gotrace/recorder/session"
	"github.com/gotrace/recorder/transport"
	"github.com/gotrace/recorder/wire"
)

func main() {
	var (
		flagAddr   = flag.String("addr", ":7777", "TCP `address` to accept one instrumented process on")
		flagOutput = flag.String("o", "session.rec", "output record `file`")
		flagZstd   = flag.Int("zstd", 0, "zstd compression `level` (0 uses the dependency-free flate codec)")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	codec, err := newCodec(*flagZstd)
	if err != nil {
		log.Fatal(err)
	}
	w, err := record.NewWriter(*flagOutput, codec)
	if err != nil {
		log.Fatalf("recorder: opening %s: %v", *flagOutput, err)
	}

	acceptor, err := transport.ListenTCP(*flagAddr)
	if err != nil {
		log.Fatal(err)
	}
	defer acceptor.Close()
	log.Printf("recorder: listening on %s", acceptor.Addr())

	sess := session.New(w, elem.New())
	view := delta.NewView(sess)
	parser := wire.NewParser(sess.Handlers())

	lastSample := time.Now()
	buf := make([]byte, 64*1024)
	for {
		n, err := acceptor.Read(buf)
		if n > 0 {
			if ferr := parser.Feed(buf[:n]); ferr != nil {
				log.Printf("recorder: protocol error: %v", ferr)
				break
			}
		}
		// The delta view is sampled here, between Feed calls, so it
		// never runs concurrently with event routing.
		if time.Since(lastSample) >= session.DeltaRecordPeriod {
			lastSample = time.Now()
			if snap := view.Sample(); !snap.Empty() {
				log.Printf("recorder: delta tick=%d threads=%d elems=%d locks=%d strings=%d",
					snap.LastTick, len(snap.DirtyThreads), len(snap.DirtyElems), len(snap.NewLocks), len(snap.NewStrings))
			}
		}
		if err != nil {
			break
		}
	}

	if hello, ok := sess.Hello(); ok {
		log.Printf("recorder: session from %q build %q closed: %s", hello.AppName, hello.BuildName, sess)
	}
	for kind, count := range sess.Errors().Snapshot() {
		log.Printf("recorder: %d x %s", count, kind)
	}

	if err := sess.Close(); err != nil {
		log.Fatalf("recorder: finalizing %s: %v", *flagOutput, err)
	}
}

func newCodec(zstdLevel int) (record.Codec, error) {
	if zstdLevel <= 0 {
		return record.NewFlateCodec(), nil
	}
	return record.NewZstdCodec(zstd.EncoderLevelFromZstd(zstdLevel))
}
