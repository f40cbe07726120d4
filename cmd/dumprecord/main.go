// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dumprecord prints a finalized record file's stream
// directory and, with -v, every chunk's raw byte length, mirroring
// the teacher's cmd/dump diagnostic for perf.data files.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/gotrace/recorder/record"
)

func main() {
	var (
		flagInput = flag.String("i", "session.rec", "input record `file`")
		flagVerb  = flag.Bool("v", false, "print every chunk's length")
		flagZstd  = flag.Int("zstd", 0, "zstd compression `level` the file was recorded with (0 for the flate codec)")
	)
	flag.Parse()
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	var codec record.Codec
	if *flagZstd <= 0 {
		codec = record.NewFlateCodec()
	} else {
		zc, err := record.NewZstdCodec(zstd.EncoderLevelFromZstd(*flagZstd))
		if err != nil {
			log.Fatal(err)
		}
		defer zc.Close()
		codec = zc
	}

	r, err := record.Open(*flagInput, codec)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	for _, name := range r.Streams() {
		n := r.ChunkCount(name)
		fmt.Printf("%-12s %d chunk(s)\n", name, n)
		if !*flagVerb {
			continue
		}
		for i := 0; i < n; i++ {
			chunk, err := r.ReadChunk(name, i)
			if err != nil {
				log.Fatalf("dumprecord: reading %s[%d]: %v", name, i, err)
			}
			fmt.Printf("  [%d] %d bytes\n", i, len(chunk))
		}
	}
}
