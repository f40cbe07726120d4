// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package symbol

import "testing"

func TestDemanglePassesThroughUnmangledNames(t *testing.T) {
	const name = "main loop"
	if got := Demangle(name); got != name {
		t.Fatalf("got %q, want unchanged %q", got, name)
	}
}

func TestDemangleDecodesItaniumMangledName(t *testing.T) {
	// _Z3fooi is the Itanium mangling of foo(int).
	got := Demangle("_Z3fooi")
	if got == "_Z3fooi" {
		t.Fatalf("expected a demangled form, got the mangled name unchanged")
	}
	const want = "foo(int)"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
