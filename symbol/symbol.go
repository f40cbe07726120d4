// Copyright 2015 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package symbol demangles Itanium C++ symbol names recorded as raw
// elem names (§4.H), the same role the teacher gives this library for
// DWARF subprogram names, applied here to an instrumented binary's
// scope and marker names instead.
package symbol

import "github.com/ianlancetaylor/demangle"

// Demangle returns name's demangled display form, or name unchanged
// if it does not parse as a mangled symbol.
func Demangle(name string) string {
	return demangle.Filter(name)
}
