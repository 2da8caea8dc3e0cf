// Copyright 2026 The probevm Authors
// This file is part of probevm.
//
// probevm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// probevm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with probevm. If not, see <http://www.gnu.org/licenses/>.

// Package image defines the read-only program-image view the
// interpreter core consumes, and a concrete parser for the on-disk
// binary container format.
package image

// Function is one entry of the function pool: its arity, its local
// variable count, and its code body.
type Function struct {
	NumArgs uint16
	NumVars uint16
	Code    []byte
}

// NativeRef is one entry of the native pool: how many arguments the
// call site pops, and which native-table slot to invoke.
type NativeRef struct {
	NumArgs        uint16
	FuncTableIndex uint16
}

// Image is the read-only view of a parsed program the core requires:
// an integer constant pool, a string pool, a function pool, a native
// pool, and the index of the entry function within the function pool.
type Image interface {
	// IntConst returns the i'th entry of the integer constant pool.
	IntConst(i uint16) int32
	// StringPool returns the immutable string-pool bytes.
	StringPool() []byte
	// Function returns the i'th entry of the function pool.
	Function(i uint16) Function
	// FunctionCount returns the number of functions in the pool.
	FunctionCount() int
	// Native returns the i'th entry of the native pool.
	Native(i uint16) NativeRef
	// Entry returns the index of the entry function. Container reads it
	// from the image rather than assuming 0, and Load rejects an index
	// outside the function pool.
	Entry() uint16
}
