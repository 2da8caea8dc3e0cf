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

// Package value defines the tagged runtime value the interpreter core
// operates on: either a 32-bit signed integer or an opaque heap pointer.
package value

import "fmt"

// Tag discriminates the two shapes a Value can take.
type Tag uint8

const (
	// TagInt marks a Value holding a two's-complement 32-bit integer.
	TagInt Tag = iota
	// TagPtr marks a Value holding a heap/string-pool pointer or null.
	TagPtr
)

// Addr is an opaque reference into heap memory or the program's string
// pool. The zero Addr is the distinguished null pointer.
type Addr uint64

// Null is the distinguished null pointer.
const Null Addr = 0

// Value is a discriminated variant carrying either an Int or a Ptr.
// The zero Value is Int(0).
type Value struct {
	tag Tag
	i   int32
	p   Addr
}

// Int constructs an integer Value.
func Int(i int32) Value { return Value{tag: TagInt, i: i} }

// Ptr constructs a pointer Value.
func Ptr(a Addr) Value { return Value{tag: TagPtr, p: a} }

// NullPtr is the null pointer Value.
var NullPtr = Ptr(Null)

// IsInt reports whether v holds an integer.
func (v Value) IsInt() bool { return v.tag == TagInt }

// IsPtr reports whether v holds a pointer.
func (v Value) IsPtr() bool { return v.tag == TagPtr }

// AsInt returns v's integer payload.
//
// Conversion is total on the corresponding variant: calling AsInt on a
// Ptr value is a bug in the compiler that produced the bytecode, not a
// user-observable trap, so it panics rather than returning a zero value.
func (v Value) AsInt() int32 {
	if v.tag != TagInt {
		panic(fmt.Sprintf("value: AsInt on non-int value %v", v))
	}
	return v.i
}

// AsPtr returns v's pointer payload. See AsInt for the type-confusion
// contract.
func (v Value) AsPtr() Addr {
	if v.tag != TagPtr {
		panic(fmt.Sprintf("value: AsPtr on non-ptr value %v", v))
	}
	return v.p
}

// Equal implements val_equal: two Ints are equal iff their payloads
// match; two Ptrs are equal iff they name the same address (null equals
// null); an Int is never equal to a Ptr.
func (v Value) Equal(other Value) bool {
	if v.tag != other.tag {
		return false
	}
	if v.tag == TagInt {
		return v.i == other.i
	}
	return v.p == other.p
}

// String renders v for tracing and debug dumps.
func (v Value) String() string {
	if v.tag == TagInt {
		return fmt.Sprintf("Int(%d)", v.i)
	}
	if v.p == Null {
		return "Ptr(null)"
	}
	return fmt.Sprintf("Ptr(0x%x)", uint64(v.p))
}

// GoString supports go-spew/%#v-style dumps with the same rendering as
// String, so trace dumps and test failure output read identically.
func (v Value) GoString() string { return v.String() }
