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

// Package natives implements the host-provided native function table
// INVOKENATIVE dispatches into: a fixed lookup from function-table index
// to a Go function taking a vector of values and returning one, treated
// as a leaf by the dispatch loop (spec.md §5: "natives are leaves").
package natives

import (
	"fmt"

	"github.com/probevm/probevm/value"
)

// Func is a host-provided native function. It may itself raise a trap
// by returning a *trap.Trap as its error (the vm package wires that
// contract up; this package only needs the error interface).
type Func func(args []value.Value) (value.Value, error)

// Table is an indexed lookup from function_table_index to Func.
type Table struct {
	funcs map[int]Func
}

// NewTable returns an empty native function table.
func NewTable() *Table {
	return &Table{funcs: make(map[int]Func)}
}

// Register installs fn at function-table index idx. Registering the
// same index twice is a host configuration bug and panics immediately
// rather than silently shadowing the earlier registration.
func (t *Table) Register(idx int, fn Func) {
	if _, exists := t.funcs[idx]; exists {
		panic(fmt.Sprintf("natives: function table index %d already registered", idx))
	}
	t.funcs[idx] = fn
}

// Call invokes the function at idx with args.
func (t *Table) Call(idx int, args []value.Value) (value.Value, error) {
	fn, ok := t.funcs[idx]
	if !ok {
		return value.Value{}, fmt.Errorf("natives: no function registered at table index %d", idx)
	}
	return fn(args)
}
