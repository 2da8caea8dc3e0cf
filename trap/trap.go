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

// Package trap implements the interpreter's single fail-fast
// abstraction: the five terminating runtime conditions a well-formed
// image can raise, each carrying a stable process exit code.
package trap

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the five terminating trap conditions.
type Kind uint8

const (
	// Arithmetic covers division/modulo by zero, the INT_MIN/-1
	// overflow case, and shift amounts outside [0,31].
	Arithmetic Kind = iota + 1
	// Memory covers null dereference, negative array length, and
	// out-of-bounds array access.
	Memory
	// Assertion covers a failed bytecode-level ASSERT.
	Assertion
	// User covers a bytecode-level ATHROW.
	User
	// InvalidOpcode covers any opcode byte outside the defined set,
	// including the reserved C1 extension opcodes.
	InvalidOpcode
)

// kindNames backs Kind.String and the diagnostic line format.
var kindNames = [...]string{
	Arithmetic:    "arithmetic",
	Memory:        "memory",
	Assertion:     "assertion",
	User:          "user",
	InvalidOpcode: "invalid opcode",
}

// String returns the human-readable trap kind name.
func (k Kind) String() string {
	if int(k) >= len(kindNames) || kindNames[k] == "" {
		return "unknown"
	}
	return kindNames[k]
}

// ExitCode returns the process exit code stable for this trap kind.
func (k Kind) ExitCode() int { return int(k) }

// Trap is the error type raised by the dispatch loop on any of the five
// terminating conditions. It is never recovered from within the core;
// Execute always returns it to the caller rather than calling os.Exit
// itself, so hosts (the CLI driver, tests) decide how termination is
// observed.
type Trap struct {
	Kind    Kind
	Message string // bytecode-supplied message, when available
	Cause   error  // Go-level cause, wrapped with a stack via pkg/errors
}

// Error implements the error interface.
func (t *Trap) Error() string {
	if t.Message != "" {
		return fmt.Sprintf("%s trap: %s", t.Kind, t.Message)
	}
	return fmt.Sprintf("%s trap: %v", t.Kind, t.Cause)
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (t *Trap) Unwrap() error { return t.Cause }

// New raises a trap of the given kind with a static description.
func New(kind Kind, format string, args ...interface{}) *Trap {
	cause := errors.WithStack(fmt.Errorf(format, args...))
	return &Trap{Kind: kind, Cause: cause}
}

// NewMessage raises a trap carrying a bytecode-supplied message pointer
// (ATHROW, ASSERT).
func NewMessage(kind Kind, message string) *Trap {
	return &Trap{Kind: kind, Message: message, Cause: errors.New(message)}
}

// As reports whether err is a *Trap, unwrapping through pkg/errors'
// stack-annotated causes.
func As(err error) (*Trap, bool) {
	var t *Trap
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}
