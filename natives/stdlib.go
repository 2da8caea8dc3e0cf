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

package natives

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"

	"github.com/probevm/probevm/heap"
	"github.com/probevm/probevm/value"
)

// These constants enumerate the fixed function-table slots
// StandardLibrary registers. A host wiring its own native pool can still use any
// numbering; these constants just document the defaults probevm ships.
const (
	PrintInt  = 0
	PrintChar = 1
	ReadChar  = 2
	HashBytes = 3
	NewUUID   = 4
)

// StandardLibrary returns a Table pre-populated with the small native
// surface a real source-language runtime needs beyond pure computation.
// h is the heap the hash/uuid natives read from and allocate into,
// since natives operate on the same value.Addr handles bytecode does.
func StandardLibrary(h *heap.Heap) *Table {
	t := NewTable()
	out := bufio.NewWriter(os.Stdout)
	in := bufio.NewReader(os.Stdin)

	t.Register(PrintInt, func(args []value.Value) (value.Value, error) {
		fmt.Fprintf(out, "%d", args[0].AsInt())
		out.Flush()
		return value.Int(0), nil
	})

	t.Register(PrintChar, func(args []value.Value) (value.Value, error) {
		out.WriteByte(byte(args[0].AsInt()) & 0x7F)
		out.Flush()
		return value.Int(0), nil
	})

	t.Register(ReadChar, func(args []value.Value) (value.Value, error) {
		b, err := in.ReadByte()
		if err == io.EOF {
			return value.Int(-1), nil
		}
		if err != nil {
			return value.Value{}, err
		}
		return value.Int(int32(b)), nil
	})

	hashFn := func(args []value.Value) (value.Value, error) {
		ptr := args[0].AsPtr()
		length := args[1].AsInt()
		digest, err := hashCell(h, ptr, length)
		if err != nil {
			return value.Value{}, err
		}
		out, err := h.New(uint32(len(digest)))
		if err != nil {
			return value.Value{}, err
		}
		for i, b := range digest {
			if err := h.WriteByteRaw(h.FieldAddr(out, uint32(i)), b); err != nil {
				return value.Value{}, err
			}
		}
		return value.Ptr(out), nil
	}
	t.Register(HashBytes, Memoize(hashFn, 256))

	t.Register(NewUUID, func(args []value.Value) (value.Value, error) {
		id := uuid.New()
		ptr, err := h.New(16)
		if err != nil {
			return value.Value{}, err
		}
		raw, _ := id.MarshalBinary()
		for i, b := range raw {
			if err := h.WriteByteRaw(h.FieldAddr(ptr, uint32(i)), b); err != nil {
				return value.Value{}, err
			}
		}
		return value.Ptr(ptr), nil
	})

	return t
}

// hashCell reads length bytes starting at ptr out of the heap and
// returns their SHA3-256 digest, the same hash family the teacher's own
// VM exposes as its OpSHA3 native crypto opcode
// (probe-lang/lang/vm/opcodes.go).
func hashCell(h *heap.Heap, ptr value.Addr, length int32) ([]byte, error) {
	buf := make([]byte, length)
	for i := int32(0); i < length; i++ {
		b, err := h.ReadByte(h.FieldAddr(ptr, uint32(i)))
		if err != nil {
			return nil, err
		}
		buf[i] = byte(b)
	}
	sum := sha3.Sum256(buf)
	return sum[:], nil
}
