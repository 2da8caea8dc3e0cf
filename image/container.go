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

package image

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// magic identifies a probevm container. Multi-byte header fields are
// big-endian, matching the core's own big-endian immediate-decoding
// convention (spec.md §4.1) so a hex dump of a container and a
// disassembly line up the same way.
var magic = [4]byte{'P', 'V', 'M', '1'}

const (
	compressionNone   byte = 0x00
	compressionSnappy byte = 0x01
)

// Container is a concrete Image parsed from the binary container
// format: an 8-byte header (4-byte magic + 1 compression tag + 3
// reserved bytes) followed by four length-prefixed pools in order:
// int, string, function, native, and a trailing 2-byte entry index.
type Container struct {
	ints      []int32
	strings   []byte
	functions []Function
	natives   []NativeRef
	entry     uint16
}

var _ Image = (*Container)(nil)

// IntConst implements Image.
func (c *Container) IntConst(i uint16) int32 { return c.ints[i] }

// StringPool implements Image.
func (c *Container) StringPool() []byte { return c.strings }

// Function implements Image.
func (c *Container) Function(i uint16) Function { return c.functions[i] }

// FunctionCount implements Image.
func (c *Container) FunctionCount() int { return len(c.functions) }

// Native implements Image.
func (c *Container) Native(i uint16) NativeRef { return c.natives[i] }

// Entry implements Image.
func (c *Container) Entry() uint16 { return c.entry }

// Load reads a container from r, transparently decompressing it if the
// header's compression tag requests it. Compression is an on-disk
// concern only; Execute never sees it.
func Load(r io.Reader) (*Container, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("image: read container: %w", err)
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("image: container too short for header")
	}
	if !bytes.Equal(raw[:4], magic[:]) {
		return nil, fmt.Errorf("image: bad magic %q", raw[:4])
	}
	tag := raw[4]
	body := raw[8:]
	switch tag {
	case compressionNone:
		// body is already raw.
	case compressionSnappy:
		decoded, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("image: snappy decode: %w", err)
		}
		body = decoded
	default:
		return nil, fmt.Errorf("image: unknown compression tag 0x%02x", tag)
	}
	return parseBody(body)
}

func parseBody(body []byte) (*Container, error) {
	r := bytes.NewReader(body)
	c := &Container{}

	var intCount uint16
	if err := binary.Read(r, binary.BigEndian, &intCount); err != nil {
		return nil, fmt.Errorf("image: int pool count: %w", err)
	}
	c.ints = make([]int32, intCount)
	for i := range c.ints {
		if err := binary.Read(r, binary.BigEndian, &c.ints[i]); err != nil {
			return nil, fmt.Errorf("image: int pool[%d]: %w", i, err)
		}
	}

	var strLen uint32
	if err := binary.Read(r, binary.BigEndian, &strLen); err != nil {
		return nil, fmt.Errorf("image: string pool length: %w", err)
	}
	c.strings = make([]byte, strLen)
	if _, err := io.ReadFull(r, c.strings); err != nil {
		return nil, fmt.Errorf("image: string pool body: %w", err)
	}

	var funcCount uint16
	if err := binary.Read(r, binary.BigEndian, &funcCount); err != nil {
		return nil, fmt.Errorf("image: function pool count: %w", err)
	}
	c.functions = make([]Function, funcCount)
	for i := range c.functions {
		var f Function
		if err := binary.Read(r, binary.BigEndian, &f.NumArgs); err != nil {
			return nil, fmt.Errorf("image: function[%d] num_args: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &f.NumVars); err != nil {
			return nil, fmt.Errorf("image: function[%d] num_vars: %w", i, err)
		}
		var codeLen uint32
		if err := binary.Read(r, binary.BigEndian, &codeLen); err != nil {
			return nil, fmt.Errorf("image: function[%d] code length: %w", i, err)
		}
		f.Code = make([]byte, codeLen)
		if _, err := io.ReadFull(r, f.Code); err != nil {
			return nil, fmt.Errorf("image: function[%d] code body: %w", i, err)
		}
		c.functions[i] = f
	}

	var nativeCount uint16
	if err := binary.Read(r, binary.BigEndian, &nativeCount); err != nil {
		return nil, fmt.Errorf("image: native pool count: %w", err)
	}
	c.natives = make([]NativeRef, nativeCount)
	for i := range c.natives {
		var n NativeRef
		if err := binary.Read(r, binary.BigEndian, &n.NumArgs); err != nil {
			return nil, fmt.Errorf("image: native[%d] num_args: %w", i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &n.FuncTableIndex); err != nil {
			return nil, fmt.Errorf("image: native[%d] func_table_index: %w", i, err)
		}
		c.natives[i] = n
	}

	if err := binary.Read(r, binary.BigEndian, &c.entry); err != nil {
		return nil, fmt.Errorf("image: entry index: %w", err)
	}
	if int(c.entry) >= len(c.functions) {
		return nil, fmt.Errorf("image: entry index %d out of range (%d functions)", c.entry, len(c.functions))
	}

	return c, nil
}

// Encode serializes c back into the raw (uncompressed) container
// format. It exists primarily to let tests build containers
// round-trip-style and to let a build pipeline produce containers this
// package can Load.
func Encode(c *Container) []byte {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(compressionNone)
	buf.Write([]byte{0, 0, 0}) // reserved

	binary.Write(&buf, binary.BigEndian, uint16(len(c.ints)))
	for _, v := range c.ints {
		binary.Write(&buf, binary.BigEndian, v)
	}

	binary.Write(&buf, binary.BigEndian, uint32(len(c.strings)))
	buf.Write(c.strings)

	binary.Write(&buf, binary.BigEndian, uint16(len(c.functions)))
	for _, f := range c.functions {
		binary.Write(&buf, binary.BigEndian, f.NumArgs)
		binary.Write(&buf, binary.BigEndian, f.NumVars)
		binary.Write(&buf, binary.BigEndian, uint32(len(f.Code)))
		buf.Write(f.Code)
	}

	binary.Write(&buf, binary.BigEndian, uint16(len(c.natives)))
	for _, n := range c.natives {
		binary.Write(&buf, binary.BigEndian, n.NumArgs)
		binary.Write(&buf, binary.BigEndian, n.FuncTableIndex)
	}

	binary.Write(&buf, binary.BigEndian, c.entry)
	return buf.Bytes()
}

// New constructs a Container directly from in-memory pools, bypassing
// the binary format. This is the entry point tests and embedders use
// when a container already exists as Go values rather than bytes on
// disk.
func New(ints []int32, strings []byte, functions []Function, natives []NativeRef, entry uint16) *Container {
	return &Container{ints: ints, strings: strings, functions: functions, natives: natives, entry: entry}
}
