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

// Package vm implements the interpreter core: the instruction dispatch
// loop and the semantics of every opcode in spec.md §4.2.
//
// The fetch/decode/execute shape and its error-sentinel-per-failure-mode
// style are grounded in the teacher's own dispatch loop
// (probe-lang/lang/vm/vm.go's Step/execute), generalized from the
// teacher's 256-register machine to this spec's stack-of-frames,
// local-variable machine: the active frame's fields live in vmState
// exactly as the teacher's registers/pc/stack lived directly on *VM,
// and INVOKESTATIC/RETURN move a Frame on/off the call stack the same
// way the teacher's OpCall/OpReturn push/pop a frame{} struct.
package vm

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/probevm/probevm/frame"
	"github.com/probevm/probevm/heap"
	"github.com/probevm/probevm/image"
	"github.com/probevm/probevm/natives"
	"github.com/probevm/probevm/plog"
	"github.com/probevm/probevm/trap"
	"github.com/probevm/probevm/value"
)

// Options configures a single Execute call.
type Options struct {
	// Trace enables per-instruction diagnostic logging (spec.md §6
	// "Environment": a build-time flag may enable diagnostic tracing).
	Trace bool
	// Logger receives trace lines and trap diagnostics. If nil,
	// plog.Discard is used.
	Logger *plog.Logger
}

// vmState is the interpreter's mutable state: the active frame's fields
// (code, pc, stack, locals) plus everything shared across frames
// (image, heap, natives, call stack).
type vmState struct {
	img     image.Image
	heap    *heap.Heap
	natives *natives.Table
	log     *plog.Logger
	trace   bool

	code   []byte
	pc     int
	stack  *frame.Stack
	locals *frame.Locals

	calls *frame.CallStack
}

// Execute runs the image's entry function (img.Entry()) to completion
// and returns its integer result, implementing spec.md §6's
// `execute(image) -> i32` entry point. The entry function is assumed to
// take no arguments and starts with an empty operand stack and
// zero-initialised locals.
//
// h is the heap instructions allocate into and natives registered in nt
// read/write; the caller constructs it (typically heap.New(img.StringPool(),
// 0)) before building its native table, since natives like HashBytes and
// NewUUID need the same heap the bytecode sees.
//
// On a trap, Execute returns (0, *trap.Trap); the caller — typically
// cmd/probevm — is responsible for mapping the trap's Kind to a process
// exit code and printing its diagnostic line, since the core itself
// never calls os.Exit.
func Execute(img image.Image, h *heap.Heap, nt *natives.Table, opts Options) (int32, error) {
	logger := opts.Logger
	if logger == nil {
		logger = plog.Discard
	}
	entry := img.Function(img.Entry())
	st := &vmState{
		img:     img,
		heap:    h,
		natives: nt,
		log:     logger,
		trace:   opts.Trace,
		code:    entry.Code,
		pc:      0,
		stack:   frame.NewStack(),
		locals:  frame.NewLocals(int(entry.NumVars)),
		calls:   frame.NewCallStack(),
	}
	return st.run()
}

// run is the dispatch loop: fetch, decode, execute, until RETURN from
// the outermost frame or a trap.
func (st *vmState) run() (int32, error) {
	for {
		if st.pc < 0 || st.pc >= len(st.code) {
			return 0, trap.New(trap.InvalidOpcode, "pc %d out of bounds for function body of length %d", st.pc, len(st.code))
		}
		opPC := st.pc
		op := Opcode(st.code[opPC])

		// spec.md's Open Questions: the trace line reads P[pc] before
		// any handler advances pc.
		if st.trace {
			st.log.Debug("step", "pc", opPC, "op", op, "stackHeight", st.stack.Len(), "callDepth", st.calls.Depth())
			var buf bytes.Buffer
			st.DumpState(&buf)
			st.log.Debug(buf.String())
		}

		result, done, err := st.step(op, opPC)
		if err != nil {
			if st.trace {
				st.log.Error("trap", "kind", trapKind(err), "pc", opPC, "op", op)
			}
			return 0, err
		}
		if done {
			return result, nil
		}
	}
}

func trapKind(err error) string {
	if t, ok := trap.As(err); ok {
		return t.Kind.String()
	}
	return "unknown"
}

// step decodes and executes exactly one instruction at opPC, advancing
// st.pc (directly for branches, by the instruction's length otherwise).
// done reports whether execution of the entire program has finished
// (RETURN from the outermost frame); result is only meaningful when
// done is true.
func (st *vmState) step(op Opcode, opPC int) (result int32, done bool, err error) {
	if isReserved(op) {
		return 0, false, trap.New(trap.InvalidOpcode, "reserved opcode 0x%02x (%s)", uint8(op), op)
	}

	switch op {

	// ---- Stack shuffle --------------------------------------------------

	case NOP:
		st.pc = opPC + 1

	case POP:
		st.stack.Pop()
		st.pc = opPC + 1

	case DUP:
		st.stack.Push(st.stack.Top())
		st.pc = opPC + 1

	case SWAP:
		b := st.stack.Pop()
		a := st.stack.Pop()
		st.stack.Push(b)
		st.stack.Push(a)
		st.pc = opPC + 1

	// ---- Integer arithmetic ----------------------------------------------

	case IADD:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.stack.Push(value.Int(x + y))
		st.pc = opPC + 1

	case ISUB:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.stack.Push(value.Int(x - y))
		st.pc = opPC + 1

	case IMUL:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.stack.Push(value.Int(x * y))
		st.pc = opPC + 1

	case IDIV:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		if y == 0 {
			return 0, false, trap.New(trap.Arithmetic, "division by zero")
		}
		if x == minInt32 && y == -1 {
			return 0, false, trap.New(trap.Arithmetic, "INT_MIN / -1 overflow")
		}
		st.stack.Push(value.Int(x / y))
		st.pc = opPC + 1

	case IREM:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		if y == 0 {
			return 0, false, trap.New(trap.Arithmetic, "modulo by zero")
		}
		if x == minInt32 && y == -1 {
			return 0, false, trap.New(trap.Arithmetic, "INT_MIN %% -1 overflow")
		}
		st.stack.Push(value.Int(x % y))
		st.pc = opPC + 1

	case IAND:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.stack.Push(value.Int(x & y))
		st.pc = opPC + 1

	case IOR:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.stack.Push(value.Int(x | y))
		st.pc = opPC + 1

	case IXOR:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.stack.Push(value.Int(x ^ y))
		st.pc = opPC + 1

	case ISHL:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		if y < 0 || y >= 32 {
			return 0, false, trap.New(trap.Arithmetic, "shift amount %d out of range [0,31]", y)
		}
		st.stack.Push(value.Int(int32(uint32(x) << uint(y))))
		st.pc = opPC + 1

	case ISHR:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		if y < 0 || y >= 32 {
			return 0, false, trap.New(trap.Arithmetic, "shift amount %d out of range [0,31]", y)
		}
		st.stack.Push(value.Int(x >> uint(y)))
		st.pc = opPC + 1

	// ---- Constants ---------------------------------------------------------

	case BIPUSH:
		imm := int8(st.code[opPC+1])
		st.stack.Push(value.Int(int32(imm)))
		st.pc = opPC + 2

	case ILDC:
		idx := st.u16(opPC + 1)
		st.stack.Push(value.Int(st.img.IntConst(idx)))
		st.pc = opPC + 3

	case ALDC:
		idx := st.u16(opPC + 1)
		st.stack.Push(value.Ptr(st.heap.StringPtr(uint32(idx))))
		st.pc = opPC + 3

	case ACONST_NULL:
		st.stack.Push(value.NullPtr)
		st.pc = opPC + 1

	// ---- Locals --------------------------------------------------------

	case VLOAD:
		idx := int(st.code[opPC+1])
		st.stack.Push(st.locals.Get(idx))
		st.pc = opPC + 2

	case VSTORE:
		idx := int(st.code[opPC+1])
		st.locals.Set(idx, st.stack.Pop())
		st.pc = opPC + 2

	// ---- Assertions ------------------------------------------------------

	case ATHROW:
		msgPtr := st.stack.Pop().AsPtr()
		msg, rerr := st.readCString(msgPtr)
		if rerr != nil {
			return 0, false, trap.New(trap.Memory, "%v", rerr)
		}
		return 0, false, trap.NewMessage(trap.User, msg)

	case ASSERT:
		msgPtr := st.stack.Pop().AsPtr()
		cond := st.stack.Pop().AsInt()
		if cond == 0 {
			msg, rerr := st.readCString(msgPtr)
			if rerr != nil {
				return 0, false, trap.New(trap.Memory, "%v", rerr)
			}
			return 0, false, trap.NewMessage(trap.Assertion, msg)
		}
		st.pc = opPC + 1

	// ---- Control flow ------------------------------------------------------

	case GOTO:
		st.pc = opPC + branchTarget(opPC, st.i16(opPC+1))

	case IF_CMPEQ:
		y, x := st.stack.Pop(), st.stack.Pop()
		st.branchIf(opPC, x.Equal(y))

	case IF_CMPNE:
		y, x := st.stack.Pop(), st.stack.Pop()
		st.branchIf(opPC, !x.Equal(y))

	case IF_ICMPLT:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.branchIf(opPC, x < y)

	case IF_ICMPLE:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.branchIf(opPC, x <= y)

	case IF_ICMPGT:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.branchIf(opPC, x > y)

	case IF_ICMPGE:
		y, x := st.stack.Pop().AsInt(), st.stack.Pop().AsInt()
		st.branchIf(opPC, x >= y)

	// ---- Function call -------------------------------------------------

	case INVOKESTATIC:
		idx := st.u16(opPC + 1)
		g := st.img.Function(idx)
		args := make([]value.Value, g.NumArgs)
		for i := int(g.NumArgs) - 1; i >= 0; i-- {
			args[i] = st.stack.Pop()
		}
		st.calls.Push(frame.Frame{
			Code:   st.code,
			PC:     opPC + 3,
			Stack:  st.stack,
			Locals: st.locals,
		})
		newLocals := frame.NewLocals(int(g.NumVars))
		for i, a := range args {
			newLocals.Set(i, a)
		}
		st.code = g.Code
		st.pc = 0
		st.stack = frame.NewStack()
		st.locals = newLocals

	case INVOKENATIVE:
		idx := st.u16(opPC + 1)
		n := st.img.Native(idx)
		args := make([]value.Value, n.NumArgs)
		for i := int(n.NumArgs) - 1; i >= 0; i-- {
			args[i] = st.stack.Pop()
		}
		res, nerr := st.natives.Call(int(n.FuncTableIndex), args)
		if nerr != nil {
			if t, ok := trap.As(nerr); ok {
				return 0, false, t
			}
			return 0, false, trap.New(trap.InvalidOpcode, "native call failed: %v", nerr)
		}
		st.stack.Push(res)
		st.pc = opPC + 3

	case RETURN:
		res := st.stack.Pop()
		if st.calls.Empty() {
			return res.AsInt(), true, nil
		}
		f := st.calls.Pop()
		st.code = f.Code
		st.pc = f.PC
		st.stack = f.Stack
		st.locals = f.Locals
		st.stack.Push(res)

	// ---- Memory --------------------------------------------------------

	case NEW:
		size := uint32(st.code[opPC+1])
		ptr, herr := st.heap.New(size)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Ptr(ptr))
		st.pc = opPC + 2

	case NEWARRAY:
		eltSize := uint32(st.code[opPC+1])
		n := st.stack.Pop().AsInt()
		if n < 0 {
			return 0, false, trap.New(trap.Memory, "negative array length %d", n)
		}
		ptr, herr := st.heap.NewArray(uint32(n), eltSize)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Ptr(ptr))
		st.pc = opPC + 2

	case IMLOAD:
		ptr := st.stack.Pop().AsPtr()
		v, herr := st.heap.ReadInt32(ptr)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Int(v))
		st.pc = opPC + 1

	case IMSTORE:
		v := st.stack.Pop().AsInt()
		ptr := st.stack.Pop().AsPtr()
		if herr := st.heap.WriteInt32(ptr, v); herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.pc = opPC + 1

	case AMLOAD:
		ptr := st.stack.Pop().AsPtr()
		v, herr := st.heap.ReadPtr(ptr)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Ptr(v))
		st.pc = opPC + 1

	case AMSTORE:
		v := st.stack.Pop().AsPtr()
		ptr := st.stack.Pop().AsPtr()
		if herr := st.heap.WritePtr(ptr, v); herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.pc = opPC + 1

	case CMLOAD:
		ptr := st.stack.Pop().AsPtr()
		v, herr := st.heap.ReadByte(ptr)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Int(v))
		st.pc = opPC + 1

	case CMSTORE:
		x := st.stack.Pop().AsInt()
		a := st.stack.Pop().AsPtr()
		if herr := st.heap.WriteByte(a, x); herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.pc = opPC + 1

	case AADDF:
		f := uint32(st.code[opPC+1])
		ptr := st.stack.Pop().AsPtr()
		if ptr == value.Null {
			return 0, false, trap.New(trap.Memory, "null dereference in AADDF")
		}
		st.stack.Push(value.Ptr(st.heap.FieldAddr(ptr, f)))
		st.pc = opPC + 2

	case ARRAYLENGTH:
		ptr := st.stack.Pop().AsPtr()
		n, herr := st.heap.ArrayLen(ptr)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Int(n))
		st.pc = opPC + 1

	case AADDS:
		idx := st.stack.Pop().AsInt()
		a := st.stack.Pop().AsPtr()
		elem, herr := st.heap.ArrayElemAddr(a, idx)
		if herr != nil {
			return 0, false, trap.New(trap.Memory, "%v", herr)
		}
		st.stack.Push(value.Ptr(elem))
		st.pc = opPC + 1

	default:
		return 0, false, trap.New(trap.InvalidOpcode, "0x%02x", uint8(op))
	}

	return 0, false, nil
}

const minInt32 = int32(-1) << 31

// branchIf advances pc by the branch displacement when taken is true,
// or by 3 (opcode + 2 immediate bytes) otherwise, per spec.md §4.1.
func (st *vmState) branchIf(opPC int, taken bool) {
	if taken {
		st.pc = opPC + branchTarget(opPC, st.i16(opPC+1))
		return
	}
	st.pc = opPC + 3
}

// branchTarget returns the pc-relative delta for a taken branch: the
// displacement is relative to the pc of the opcode itself, not the byte
// after its immediates (spec.md §4.1).
func branchTarget(opPC int, disp int16) int {
	return int(disp)
}

func (st *vmState) u16(off int) uint16 {
	return binary.BigEndian.Uint16(st.code[off:])
}

func (st *vmState) i16(off int) int16 {
	return int16(binary.BigEndian.Uint16(st.code[off:]))
}

// maxMessageLen bounds how many bytes readCString will scan before
// giving up, so a malformed (unterminated) message string traps instead
// of looping until the heap limit.
const maxMessageLen = 4096

// readCString reads a NUL-terminated byte run starting at ptr, used by
// ATHROW and ASSERT to recover their bytecode-supplied message.
func (st *vmState) readCString(ptr value.Addr) (string, error) {
	var buf []byte
	for i := uint32(0); i < maxMessageLen; i++ {
		b, err := st.heap.ReadByte(st.heap.FieldAddr(ptr, i))
		if err != nil {
			return "", err
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, byte(b))
	}
	return "", fmt.Errorf("message string exceeds %d bytes without a terminator", maxMessageLen)
}
