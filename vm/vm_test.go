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

package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probevm/probevm/heap"
	"github.com/probevm/probevm/image"
	"github.com/probevm/probevm/natives"
	"github.com/probevm/probevm/trap"
	"github.com/probevm/probevm/value"
)

// execImg builds a fresh heap over img's string pool and runs img with
// an empty native table, the shape every test but the native-dispatch
// one needs.
func execImg(img image.Image) (int32, error) {
	return Execute(img, heap.New(img.StringPool(), 0), natives.NewTable(), Options{})
}

func run(t *testing.T, fn image.Function, extra ...image.Function) (int32, error) {
	t.Helper()
	fns := append([]image.Function{fn}, extra...)
	img := image.New(nil, nil, fns, nil, 0)
	return execImg(img)
}

// S1: return a constant.
func TestReturnConstant(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(BIPUSH), 42,
		byte(RETURN),
	}}
	got, err := run(t, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}

// S2: add two locals.
func TestAddTwoLocals(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 2, Code: []byte{
		byte(BIPUSH), 3,
		byte(VSTORE), 0,
		byte(BIPUSH), 39,
		byte(VSTORE), 1,
		byte(VLOAD), 0,
		byte(VLOAD), 1,
		byte(IADD),
		byte(RETURN),
	}}
	got, err := run(t, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}

// S3: division by zero traps with the arithmetic kind.
func TestDivisionByZeroTrapsArithmetic(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(BIPUSH), 10,
		byte(BIPUSH), 0,
		byte(IDIV),
		byte(RETURN),
	}}
	_, err := run(t, fn)
	tr, ok := trap.As(err)
	require.True(t, ok)
	assert.Equal(t, trap.Arithmetic, tr.Kind)
}

// S4: INT_MIN / -1 overflows rather than wrapping silently.
func TestIntMinDivNegOneTraps(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 1, Code: []byte{
		byte(ILDC), 0x00, 0x00, // int const[0] = INT_MIN
		byte(BIPUSH), 0xFF, // -1 as int8
		byte(IDIV),
		byte(RETURN),
	}}
	img := image.New([]int32{minInt32}, nil, []image.Function{fn}, nil, 0)
	_, err := execImg(img)
	tr, ok := trap.As(err)
	require.True(t, ok)
	assert.Equal(t, trap.Arithmetic, tr.Kind)
}

// S5: recursive factorial of 5 via INVOKESTATIC/RETURN.
func TestFactorialOfFiveRecursive(t *testing.T) {
	// fn0 (entry): push 5, call fn1, return.
	entry := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(BIPUSH), 5,
		byte(INVOKESTATIC), 0x00, 0x01,
		byte(RETURN),
	}}
	// fn1(n): if n <= 1 return 1; else return n * fn1(n-1).
	fact := image.Function{NumArgs: 1, NumVars: 1, Code: []byte{
		/*0*/ byte(VLOAD), 0,
		/*2*/ byte(BIPUSH), 1,
		/*4*/ byte(IF_ICMPGT), 0x00, 0x06, // if n > 1, branch to pc=4+6=10
		/*7*/ byte(BIPUSH), 1,
		/*9*/ byte(RETURN),
		/*10*/ byte(VLOAD), 0,
		/*12*/ byte(VLOAD), 0,
		/*14*/ byte(BIPUSH), 1,
		/*16*/ byte(ISUB),
		/*17*/ byte(INVOKESTATIC), 0x00, 0x01,
		/*20*/ byte(IMUL),
		/*21*/ byte(RETURN),
	}}
	got, err := run(t, entry, fact)
	require.NoError(t, err)
	assert.Equal(t, int32(120), got)
}

// S6: allocate an array, store into it, read it back.
func TestArrayStoreAndLoad(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 1, Code: []byte{
		byte(BIPUSH), 4,
		byte(NEWARRAY), 4, // 4 elements of 4 bytes each
		byte(VSTORE), 0,

		byte(VLOAD), 0,
		byte(BIPUSH), 2,
		byte(AADDS),
		byte(BIPUSH), 99,
		byte(IMSTORE),

		byte(VLOAD), 0,
		byte(BIPUSH), 2,
		byte(AADDS),
		byte(IMLOAD),
		byte(RETURN),
	}}
	got, err := run(t, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(99), got)
}

// S7: out-of-bounds array access traps with the memory kind.
func TestArrayOutOfBoundsTrapsMemory(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 1, Code: []byte{
		byte(BIPUSH), 4,
		byte(NEWARRAY), 4,
		byte(VSTORE), 0,

		byte(VLOAD), 0,
		byte(BIPUSH), 4, // index == count: out of bounds
		byte(AADDS),
		byte(RETURN),
	}}
	_, err := run(t, fn)
	tr, ok := trap.As(err)
	require.True(t, ok)
	assert.Equal(t, trap.Memory, tr.Kind)
}

// S8: a failed ASSERT traps with the assertion kind and carries the
// bytecode-supplied message.
func TestFailedAssertTrapsWithMessage(t *testing.T) {
	msg := append([]byte("bad"), 0)
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(BIPUSH), 0, // false, pushed first per spec.md §8 S8
		byte(ALDC), 0x00, 0x00, // message pointer, pushed last/top
		byte(ASSERT),
		byte(BIPUSH), 0,
		byte(RETURN),
	}}
	img := image.New(nil, msg, []image.Function{fn}, nil, 0)
	_, err := execImg(img)
	tr, ok := trap.As(err)
	require.True(t, ok)
	assert.Equal(t, trap.Assertion, tr.Kind)
	assert.Equal(t, "bad", tr.Message)
}

// Determinism: running the same image twice yields the same result.
func TestExecutionIsDeterministic(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(BIPUSH), 7,
		byte(BIPUSH), 6,
		byte(IMUL),
		byte(RETURN),
	}}
	r1, err1 := run(t, fn)
	r2, err2 := run(t, fn)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1, r2)
}

// Two's-complement wraparound: INT_MAX + 1 wraps to INT_MIN rather than
// trapping or promoting width.
func TestIntegerAddWrapsTwosComplement(t *testing.T) {
	const maxInt32 = int32(2147483647)
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(ILDC), 0x00, 0x00,
		byte(BIPUSH), 1,
		byte(IADD),
		byte(RETURN),
	}}
	img := image.New([]int32{maxInt32}, nil, []image.Function{fn}, nil, 0)
	got, err := execImg(img)
	require.NoError(t, err)
	assert.Equal(t, minInt32, got)
}

// Branch idempotence: a not-taken conditional branch falls through to
// exactly the next instruction (pc advances by 3).
func TestConditionalBranchNotTakenFallsThrough(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		/*0*/ byte(BIPUSH), 1,
		/*2*/ byte(BIPUSH), 2,
		/*4*/ byte(IF_ICMPGT), 0x00, 0x05, // not taken (1 is not > 2)
		/*7*/ byte(BIPUSH), 11,
		/*9*/ byte(RETURN),
		/*10*/ byte(BIPUSH), 99,
		/*12*/ byte(RETURN),
	}}
	got, err := run(t, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(11), got)
}

// Pointer equality is identity: two pointers compare equal iff they
// name the same address, not their pointee contents.
func TestPointerEqualityIsIdentityNotContent(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 2, Code: []byte{
		byte(BIPUSH), 4,
		byte(NEWARRAY), 4,
		byte(VSTORE), 0,
		byte(BIPUSH), 4,
		byte(NEWARRAY), 4,
		byte(VSTORE), 1,

		byte(VLOAD), 0,
		byte(VLOAD), 1,
		byte(IF_CMPNE), 0x00, 0x06, // distinct allocations are never equal: always taken
		byte(BIPUSH), 0, // equal case, unreachable for two fresh allocations
		byte(RETURN),
		byte(BIPUSH), 1, // not-equal case
		byte(RETURN),
	}}
	got, err := run(t, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), got)
}

func TestInvalidOpcodeTraps(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{0xFF}}
	_, err := run(t, fn)
	tr, ok := trap.As(err)
	require.True(t, ok)
	assert.Equal(t, trap.InvalidOpcode, tr.Kind)
}

func TestReservedOpcodeTrapsInvalidOpcode(t *testing.T) {
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{byte(CHECKTAG)}}
	_, err := run(t, fn)
	tr, ok := trap.As(err)
	require.True(t, ok)
	assert.Equal(t, trap.InvalidOpcode, tr.Kind)
}

func TestInvokeNativeDispatchesToHostFunction(t *testing.T) {
	nt := natives.NewTable()
	nt.Register(0, func(args []value.Value) (value.Value, error) {
		return value.Int(args[0].AsInt() + 1), nil
	})
	fn := image.Function{NumArgs: 0, NumVars: 0, Code: []byte{
		byte(BIPUSH), 41,
		byte(INVOKENATIVE), 0x00, 0x00,
		byte(RETURN),
	}}
	img := image.New(nil, nil, []image.Function{fn}, []image.NativeRef{{NumArgs: 1, FuncTableIndex: 0}}, 0)
	got, err := Execute(img, heap.New(img.StringPool(), 0), nt, Options{})
	require.NoError(t, err)
	assert.Equal(t, int32(42), got)
}
