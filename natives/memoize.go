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
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru"

	"github.com/probevm/probevm/value"
)

// Memoize wraps a pure native in an LRU cache keyed by its argument
// vector, so repeated calls with the same arguments skip recomputation.
// It must only wrap natives with no observable side effect beyond their
// return value (StandardLibrary applies it only to HashBytes).
func Memoize(fn Func, capacity int) Func {
	cache, err := lru.New(capacity)
	if err != nil {
		panic(fmt.Sprintf("natives: building memoization cache: %v", err))
	}
	return func(args []value.Value) (value.Value, error) {
		key := encodeKey(args)
		if cached, ok := cache.Get(key); ok {
			return cached.(value.Value), nil
		}
		result, err := fn(args)
		if err != nil {
			return result, err
		}
		cache.Add(key, result)
		return result, nil
	}
}

// encodeKey renders args as a comparable string suitable for use as an
// LRU cache key, keyed on pointer identity rather than pointed-to
// content. That is only safe to memoize across calls whose pointee
// bytes do not change between calls with the same pointer value, which
// holds for the loop-hashes-the-same-literal pattern Memoize is built
// for; a native that hashes a mutable cell should not be wrapped.
func encodeKey(args []value.Value) string {
	var b strings.Builder
	for _, a := range args {
		fmt.Fprintf(&b, "%s|", a.String())
	}
	return b.String()
}
