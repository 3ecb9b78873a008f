// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package using_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lassandro/asm370/pkg/using"
)

func TestTieBreakPrefersHighestRegister(t *testing.T) {
	resolver := using.NewResolver()

	resolver.Using(5, 0x100, 1, 10000, 1)
	resolver.Using(9, 0x100, 1, 10000, 2)

	displacement, domain, ok := resolver.Resolve(0x164, 0, 1)

	require.True(t, ok)
	assert.Equal(t, int64(100), displacement)
	assert.Equal(t, 9, domain.Register)
	assert.Equal(t, int64(100), domain.MaxDisplacement)
	assert.Equal(t, int64(-1), resolver.Active(5).MaxDisplacement)
}

func TestSmallestDisplacementWins(t *testing.T) {
	resolver := using.NewResolver()

	resolver.Using(12, 0, 1, -1, 1)
	resolver.Using(3, 4000, 1, -1, 2)

	displacement, domain, ok := resolver.Resolve(4010, 0, 1)

	require.True(t, ok)
	assert.Equal(t, 3, domain.Register)
	assert.Equal(t, int64(10), displacement)

	displacement, domain, ok = resolver.Resolve(3990, 0, 1)

	require.True(t, ok)
	assert.Equal(t, 12, domain.Register)
	assert.Equal(t, int64(3990), displacement)
}

func TestBoundaryIsExclusive(t *testing.T) {
	resolver := using.NewResolver()

	resolver.Using(12, 0, 1, -1, 1)

	_, _, ok := resolver.Resolve(4095, 0, 1)
	assert.True(t, ok)

	_, _, ok = resolver.Resolve(4096, 0, 1)
	assert.False(t, ok)

	_, _, ok = resolver.Resolve(4090, 6, 1)
	assert.False(t, ok)

	resolver.Using(11, 0, 2, 100, 2)

	_, _, ok = resolver.Resolve(99, 0, 2)
	assert.True(t, ok)

	_, _, ok = resolver.Resolve(100, 0, 2)
	assert.False(t, ok)
}

func TestScopeMustMatch(t *testing.T) {
	resolver := using.NewResolver()

	resolver.Using(12, 0, 1, -1, 1)
	resolver.Using(4, 0, -1, 80, 2)
	resolver.Using(7, 0x2000, 0, -1, 3)

	_, _, ok := resolver.Resolve(16, 0, 2)
	assert.False(t, ok)

	_, domain, ok := resolver.Resolve(16, 0, -1)
	require.True(t, ok)
	assert.Equal(t, 4, domain.Register)

	_, domain, ok = resolver.Resolve(0x2010, 0, 0)
	require.True(t, ok)
	assert.Equal(t, 7, domain.Register)

	_, _, ok = resolver.Resolve(0x1000, 0, 0)
	assert.False(t, ok)
}

func TestAbsoluteDomainServesEveryScope(t *testing.T) {
	resolver := using.NewResolver()

	resolver.Using(12, 0, 0, -1, 1)

	displacement, domain, ok := resolver.Resolve(4, 0, 1)
	require.True(t, ok)
	assert.Equal(t, 12, domain.Register)
	assert.Equal(t, int64(4), displacement)

	displacement, domain, ok = resolver.Resolve(8, 0, -1)
	require.True(t, ok)
	assert.Equal(t, 12, domain.Register)
	assert.Equal(t, int64(8), displacement)

	resolver.Using(3, 0, 1, -1, 2)

	_, domain, ok = resolver.Resolve(4, 0, 1)
	require.True(t, ok)
	assert.Equal(t, 12, domain.Register)

	_, domain, ok = resolver.Resolve(4, 0, 2)
	require.True(t, ok)
	assert.Equal(t, 12, domain.Register)
}

func TestUsingAndDrop(t *testing.T) {
	resolver := using.NewResolver()

	assert.False(t, resolver.Using(12, 0, 1, -1, 1))
	assert.True(t, resolver.Using(12, 8, 1, -1, 2))
	assert.Equal(t, int64(8), resolver.Active(12).Base)

	resolver.Using(3, 0, 1, -1, 3)
	assert.Len(t, resolver.Domains(), 2)

	assert.True(t, resolver.Drop(12))
	assert.False(t, resolver.Drop(12))
	assert.Nil(t, resolver.Active(12))

	resolver.DropAll()
	assert.Empty(t, resolver.Domains())

	_, _, ok := resolver.Resolve(0, 0, 1)
	assert.False(t, ok)
}
