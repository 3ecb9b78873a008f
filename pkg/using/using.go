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

// Package using resolves implicit addresses against the active USING
// domains.
package using

import (
	"math"
)

const (
	REGISTER_COUNT       = 16
	DEFAULT_LIMIT  int64 = 4096
)

// Domain binds a base register to an address. Scope 0 marks an absolute
// domain, which serves targets of every scope.
type Domain struct {
	Register        int
	Base            int64
	Scope           int
	Limit           int64
	Remaining       int64
	Line            int
	MaxDisplacement int64
}

type Resolver struct {
	domains [REGISTER_COUNT]*Domain
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Using activates register over the domain starting at base. remaining is
// the number of bytes left in the owning scope past base; a negative value
// means unbounded. It reports whether an active domain was replaced.
func (r *Resolver) Using(
	register int, base int64, scope int, remaining int64, line int,
) bool {
	if remaining < 0 {
		remaining = math.MaxInt64
	}

	replaced := r.domains[register] != nil

	r.domains[register] = &Domain{
		Register:        register,
		Base:            base,
		Scope:           scope,
		Limit:           DEFAULT_LIMIT,
		Remaining:       remaining,
		Line:            line,
		MaxDisplacement: -1,
	}

	return replaced
}

// Drop deactivates register and reports whether it was active
func (r *Resolver) Drop(register int) bool {
	active := r.domains[register] != nil
	r.domains[register] = nil
	return active
}

func (r *Resolver) DropAll() {
	for i := range r.domains {
		r.domains[i] = nil
	}
}

func (r *Resolver) Active(register int) *Domain {
	return r.domains[register]
}

// Domains lists the active domains in register order
func (r *Resolver) Domains() []*Domain {
	var result []*Domain

	for _, domain := range r.domains {
		if domain != nil {
			result = append(result, domain)
		}
	}

	return result
}

// Resolve picks the domain giving the smallest displacement to
// target+extra. A domain is eligible when its scope matches or is absolute
// and the displacement d satisfies 0 <= d < min(limit, remaining). Equal
// displacements go to the highest register.
func (r *Resolver) Resolve(target, extra int64, scope int) (int64, *Domain, bool) {
	var best *Domain
	var displacement int64

	for register := REGISTER_COUNT - 1; register >= 0; register-- {
		domain := r.domains[register]

		if domain == nil || (domain.Scope != 0 && domain.Scope != scope) {
			continue
		}

		candidate := target + extra - domain.Base
		bound := domain.Limit

		if domain.Remaining < bound {
			bound = domain.Remaining
		}

		if candidate < 0 || candidate >= bound {
			continue
		}

		if best == nil || candidate < displacement {
			best = domain
			displacement = candidate
		}
	}

	if best == nil {
		return 0, nil, false
	}

	if displacement > best.MaxDisplacement {
		best.MaxDisplacement = displacement
	}

	return displacement, best, true
}
