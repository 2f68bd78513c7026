// Copyright 2026 The rvkernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package spinlock implements the kernel's only mutual-exclusion primitive:
// a busy-waiting, strictly non-reentrant lock that keeps interrupts disabled
// on the owning hart for the whole critical section.
//
// Acquire uses an acquire-ordered test-and-set and release a release-ordered
// store; everything written under the lock is visible to the next hart that
// acquires it. That is the sole cross-core visibility mechanism for the
// structures the locks protect.
//
// There is no scheduler below this layer, so there is nothing to block on: a
// hart that cannot take the lock spins until it can. A permanently held lock
// is a liveness bug, not a handled condition.
package spinlock

import (
	"fmt"
	"runtime"

	"rvkernel.dev/rvkernel/pkg/atomicbitops"
	"rvkernel.dev/rvkernel/pkg/cpu"
)

// noOwner is the owner word's empty value; hart ids are stored offset by
// one so the zero value never looks owned.
const noOwner = 0

// Lock is a spin lock. The zero value is an empty slot: it must be
// initialized with Init before first use, and acquiring an uninitialized
// slot is fatal.
type Lock struct {
	// locked is the hardware test-and-set word.
	locked atomicbitops.Bool

	// owner is the id+1 of the hart holding the lock, or noOwner. Written
	// only by the holder; read racily by Acquire for the self-acquire
	// check, which is sound because a hart always observes its own
	// writes.
	owner atomicbitops.Uint32

	// name identifies the lock in diagnostics. Doubles as the
	// initialized flag: a named lock has been through Init.
	name string
}

// Init prepares an empty lock slot for use. Fatal if the slot was already
// initialized; a lock's identity is fixed for its lifetime.
func (l *Lock) Init(name string) {
	if l.name != "" {
		panic(fmt.Sprintf("spinlock %q: reinitialized as %q", l.name, name))
	}
	if name == "" {
		panic("spinlock: empty name")
	}
	l.name = name
}

// Name returns the name given at Init.
func (l *Lock) Name() string {
	return l.name
}

// holding returns true if c owns the lock.
func (l *Lock) holding(c *cpu.CPU) bool {
	return l.owner.Load() == uint32(c.ID())+1
}

// Acquire takes the lock on behalf of hart c, disabling interrupts on c
// first and spinning until the lock is won. Fatal if the slot was never
// initialized or if c already holds the lock; this lock is not reentrant.
//
// The returned guard must be released by the same hart.
func (l *Lock) Acquire(c *cpu.CPU) *Guard {
	// Interrupts go off before the lock word is touched: an interrupt
	// handler taking this lock on the same hart would spin forever.
	c.PushOff()
	if l.name == "" {
		panic("spinlock: acquire of uninitialized lock")
	}
	if l.holding(c) {
		panic(fmt.Sprintf("spinlock %q: cpu%d acquiring a lock it already holds", l.name, c.ID()))
	}
	for l.locked.Swap(true) {
		// Spin. The yield stands in for the architecture's spin-wait
		// hint and keeps single-threaded runtimes live.
		runtime.Gosched()
	}
	l.owner.Store(uint32(c.ID()) + 1)
	return &Guard{lock: l, c: c}
}

// Guard is the evidence that a hart holds a lock. Dropping a guard without
// releasing it leaves the lock held forever.
type Guard struct {
	lock *Lock
	c    *cpu.CPU
}

// Release unlocks and restores the hart's interrupt state according to the
// nesting rule. Fatal if the releasing hart is not the recorded owner: the
// guard was leaked to another hart or the lock state is corrupt.
func (g *Guard) Release() {
	l := g.lock
	if !l.holding(g.c) {
		panic(fmt.Sprintf("spinlock %q: cpu%d releasing a lock it does not hold", l.name, g.c.ID()))
	}
	l.owner.Store(noOwner)
	l.locked.Store(false)
	g.c.PopOff()
}
