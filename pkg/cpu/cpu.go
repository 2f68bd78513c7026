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

// Package cpu holds the per-hart state of the machine: the hart's identity,
// its interrupt-disable nesting bookkeeping, and its simulated control
// registers (sstatus.SIE and satp).
//
// A CPU belongs to exactly one hart. In the simulation each hart is a
// goroutine, and a CPU must only be touched by the goroutine driving it;
// boot code establishes that binding before anything else runs, the way the
// tp register is set up on real hardware.
package cpu

import "fmt"

// CPU is the state of a single hart.
type CPU struct {
	id int

	// noff is the interrupt-disable nesting depth: the number of
	// PushOff calls not yet matched by a PopOff.
	noff int

	// intena records whether interrupts were enabled at the outermost
	// PushOff. It is captured only on the 0 -> 1 transition of noff.
	intena bool

	// sie simulates the sstatus.SIE bit: whether this hart takes
	// interrupts.
	sie bool

	// satp simulates the translation-root control register.
	satp uint64

	// flushes counts sfence.vma instructions issued by this hart.
	flushes uint64
}

// Set is the registry of all harts, indexed by hart id. It is constructed
// once at boot and never resized.
type Set struct {
	cpus []CPU
}

// NewSet returns a registry of n harts with interrupts disabled, the state
// harts are in when they enter the kernel.
func NewSet(n int) *Set {
	if n <= 0 {
		panic(fmt.Sprintf("cpu: invalid hart count %d", n))
	}
	s := &Set{cpus: make([]CPU, n)}
	for i := range s.cpus {
		s.cpus[i].id = i
	}
	return s
}

// Len returns the number of harts.
func (s *Set) Len() int {
	return len(s.cpus)
}

// CPU returns the state of the hart with the given id.
func (s *Set) CPU(id int) *CPU {
	if id < 0 || id >= len(s.cpus) {
		panic(fmt.Sprintf("cpu: no hart %d", id))
	}
	return &s.cpus[id]
}

// ID returns the hart id.
func (c *CPU) ID() int {
	return c.id
}

// InterruptsEnabled returns the simulated sstatus.SIE bit.
func (c *CPU) InterruptsEnabled() bool {
	return c.sie
}

// EnableInterrupts sets the SIE bit. Fatal if any interrupt-disable section
// is still open on this hart; re-enabling interrupts inside a critical
// section would let an interrupt handler deadlock on a held lock.
func (c *CPU) EnableInterrupts() {
	if c.noff != 0 {
		panic(fmt.Sprintf("cpu%d: enabling interrupts with %d disable sections open", c.id, c.noff))
	}
	c.sie = true
}

// PushOff disables interrupts, capturing the previous SIE state on the
// outermost call. Every PushOff must be matched by exactly one PopOff.
func (c *CPU) PushOff() {
	old := c.sie
	c.sie = false
	if c.noff == 0 {
		c.intena = old
	}
	c.noff++
}

// PopOff undoes one PushOff, restoring the captured SIE state when the
// outermost section closes. Fatal if interrupts are somehow already on, or
// if there is no matching PushOff.
func (c *CPU) PopOff() {
	if c.sie {
		panic(fmt.Sprintf("cpu%d: PopOff with interrupts on", c.id))
	}
	if c.noff < 1 {
		panic(fmt.Sprintf("cpu%d: unbalanced PopOff", c.id))
	}
	c.noff--
	if c.noff == 0 && c.intena {
		c.sie = true
	}
}

// WriteSATP installs v as the hart's active translation root.
func (c *CPU) WriteSATP(v uint64) {
	c.satp = v
}

// SATP returns the hart's active translation root register.
func (c *CPU) SATP() uint64 {
	return c.satp
}

// SFenceVMA flushes the hart's cached translations. The simulation has no
// TLB, so this only records that the flush happened.
func (c *CPU) SFenceVMA() {
	c.flushes++
}

// Flushes returns the number of sfence.vma instructions issued.
func (c *CPU) Flushes() uint64 {
	return c.flushes
}
