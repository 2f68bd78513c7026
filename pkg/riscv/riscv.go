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

// Package riscv describes the Sv39 translation format of 64-bit RISC-V
// machines: page geometry, page-table entry encoding and the satp register
// layout. Everything here is pure arithmetic on values; no machine state is
// touched.
package riscv

import "rvkernel.dev/rvkernel/pkg/bits"

// Page geometry. Sv39 translates 39-bit virtual addresses with three levels
// of 512-entry tables: 9+9+9 bits of index and a 12-bit page offset.
const (
	// PageShift is the binary log of the page size.
	PageShift = 12

	// PageSize is the size of a page in bytes.
	PageSize = 1 << PageShift

	// EntriesPerTable is the number of entries in one table page. Each
	// entry is 8 bytes, so a table occupies exactly one page.
	EntriesPerTable = 512

	// EntrySize is the size of a single page-table entry in bytes.
	EntrySize = 8

	// Levels is the depth of the translation tree.
	Levels = 3

	indexBits = 9
	indexMask = EntriesPerTable - 1
)

// MaxVA is one beyond the highest virtual address the kernel uses. Sv39
// covers 39 bits but addresses with bit 38 set are sign-extended, so the
// usable low half stops one bit short.
const MaxVA = 1 << (PageShift + Levels*indexBits - 1)

// Addr is an address, physical or virtual, in the simulated machine.
type Addr uint64

// RoundDown returns the address rounded down to the nearest page boundary.
func (a Addr) RoundDown() Addr {
	return Addr(bits.AlignDown(uint64(a), PageSize))
}

// RoundUp returns the address rounded up to the nearest page boundary.
func (a Addr) RoundUp() Addr {
	return Addr(bits.AlignUp(uint64(a), PageSize))
}

// PageAligned returns true if a is a multiple of the page size.
func (a Addr) PageAligned() bool {
	return bits.IsAligned(uint64(a), PageSize)
}

// VPN returns the 9-bit virtual page number of a at the given level. Level 2
// indexes the root table, level 0 the leaf table.
func (a Addr) VPN(level int) uint16 {
	return uint16((a >> (PageShift + level*indexBits)) & indexMask)
}

// PTE is one Sv39 page-table entry:
//
//	bits 0..9   flags (valid, permissions, and bits this kernel ignores)
//	bits 10..53 physical page number
//	bits 54..63 reserved
type PTE uint64

// Page-table entry flag bits.
const (
	EntryValid PTE = 1 << 0
	EntryRead  PTE = 1 << 1
	EntryWrite PTE = 1 << 2
	EntryExec  PTE = 1 << 3
	EntryUser  PTE = 1 << 4

	// PermMask covers the permission bits a leaf entry may carry.
	PermMask = EntryRead | EntryWrite | EntryExec | EntryUser

	flagsMask PTE = 0x3ff
	ppnShift      = 10
)

// NewPTE encodes a page-aligned physical address and flags into an entry.
// The encoding is lossless for page-aligned addresses and flags within
// flagsMask; DecodePTE inverts it exactly.
func NewPTE(pa Addr, flags PTE) PTE {
	return PTE(pa>>PageShift)<<ppnShift | (flags & flagsMask)
}

// Valid returns true if the entry's valid bit is set.
func (p PTE) Valid() bool {
	return p&EntryValid != 0
}

// Leaf returns true if the entry terminates translation. An intermediate
// entry carries no permission bits, only the valid bit.
func (p PTE) Leaf() bool {
	return p&PermMask != 0
}

// Flags returns the entry's 10 flag bits.
func (p PTE) Flags() PTE {
	return p & flagsMask
}

// Address returns the physical address of the page the entry refers to.
// Meaningless if the valid bit is clear.
func (p PTE) Address() Addr {
	return Addr(p>>ppnShift) << PageShift
}

// satp register layout: mode in the top four bits, the root table's physical
// page number in the low 44.
const satpSv39 = uint64(8) << 60

// SATP returns the satp value that activates an address space whose root
// table lives at the given physical address.
func SATP(root Addr) uint64 {
	return satpSv39 | uint64(root>>PageShift)
}
