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

// Package pagetables builds and walks Sv39 translation trees.
//
// A tree is three levels of 512-entry tables, each occupying one physical
// page obtained from the page allocator. Intermediate tables are allocated
// lazily the first time a mapping descends through them and live as long as
// the address space; entries only ever go from invalid to valid, and there
// is no unmap.
//
// Construction is single-writer: one hart builds the mapping, then the tree
// is published (see the kernel boot barrier) and is safe for concurrent
// walks and activation without further locking.
package pagetables

import (
	"fmt"

	"rvkernel.dev/rvkernel/pkg/cpu"
	"rvkernel.dev/rvkernel/pkg/log"
	"rvkernel.dev/rvkernel/pkg/pagealloc"
	"rvkernel.dev/rvkernel/pkg/physmem"
	"rvkernel.dev/rvkernel/pkg/riscv"
)

// PageTables is one address space: a root table plus the intermediate and
// leaf tables hanging off it.
type PageTables struct {
	mem   *physmem.Memory
	alloc *pagealloc.Allocator

	// root is the physical address of the top-level table.
	root riscv.Addr
}

// New allocates an empty address space. Returns false if the allocator is
// out of pages.
func New(c *cpu.CPU, mem *physmem.Memory, alloc *pagealloc.Allocator) (*PageTables, bool) {
	root, ok := alloc.Alloc(c)
	if !ok {
		return nil, false
	}
	return &PageTables{mem: mem, alloc: alloc, root: root}, true
}

// Root returns the physical address of the root table.
func (p *PageTables) Root() riscv.Addr {
	return p.root
}

// SATP returns the value that activates this address space.
func (p *PageTables) SATP() uint64 {
	return riscv.SATP(p.root)
}

// Activate installs this address space as hart c's active translation root
// and flushes the hart's stale cached translations. Every hart must call
// this, including the one that built the tree.
func (p *PageTables) Activate(c *cpu.CPU) {
	// Flush first so the table writes are not shadowed by stale entries,
	// then again after the root switch.
	c.SFenceVMA()
	c.WriteSATP(p.SATP())
	c.SFenceVMA()
}

// Entry is a slot in a leaf or intermediate table: the physical location of
// one PTE.
type Entry struct {
	mem *physmem.Memory
	pa  riscv.Addr
}

// Load reads the entry.
func (e Entry) Load() riscv.PTE {
	return riscv.PTE(e.mem.ReadWord(e.pa))
}

// Store writes the entry.
func (e Entry) Store(pte riscv.PTE) {
	e.mem.WriteWord(e.pa, uint64(pte))
}

// entrySlot returns the slot for the given index of the table at pa.
func (p *PageTables) entrySlot(table riscv.Addr, index uint16) Entry {
	if index >= riscv.EntriesPerTable {
		panic(fmt.Sprintf("pagetables: index %d out of range", index))
	}
	return Entry{mem: p.mem, pa: table + riscv.Addr(index)*riscv.EntrySize}
}

// Walk descends to the leaf slot for va, allocating and linking missing
// intermediate tables when allocate is true. Intermediate entries get only
// the valid bit; permissions belong to leaves. With allocate false a
// missing level returns false with no side effects. The returned slot is
// not necessarily valid.
//
// c is the hart doing the walk; it is only used to allocate, and may be nil
// when allocate is false. Fatal if va is beyond the translated range.
func (p *PageTables) Walk(c *cpu.CPU, va riscv.Addr, allocate bool) (Entry, bool) {
	if va >= riscv.MaxVA {
		panic(fmt.Sprintf("pagetables: walk of va %#x beyond MaxVA", va))
	}
	table := p.root
	for level := riscv.Levels - 1; level > 0; level-- {
		slot := p.entrySlot(table, va.VPN(level))
		pte := slot.Load()
		if pte.Valid() {
			table = pte.Address()
			continue
		}
		if !allocate {
			return Entry{}, false
		}
		next, ok := p.alloc.Alloc(c)
		if !ok {
			return Entry{}, false
		}
		// The fresh page is already zeroed: 512 invalid entries.
		slot.Store(riscv.NewPTE(next, riscv.EntryValid))
		table = next
	}
	return p.entrySlot(table, va.VPN(0)), true
}

// Lookup resolves va without allocating. It returns the physical address the
// leaf maps va's page to, and the leaf's flags.
func (p *PageTables) Lookup(va riscv.Addr) (riscv.Addr, riscv.PTE, bool) {
	slot, ok := p.Walk(nil, va, false)
	if !ok {
		return 0, 0, false
	}
	pte := slot.Load()
	if !pte.Valid() {
		return 0, 0, false
	}
	return pte.Address(), pte.Flags(), true
}

// Map maps size/PageSize consecutive pages at va to consecutive physical
// pages at pa with the given permissions plus the valid bit. Returns false
// if the allocator runs out of pages for intermediate tables, with any
// already-written leaves left in place.
//
// Fatal if va or size is not page-aligned, size is zero, perm carries
// anything but permission bits, or a target leaf is already valid:
// remapping is always a caller bug, never silently honored.
func (p *PageTables) Map(c *cpu.CPU, va riscv.Addr, size uint64, pa riscv.Addr, perm riscv.PTE) bool {
	if !va.PageAligned() {
		panic(fmt.Sprintf("pagetables: map of unaligned va %#x", va))
	}
	if size == 0 || !riscv.Addr(size).PageAligned() {
		panic(fmt.Sprintf("pagetables: map of bad size %#x", size))
	}
	if perm&^riscv.PermMask != 0 {
		panic(fmt.Sprintf("pagetables: map with non-permission bits %#x", perm))
	}

	log.Infof("map: %#x-%#x -> %#x (%#x)", va, va+riscv.Addr(size), pa, size)

	last := va + riscv.Addr(size) - riscv.PageSize
	for {
		slot, ok := p.Walk(c, va, true)
		if !ok {
			return false
		}
		if slot.Load().Valid() {
			panic(fmt.Sprintf("pagetables: remap of va %#x", va))
		}
		slot.Store(riscv.NewPTE(pa, perm|riscv.EntryValid))
		if va == last {
			return true
		}
		va += riscv.PageSize
		pa += riscv.PageSize
	}
}
