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

// Package pagealloc allocates physical memory one 4096-byte page at a time.
//
// Free pages form an intrusive singly-linked list: the first word of each
// free page holds the address of the next free page. The list head lives
// behind a spin lock, so allocate and free are O(1) and safe across harts.
// There is no coalescing and there are no size classes; every unit is a
// single page.
//
// Rounding policy: the start of the managed range is rounded up to a page
// boundary and the end is rounded down (only whole pages inside
// [start, end) are ever handed out). Pages are zero-filled on allocation
// and poisoned with PoisonByte on free so use-after-free reads stale
// 0x55 bytes instead of plausible data.
package pagealloc

import (
	"fmt"
	"time"

	"rvkernel.dev/rvkernel/pkg/atomicbitops"
	"rvkernel.dev/rvkernel/pkg/cpu"
	"rvkernel.dev/rvkernel/pkg/log"
	"rvkernel.dev/rvkernel/pkg/physmem"
	"rvkernel.dev/rvkernel/pkg/riscv"
	"rvkernel.dev/rvkernel/pkg/spinlock"
)

// PoisonByte fills freed pages.
const PoisonByte = 'U'

// nilPage terminates the free list. Physical page zero is never inside the
// managed range, which starts at the kernel's load address.
const nilPage = riscv.Addr(0)

// Allocator owns the free list for one physical range. Construct it with
// New exactly once, on the boot hart, before any other hart allocates.
type Allocator struct {
	mem *physmem.Memory

	// start and limit delimit the managed range, page-aligned.
	start riscv.Addr
	limit riscv.Addr

	mu spinlock.Lock

	// free is the list head. Guarded by mu.
	free riscv.Addr

	// freePages counts the list length. Kept atomic rather than under mu
	// so FreePages stays a read, not a lock acquisition.
	freePages atomicbitops.Uint64
}

// New builds an allocator over [start, end) of mem and frees every whole
// page in the range. start is typically the first address past the kernel
// image; end the top of RAM.
func New(c *cpu.CPU, mem *physmem.Memory, start, end riscv.Addr) *Allocator {
	a := &Allocator{
		mem:   mem,
		start: start.RoundUp(),
		limit: end.RoundDown(),
	}
	if a.start >= a.limit || !mem.Contains(a.start, uint64(a.limit-a.start)) {
		panic(fmt.Sprintf("pagealloc: bad range [%#x, %#x)", start, end))
	}
	a.mu.Init("pagealloc")
	a.freeRange(c)
	return a
}

// freeRange pushes every page of the managed range onto the free list.
func (a *Allocator) freeRange(c *cpu.CPU) {
	log.Infof("free range: %#x to %#x", a.start, a.limit)
	progress := log.NewProgress(nil, 100*time.Millisecond)
	n := 0
	for pa := a.start; pa+riscv.PageSize <= a.limit; pa += riscv.PageSize {
		progress.Debugf("freeing page %#x", pa)
		a.Free(c, pa)
		n++
	}
	log.Infof("%d pages free", n)
}

// Start returns the first managed address.
func (a *Allocator) Start() riscv.Addr {
	return a.start
}

// Limit returns one past the last managed address.
func (a *Allocator) Limit() riscv.Addr {
	return a.limit
}

// Alloc pops a page off the free list and returns it zero-filled. The
// second result is false when no pages are left; exhaustion is the caller's
// problem to report upward, never a fault here.
func (a *Allocator) Alloc(c *cpu.CPU) (riscv.Addr, bool) {
	g := a.mu.Acquire(c)
	pa := a.free
	if pa == nilPage {
		g.Release()
		log.Warningf("pagealloc: out of pages")
		return 0, false
	}
	a.free = riscv.Addr(a.mem.ReadWord(pa))
	a.freePages.Add(^uint64(0)) // decrement
	g.Release()

	// The page is ours now; fill it outside the lock.
	a.mem.Fill(pa, riscv.PageSize, 0)
	return pa, true
}

// Free validates pa and pushes it back on the free list. Fatal if pa is not
// page-aligned or lies outside the managed range: such a free is a
// programming error that would corrupt the allocator if honored.
func (a *Allocator) Free(c *cpu.CPU, pa riscv.Addr) {
	if !pa.PageAligned() || pa < a.start || pa >= a.limit {
		panic(fmt.Sprintf("pagealloc: freeing bad page %#x", pa))
	}

	// Poison before publishing so no hart can observe the page with its
	// old contents intact.
	a.mem.Fill(pa, riscv.PageSize, PoisonByte)

	g := a.mu.Acquire(c)
	a.mem.WriteWord(pa, uint64(a.free))
	a.free = pa
	a.freePages.Add(1)
	g.Release()
}

// FreePages returns the number of pages currently on the free list. The
// count is a snapshot; other harts may allocate or free concurrently.
func (a *Allocator) FreePages() uint64 {
	return a.freePages.Load()
}
