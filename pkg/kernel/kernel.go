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

// Package kernel ties the memory core together and drives the boot
// sequence: hart 0 initializes the allocator, builds the shared kernel
// address space and publishes a ready flag; every other hart spins on that
// flag and then activates the shared space. After the barrier all harts
// allocate, free and walk concurrently through the locks below.
package kernel

import (
	"fmt"
	"runtime"

	"rvkernel.dev/rvkernel/pkg/atomicbitops"
	"rvkernel.dev/rvkernel/pkg/cpu"
	"rvkernel.dev/rvkernel/pkg/log"
	"rvkernel.dev/rvkernel/pkg/pagealloc"
	"rvkernel.dev/rvkernel/pkg/pagetables"
	"rvkernel.dev/rvkernel/pkg/physmem"
	"rvkernel.dev/rvkernel/pkg/riscv"
)

// Config describes the machine and the kernel image laid into it.
type Config struct {
	// Harts is the number of cores.
	Harts int

	// MemoryBytes is the RAM size above KernBase. Defaults to
	// DefaultMemoryBytes.
	MemoryBytes uint64

	// TextEnd is the first address past the kernel's code, page-aligned.
	// Code below it is mapped execute+read, data above it read/write. On
	// real hardware this comes from a linker symbol.
	TextEnd riscv.Addr

	// KernelEnd is the first address past the whole kernel image; page
	// allocation starts here.
	KernelEnd riscv.Addr
}

func (cfg *Config) validate() error {
	if cfg.Harts <= 0 {
		return fmt.Errorf("invalid hart count %d", cfg.Harts)
	}
	if cfg.MemoryBytes == 0 {
		cfg.MemoryBytes = DefaultMemoryBytes
	}
	top := KernBase + riscv.Addr(cfg.MemoryBytes)
	if !cfg.TextEnd.PageAligned() {
		return fmt.Errorf("text end %#x is not page-aligned", cfg.TextEnd)
	}
	if cfg.TextEnd <= KernBase || cfg.KernelEnd < cfg.TextEnd || cfg.KernelEnd >= top {
		return fmt.Errorf("image [%#x, %#x) does not fit [%#x, %#x)", cfg.TextEnd, cfg.KernelEnd, KernBase, top)
	}
	return nil
}

// Kernel is the machine-wide state of the memory core.
type Kernel struct {
	cfg  Config
	mem  *physmem.Memory
	cpus *cpu.Set

	// alloc and kpt are created by hart 0 during Boot and published by
	// the ready flag; other harts must not touch them before it is set.
	alloc *pagealloc.Allocator
	kpt   *pagetables.PageTables

	// ready is the one-shot boot barrier.
	ready atomicbitops.Bool

	// faulted is set by Fault and never cleared. The console honors it:
	// once a hart has faulted only its diagnostic matters.
	faulted atomicbitops.Bool
}

// New builds the machine: simulated RAM and the hart registry. Nothing is
// mapped or allocated yet; that is Boot's job.
func New(cfg Config) (*Kernel, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	mem, err := physmem.New(KernBase, cfg.MemoryBytes)
	if err != nil {
		return nil, err
	}
	return &Kernel{
		cfg:  cfg,
		mem:  mem,
		cpus: cpu.NewSet(cfg.Harts),
	}, nil
}

// Destroy releases the simulated RAM.
func (k *Kernel) Destroy() {
	k.mem.Destroy()
}

// CPUs returns the hart registry.
func (k *Kernel) CPUs() *cpu.Set {
	return k.cpus
}

// Memory returns the simulated RAM.
func (k *Kernel) Memory() *physmem.Memory {
	return k.mem
}

// Allocator returns the page allocator. Only valid after Boot's barrier.
func (k *Kernel) Allocator() *pagealloc.Allocator {
	return k.alloc
}

// PageTables returns the shared kernel address space. Only valid after
// Boot's barrier.
func (k *Kernel) PageTables() *pagetables.PageTables {
	return k.kpt
}

// Ready returns true once hart 0 has finished one-time setup.
func (k *Kernel) Ready() bool {
	return k.ready.Load()
}

// Boot is each hart's entry into the memory core; call it once per hart,
// from the goroutine driving that hart. Hart 0 performs the one-time setup
// and opens the barrier; the rest wait for it. On return the hart has the
// kernel address space active and interrupts enabled.
func (k *Kernel) Boot(id int) {
	c := k.cpus.CPU(id)
	if id == 0 {
		if k.ready.Load() {
			k.Fault("hart 0 booted twice")
		}
		log.Infof("kernel booting")
		k.alloc = pagealloc.New(c, k.mem, k.cfg.KernelEnd, k.mem.Limit())
		k.kpt = k.buildKernelSpace(c)
		k.kpt.Activate(c)
		log.Infof("cpu0 finished setup")
		k.ready.Store(true)
	} else {
		for !k.ready.Load() {
			runtime.Gosched()
		}
		log.Infof("cpu%d starting", id)
		k.kpt.Activate(c)
	}
	c.EnableInterrupts()
}

// buildKernelSpace constructs the shared kernel mapping: device windows
// read/write, kernel text execute+read, the rest of RAM read/write, all
// identity-mapped.
func (k *Kernel) buildKernelSpace(c *cpu.CPU) *pagetables.PageTables {
	pt, ok := pagetables.New(c, k.mem, k.alloc)
	if !ok {
		k.Fault("building kernel page table: out of pages")
	}

	const rw = riscv.EntryRead | riscv.EntryWrite
	top := k.mem.Limit()

	type region struct {
		name string
		va   riscv.Addr
		size uint64
		perm riscv.PTE
	}
	for _, r := range []region{
		{"uart", UART0, riscv.PageSize, rw},
		{"virtio", Virtio0, riscv.PageSize, rw},
		{"plic", PLIC, PLICSize, rw},
		{"text", KernBase, uint64(k.cfg.TextEnd - KernBase), riscv.EntryRead | riscv.EntryExec},
		{"ram", k.cfg.TextEnd, uint64(top - k.cfg.TextEnd), rw},
	} {
		if !pt.Map(c, r.va, r.size, r.va, r.perm) {
			k.Fault("mapping %s: out of pages", r.name)
		}
	}
	return pt
}

// Fault marks the kernel faulted and halts the calling hart with a
// diagnostic. Invariants are already broken when this is called; there is
// no recovery path.
func (k *Kernel) Fault(format string, v ...any) {
	k.faulted.Store(true)
	msg := fmt.Sprintf(format, v...)
	log.Warningf("kernel fault: %s", msg)
	panic("kernel fault: " + msg)
}

// Faulted reports whether any hart has faulted. The console's mute hook.
func (k *Kernel) Faulted() bool {
	return k.faulted.Load()
}
