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

package kernel

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"rvkernel.dev/rvkernel/pkg/log"
	"rvkernel.dev/rvkernel/pkg/riscv"
)

func init() {
	log.SetLevel(log.Warning)
}

func testConfig(harts int) Config {
	return Config{
		Harts:       harts,
		MemoryBytes: 4 << 20,
		TextEnd:     KernBase + 0x1_0000,
		KernelEnd:   KernBase + 0x2_0000,
	}
}

func bootAll(t *testing.T, k *Kernel) {
	t.Helper()
	var eg errgroup.Group
	for id := 0; id < k.CPUs().Len(); id++ {
		id := id
		eg.Go(func() error {
			k.Boot(id)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestBoot(t *testing.T) {
	k, err := New(testConfig(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Destroy()
	bootAll(t, k)

	if !k.Ready() {
		t.Error("kernel not ready after boot")
	}
	if k.Faulted() {
		t.Error("kernel faulted during boot")
	}

	// Every hart activated the shared space and left boot with
	// interrupts on.
	want := k.PageTables().SATP()
	for id := 0; id < 4; id++ {
		c := k.CPUs().CPU(id)
		if got := c.SATP(); got != want {
			t.Errorf("cpu%d satp: got %#x, wanted %#x", id, got, want)
		}
		if !c.InterruptsEnabled() {
			t.Errorf("cpu%d left boot with interrupts off", id)
		}
	}
}

func TestKernelMappings(t *testing.T) {
	k, err := New(testConfig(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Destroy()
	bootAll(t, k)

	const rw = riscv.EntryRead | riscv.EntryWrite
	pt := k.PageTables()
	for _, tc := range []struct {
		name string
		va   riscv.Addr
		perm riscv.PTE
	}{
		{"uart", UART0, rw},
		{"virtio", Virtio0, rw},
		{"plic first", PLIC, rw},
		{"plic last", PLIC + riscv.Addr(PLICSize) - riscv.PageSize, rw},
		{"text first", KernBase, riscv.EntryRead | riscv.EntryExec},
		{"text last", k.cfg.TextEnd - riscv.PageSize, riscv.EntryRead | riscv.EntryExec},
		{"ram first", k.cfg.TextEnd, rw},
		{"ram last", k.Memory().Limit() - riscv.PageSize, rw},
	} {
		pa, flags, ok := pt.Lookup(tc.va)
		if !ok {
			t.Errorf("%s: va %#x not mapped", tc.name, tc.va)
			continue
		}
		if pa != tc.va {
			t.Errorf("%s: va %#x mapped to %#x, wanted identity", tc.name, tc.va, pa)
		}
		if want := tc.perm | riscv.EntryValid; flags != want {
			t.Errorf("%s: flags %#x, wanted %#x", tc.name, flags, want)
		}
	}

	// Nothing between the device windows got mapped.
	if _, _, ok := pt.Lookup(UART0 - riscv.PageSize); ok {
		t.Error("page below the uart window is mapped")
	}
}

func TestAllocatorUsableFromAllHarts(t *testing.T) {
	const harts = 4
	k, err := New(testConfig(harts))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Destroy()
	bootAll(t, k)

	var eg errgroup.Group
	for id := 0; id < harts; id++ {
		c := k.CPUs().CPU(id)
		eg.Go(func() error {
			for i := 0; i < 100; i++ {
				pa, ok := k.Allocator().Alloc(c)
				if !ok {
					continue
				}
				k.Allocator().Free(c, pa)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestFault(t *testing.T) {
	k, err := New(testConfig(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer k.Destroy()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("Fault did not halt the hart")
			}
		}()
		k.Fault("test fault %d", 1)
	}()
	if !k.Faulted() {
		t.Error("Faulted not set after Fault")
	}
}

func TestConfigValidation(t *testing.T) {
	for _, tc := range []struct {
		name string
		mut  func(*Config)
	}{
		{"zero harts", func(c *Config) { c.Harts = 0 }},
		{"unaligned text end", func(c *Config) { c.TextEnd += 12 }},
		{"kernel end before text end", func(c *Config) { c.KernelEnd = c.TextEnd - riscv.PageSize }},
		{"image past ram", func(c *Config) { c.KernelEnd = KernBase + riscv.Addr(c.MemoryBytes) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(1)
			tc.mut(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New accepted a bad config")
			}
		})
	}
}
