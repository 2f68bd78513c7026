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

// Package physmem simulates the physical memory of the machine: a single
// contiguous range [base, limit) of RAM addressed by physical address.
//
// This is the only place raw memory is touched. The allocator and the
// page-table walker go through word and fill operations here, which keeps
// them exercisable under test without real hardware. Cross-core visibility
// of these plain accesses is provided by the lock protocol above them, never
// by this package.
//
// Device windows (UART, PLIC, virtio) are below the RAM base and are not
// backed here; the kernel maps them 1:1 but never reads or writes them
// through this package.
package physmem

import (
	"encoding/binary"
	"fmt"

	"rvkernel.dev/rvkernel/pkg/memutil"
	"rvkernel.dev/rvkernel/pkg/riscv"
)

// Memory is the simulated RAM range [base, limit).
type Memory struct {
	base    riscv.Addr
	backing []byte
}

// New returns a Memory covering [base, base+size). Both base and size must
// be page-aligned.
func New(base riscv.Addr, size uint64) (*Memory, error) {
	if !base.PageAligned() || !riscv.Addr(size).PageAligned() || size == 0 {
		return nil, fmt.Errorf("physmem: range %#x+%#x is not page-aligned", base, size)
	}
	backing, err := memutil.MapAnon(int(size))
	if err != nil {
		return nil, fmt.Errorf("physmem: mapping backing store: %w", err)
	}
	return &Memory{base: base, backing: backing}, nil
}

// Destroy releases the backing store. The Memory must not be used afterward.
func (m *Memory) Destroy() {
	memutil.Unmap(m.backing)
	m.backing = nil
}

// Base returns the first physical address of the range.
func (m *Memory) Base() riscv.Addr {
	return m.base
}

// Limit returns one past the last physical address of the range.
func (m *Memory) Limit() riscv.Addr {
	return m.base + riscv.Addr(len(m.backing))
}

// Contains returns true if [pa, pa+n) lies inside the range.
func (m *Memory) Contains(pa riscv.Addr, n uint64) bool {
	return pa >= m.base && n <= uint64(m.Limit()) && pa <= m.Limit()-riscv.Addr(n)
}

func (m *Memory) offset(pa riscv.Addr, n uint64) uint64 {
	if !m.Contains(pa, n) {
		panic(fmt.Sprintf("physmem: access %#x+%#x outside [%#x, %#x)", pa, n, m.base, m.Limit()))
	}
	return uint64(pa - m.base)
}

// ReadWord reads the 64-bit little-endian word at pa. Faults if the access
// leaves the range.
func (m *Memory) ReadWord(pa riscv.Addr) uint64 {
	off := m.offset(pa, 8)
	return binary.LittleEndian.Uint64(m.backing[off:])
}

// WriteWord writes the 64-bit little-endian word at pa. Faults if the access
// leaves the range.
func (m *Memory) WriteWord(pa riscv.Addr, v uint64) {
	off := m.offset(pa, 8)
	binary.LittleEndian.PutUint64(m.backing[off:], v)
}

// Fill sets the n bytes starting at pa to v. Faults if the access leaves the
// range.
func (m *Memory) Fill(pa riscv.Addr, n uint64, v byte) {
	off := m.offset(pa, n)
	s := m.backing[off : off+n]
	for i := range s {
		s[i] = v
	}
}

// Slice returns the n bytes starting at pa, aliasing the backing store.
// Faults if the access leaves the range.
func (m *Memory) Slice(pa riscv.Addr, n uint64) []byte {
	off := m.offset(pa, n)
	return m.backing[off : off+n]
}
