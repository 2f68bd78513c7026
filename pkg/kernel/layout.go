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

import "rvkernel.dev/rvkernel/pkg/riscv"

// Physical memory layout of the qemu virt machine, from qemu's
// hw/riscv/virt.c:
//
//	00001000 -- boot ROM
//	0c000000 -- PLIC
//	10000000 -- uart0
//	10001000 -- virtio disk
//	80000000 -- kernel loaded here; RAM up to PhysTop
//
// The kernel maps the device windows 1:1 but never interprets their
// contents; the drivers that do are outside this core.
const (
	// UART0 is the base of the 16550a UART's register window.
	UART0 = riscv.Addr(0x1000_0000)

	// Virtio0 is the base of the virtio mmio window.
	Virtio0 = riscv.Addr(0x1000_1000)

	// PLIC is the base of the platform-level interrupt controller, and
	// PLICSize its register window.
	PLIC     = riscv.Addr(0x0c00_0000)
	PLICSize = uint64(0x400_0000)

	// KernBase is where the boot ROM jumps and the kernel is loaded.
	KernBase = riscv.Addr(0x8000_0000)

	// DefaultMemoryBytes is the RAM size when Config does not say
	// otherwise: 128 MiB above KernBase.
	DefaultMemoryBytes = uint64(128 << 20)
)
