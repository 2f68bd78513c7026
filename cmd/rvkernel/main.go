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

// Binary rvkernel boots the simulated machine: one goroutine per hart, all
// running the memory core's boot sequence, then a short allocation workload
// on every hart. With -dump the kernel page tables are printed afterward.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"rvkernel.dev/rvkernel/pkg/kernel"
	"rvkernel.dev/rvkernel/pkg/log"
	"rvkernel.dev/rvkernel/pkg/riscv"
)

// Flags.
var (
	harts    = flag.Int("harts", 4, "number of harts to boot")
	memMiB   = flag.Uint64("mem", 128, "RAM size in MiB above the kernel load address")
	textKiB  = flag.Uint64("text", 64, "size of the kernel text segment in KiB")
	imageKiB = flag.Uint64("image", 128, "size of the whole kernel image in KiB")
	dump     = flag.Bool("dump", false, "dump the kernel page tables after boot")
	debug    = flag.Bool("debug", false, "enable debug logging")
)

// stdoutSink feeds the log's console boundary one byte at a time.
type stdoutSink struct{}

func (stdoutSink) PutChar(c byte) {
	os.Stdout.Write([]byte{c})
}

func main() {
	if err := run(); err != nil {
		log.Warningf("%v", err)
		os.Exit(1)
	}
}

// run is basically a main function that can return errors.
func run() error {
	flag.Parse()

	k, err := kernel.New(kernel.Config{
		Harts:       *harts,
		MemoryBytes: *memMiB << 20,
		TextEnd:     kernel.KernBase + riscv.Addr(*textKiB<<10),
		KernelEnd:   kernel.KernBase + riscv.Addr(*imageKiB<<10),
	})
	if err != nil {
		return err
	}
	defer k.Destroy()

	log.SetTarget(&log.ConsoleEmitter{Sink: stdoutSink{}, Mute: k.Faulted})
	if *debug {
		log.SetLevel(log.Debug)
	}

	var eg errgroup.Group
	for id := 0; id < *harts; id++ {
		id := id
		eg.Go(func() error {
			k.Boot(id)

			// A little post-boot churn to show the allocator working
			// from every hart.
			c := k.CPUs().CPU(id)
			for i := 0; i < 1000; i++ {
				pa, ok := k.Allocator().Alloc(c)
				if !ok {
					return fmt.Errorf("cpu%d: out of memory", id)
				}
				k.Allocator().Free(c, pa)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	c0 := k.CPUs().CPU(0)
	log.Infof("%d harts up, %d pages free, satp %#x",
		*harts, k.Allocator().FreePages(), c0.SATP())

	if *dump {
		log.SetLevel(log.Debug)
		k.PageTables().Dump(log.Log())
	}
	return nil
}
