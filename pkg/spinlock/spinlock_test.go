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

package spinlock

import (
	"testing"

	"golang.org/x/sync/errgroup"

	"rvkernel.dev/rvkernel/pkg/cpu"
)

func TestMutualExclusion(t *testing.T) {
	const (
		harts      = 8
		iterations = 10000
	)
	cpus := cpu.NewSet(harts)
	var l Lock
	l.Init("counter")

	// Deliberately not atomic; the lock is the only thing keeping the
	// increments from being lost.
	counter := 0

	var eg errgroup.Group
	for id := 0; id < harts; id++ {
		c := cpus.CPU(id)
		eg.Go(func() error {
			for i := 0; i < iterations; i++ {
				g := l.Acquire(c)
				counter++
				g.Release()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatal(err)
	}
	if want := harts * iterations; counter != want {
		t.Errorf("counter: got %d, wanted %d (lost updates)", counter, want)
	}
}

func TestSelfAcquireFatal(t *testing.T) {
	c := cpu.NewSet(1).CPU(0)
	var l Lock
	l.Init("self")
	l.Acquire(c)
	defer func() {
		if recover() == nil {
			t.Error("self-acquire did not fault")
		}
	}()
	l.Acquire(c) // Must abort, not hang.
}

func TestForeignReleaseFatal(t *testing.T) {
	cpus := cpu.NewSet(2)
	var l Lock
	l.Init("foreign")
	g := l.Acquire(cpus.CPU(0))
	stolen := &Guard{lock: &l, c: cpus.CPU(1)}
	defer func() {
		if recover() == nil {
			t.Error("release by a non-owner did not fault")
		}
		g.Release()
	}()
	stolen.Release()
}

func TestUninitializedAcquireFatal(t *testing.T) {
	c := cpu.NewSet(1).CPU(0)
	var l Lock
	defer func() {
		if recover() == nil {
			t.Error("acquire of uninitialized lock did not fault")
		}
	}()
	l.Acquire(c)
}

func TestReinitFatal(t *testing.T) {
	var l Lock
	l.Init("once")
	defer func() {
		if recover() == nil {
			t.Error("reinitialization did not fault")
		}
	}()
	l.Init("twice")
}

func TestInterruptStateRestored(t *testing.T) {
	c := cpu.NewSet(1).CPU(0)
	var a, b Lock
	a.Init("a")
	b.Init("b")

	c.EnableInterrupts()

	// Nested acquires: interrupts stay off until the outermost release.
	ga := a.Acquire(c)
	gb := b.Acquire(c)
	if c.InterruptsEnabled() {
		t.Fatal("interrupts on while holding locks")
	}
	gb.Release()
	if c.InterruptsEnabled() {
		t.Fatal("interrupts restored while outer lock still held")
	}
	ga.Release()
	if !c.InterruptsEnabled() {
		t.Fatal("interrupts not restored after full unwind")
	}

	// And the saved state is per-sequence: with interrupts off before the
	// outermost acquire, nothing gets enabled.
	c2 := cpu.NewSet(1).CPU(0)
	g := a.Acquire(c2)
	g.Release()
	if c2.InterruptsEnabled() {
		t.Fatal("release enabled interrupts that were off before acquire")
	}
}
