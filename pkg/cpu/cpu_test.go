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

package cpu

import "testing"

func TestPushPopRestoresState(t *testing.T) {
	c := NewSet(1).CPU(0)
	c.EnableInterrupts()

	c.PushOff()
	if c.InterruptsEnabled() {
		t.Fatal("interrupts on inside PushOff")
	}
	c.PushOff()
	c.PushOff()
	c.PopOff()
	c.PopOff()
	if c.InterruptsEnabled() {
		t.Fatal("interrupts restored before the outermost PopOff")
	}
	c.PopOff()
	if !c.InterruptsEnabled() {
		t.Fatal("interrupts not restored after the outermost PopOff")
	}
}

func TestPushPopWithInterruptsOff(t *testing.T) {
	c := NewSet(1).CPU(0)
	c.PushOff()
	c.PopOff()
	if c.InterruptsEnabled() {
		t.Fatal("PopOff enabled interrupts that were off before PushOff")
	}
}

func TestUnbalancedPopOff(t *testing.T) {
	c := NewSet(1).CPU(0)
	defer func() {
		if recover() == nil {
			t.Error("unbalanced PopOff did not fault")
		}
	}()
	c.PopOff()
}

func TestEnableInterruptsInsideCriticalSection(t *testing.T) {
	c := NewSet(1).CPU(0)
	c.PushOff()
	defer func() {
		if recover() == nil {
			t.Error("EnableInterrupts inside a disable section did not fault")
		}
	}()
	c.EnableInterrupts()
}

func TestSetLookup(t *testing.T) {
	s := NewSet(4)
	if s.Len() != 4 {
		t.Fatalf("Len: got %d, wanted 4", s.Len())
	}
	for i := 0; i < 4; i++ {
		if got := s.CPU(i).ID(); got != i {
			t.Errorf("CPU(%d).ID(): got %d", i, got)
		}
	}
	defer func() {
		if recover() == nil {
			t.Error("out-of-range hart lookup did not fault")
		}
	}()
	s.CPU(4)
}
