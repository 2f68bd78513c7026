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

package log

import (
	"strings"
	"testing"
	"time"
)

type testSink struct {
	chars []byte
}

func (s *testSink) PutChar(c byte) {
	s.chars = append(s.chars, c)
}

func TestConsoleEmitter(t *testing.T) {
	sink := &testSink{}
	e := &ConsoleEmitter{Sink: sink}
	e.Emit(Info, time.Now(), "hello %d", 42)
	if got, want := string(sink.chars), "hello 42\n"; got != want {
		t.Errorf("got %q, wanted %q", got, want)
	}
}

func TestConsoleEmitterMuted(t *testing.T) {
	sink := &testSink{}
	muted := false
	e := &ConsoleEmitter{Sink: sink, Mute: func() bool { return muted }}
	e.Emit(Info, time.Now(), "first")
	muted = true
	e.Emit(Info, time.Now(), "second")
	if got := string(sink.chars); strings.Contains(got, "second") {
		t.Errorf("muted line was emitted: %q", got)
	}
	if got := string(sink.chars); !strings.Contains(got, "first") {
		t.Errorf("unmuted line was dropped: %q", got)
	}
}

func TestLevels(t *testing.T) {
	sink := &testSink{}
	l := &BasicLogger{Level: Info, Emitter: &ConsoleEmitter{Sink: sink}}
	l.Debugf("dropped")
	l.Infof("kept")
	if got := string(sink.chars); strings.Contains(got, "dropped") {
		t.Errorf("Debug line emitted at Info level: %q", got)
	}
	if !l.IsLogging(Info) {
		t.Error("IsLogging(Info): got false, wanted true")
	}
	if l.IsLogging(Debug) {
		t.Error("IsLogging(Debug): got true, wanted false")
	}
	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Error("IsLogging(Debug) after SetLevel: got false, wanted true")
	}
}

func TestProgressThrottles(t *testing.T) {
	sink := &testSink{}
	base := &BasicLogger{Level: Debug, Emitter: &ConsoleEmitter{Sink: sink}}
	p := NewProgress(base, time.Hour)
	for i := 0; i < 100; i++ {
		p.Infof("page %d", i)
		p.Debugf("detail %d", i)
	}
	// One token for the whole loop; everything past the first call drops.
	if got, want := strings.Count(string(sink.chars), "\n"), 1; got != want {
		t.Errorf("got %d lines, wanted %d", got, want)
	}
}
