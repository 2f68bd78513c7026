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
	"fmt"
	"time"
)

// CharSink is the console collaborator: something that can write one
// character at a time, like a UART transmit register. It is the only output
// boundary the memory core has.
type CharSink interface {
	// PutChar writes a single byte to the console.
	PutChar(c byte)
}

// ConsoleEmitter renders each log line and pushes it through a CharSink one
// byte at a time.
type ConsoleEmitter struct {
	// Sink receives every rendered byte in order.
	Sink CharSink

	// Mute, if non-nil, is consulted before each line; when it returns
	// true the line is dropped. The kernel wires this to its faulted
	// flag so a panicking core keeps the console to itself.
	Mute func() bool
}

// Emit implements Emitter.Emit.
func (c *ConsoleEmitter) Emit(level Level, timestamp time.Time, format string, args ...any) {
	if c.Mute != nil && c.Mute() {
		return
	}
	line := fmt.Sprintf(format, args...)
	for i := 0; i < len(line); i++ {
		c.Sink.PutChar(line[i])
	}
	c.Sink.PutChar('\n')
}
