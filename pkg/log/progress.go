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
	"time"

	"golang.org/x/time/rate"
)

// A Progress throttles a stream of repetitive messages, letting one through
// per interval and dropping the rest. Page-by-page boot loops use it so the
// console stays readable at the debug level on a one-byte-at-a-time sink.
type Progress struct {
	logger Logger
	limit  *rate.Limiter
}

// NewProgress returns a Progress writing to logger at most once per every.
// A nil logger means the global logger.
func NewProgress(logger Logger, every time.Duration) *Progress {
	if logger == nil {
		logger = Log()
	}
	return &Progress{
		logger: logger,
		limit:  rate.NewLimiter(rate.Every(every), 1),
	}
}

// Debugf logs at the debug level when the limiter allows it.
func (p *Progress) Debugf(format string, v ...any) {
	if p.limit.Allow() {
		p.logger.Debugf(format, v...)
	}
}

// Infof logs at the info level when the limiter allows it.
func (p *Progress) Infof(format string, v ...any) {
	if p.limit.Allow() {
		p.logger.Infof(format, v...)
	}
}
