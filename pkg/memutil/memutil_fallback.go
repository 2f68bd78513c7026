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

//go:build !linux

package memutil

import "fmt"

// MapAnon returns a zero-filled buffer of the given size. Without mmap the
// backing is an ordinary heap allocation; alignment of the backing itself
// does not matter because all addressing inside it is offset-based.
func MapAnon(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid mapping size %d", size)
	}
	return make([]byte, size), nil
}

// Unmap releases a buffer returned by MapAnon.
func Unmap(slice []byte) error {
	return nil
}
