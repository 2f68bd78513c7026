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

package pagetables

import (
	"rvkernel.dev/rvkernel/pkg/log"
	"rvkernel.dev/rvkernel/pkg/riscv"
)

// Dump logs every valid entry at all three levels, indented by depth.
// Diagnostics only; the traversal mutates nothing.
func (p *PageTables) Dump(logger log.Logger) {
	p.dumpTable(logger, p.root, riscv.Levels-1, "")
}

func (p *PageTables) dumpTable(logger log.Logger, table riscv.Addr, level int, indent string) {
	for i := uint16(0); i < riscv.EntriesPerTable; i++ {
		pte := p.entrySlot(table, i).Load()
		if !pte.Valid() {
			continue
		}
		logger.Debugf("%s%d -> %#x : %#b", indent, i, pte.Address(), pte.Flags())
		if level > 0 && !pte.Leaf() {
			p.dumpTable(logger, pte.Address(), level-1, indent+"   ")
		}
	}
}
