// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package taint

import (
	"fmt"
	"strings"
)

// Opcode is the abstract shape of a decoded instruction.
type Opcode uint8

const (
	// OpReg is a register-to-register move or computation.
	OpReg Opcode = iota
	// OpLoad reads memory into registers.
	OpLoad
	// OpStore writes registers to memory.
	OpStore
	// OpBranch covers branches and every instruction that is not modeled.
	OpBranch

	numOpcodes
)

var opcodeNames = [numOpcodes]string{"REG", "LOAD", "STORE", "BRANCH"}

func (o Opcode) String() string {
	if o < numOpcodes {
		return opcodeNames[o]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(o))
}

// Instr is a decoded instruction.
type Instr struct {
	Op Opcode

	// IP is the address of the instruction.
	IP uint64

	// SrcReg and DstReg are the registers read and written by the instruction.
	SrcReg []Reg
	DstReg []Reg

	// MemReg are the registers used to compute the effective address.
	MemReg []Reg

	// Address is the effective address. Only meaningful for OpLoad and OpStore.
	Address uint64
}

// Reset clears ins and keeps the capacity of its register lists.
func (ins *Instr) Reset() {
	ins.Op = OpBranch
	ins.IP = 0
	ins.SrcReg = ins.SrcReg[:0]
	ins.DstReg = ins.DstReg[:0]
	ins.MemReg = ins.MemReg[:0]
	ins.Address = 0
}

func (ins *Instr) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%#x %-6s", ins.IP, ins.Op)
	writeRegs(&b, "src", ins.SrcReg)
	writeRegs(&b, "dst", ins.DstReg)
	writeRegs(&b, "mem", ins.MemReg)
	if ins.Op == OpLoad || ins.Op == OpStore {
		fmt.Fprintf(&b, " addr=%#x", ins.Address)
	}
	return b.String()
}

func writeRegs(b *strings.Builder, name string, regs []Reg) {
	if len(regs) == 0 {
		return
	}
	fmt.Fprintf(b, " %s=%v", name, regs)
}
