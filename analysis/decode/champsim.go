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

// Package decode turns trace records into the instructions understood by the taint propagator.
package decode

import (
	"github.com/clueless-dift/clueless/analysis/taint"
	"github.com/clueless-dift/clueless/analysis/trace"
	"golang.org/x/exp/slices"
)

// ChampSim register ids with a special meaning. Register 0 is "no register".
const (
	RegStackPointer       taint.Reg = 6
	RegFlags              taint.Reg = 25
	RegInstructionPointer taint.Reg = 26
	regNone               taint.Reg = 0
)

// A Decoder turns a trace record into an instruction. The returned instruction is only valid until the next call.
type Decoder interface {
	Decode(rec *trace.Record) *taint.Instr
}

// ChampSim decodes ChampSim trace records. A ChampSim decoder reuses one instruction buffer and must not be shared
// between sessions.
type ChampSim struct {
	ins taint.Instr
}

// NewChampSim returns a decoder with an empty instruction buffer.
func NewChampSim() *ChampSim {
	return &ChampSim{ins: taint.Instr{
		SrcReg: make([]taint.Reg, 0, trace.NumSources),
		DstReg: make([]taint.Reg, 0, trace.NumDestinations),
		MemReg: make([]taint.Reg, 0, trace.NumSources),
	}}
}

// Decode returns the instruction of rec.
//
// Records reading memory are loads, records writing memory are stores, and records without memory operands are
// register operations. Branches and records that both read and write memory (e.g. add [rcx], rax) are decoded as
// OpBranch and therefore not propagated.
func (d *ChampSim) Decode(rec *trace.Record) *taint.Instr {
	ins := &d.ins
	ins.Reset()
	ins.IP = rec.IP

	if rec.IsBranch {
		return ins
	}

	srcMem := rec.SourceMemory[0]
	dstMem := rec.DestinationMemory[0]

	switch {
	case srcMem == 0 && dstMem == 0:
		ins.Op = taint.OpReg
		ins.SrcReg = appendTracked(ins.SrcReg, rec.SourceRegisters[:], nil)
		ins.DstReg = appendTracked(ins.DstReg, rec.DestinationRegisters[:], nil)

	case dstMem == 0:
		ins.Op = taint.OpLoad
		// a source that is also overwritten is the loaded value, not part of the address
		ins.MemReg = appendTracked(ins.MemReg, rec.SourceRegisters[:], rec.DestinationRegisters[:])
		ins.DstReg = appendTracked(ins.DstReg, rec.DestinationRegisters[:], nil)
		ins.Address = srcMem

	case srcMem == 0:
		ins.Op = taint.OpStore
		ins.SrcReg = appendTracked(ins.SrcReg, rec.SourceRegisters[:], nil)
		if isPushOrCall(rec) {
			ins.MemReg = append(ins.MemReg, RegStackPointer)
		} else {
			ins.MemReg = appendTracked(ins.MemReg, rec.SourceRegisters[:], nil)
		}
		ins.Address = dstMem
	}
	return ins
}

// isPushOrCall reports whether a store also writes a register, which ChampSim only records for the stack pointer
// update of push and call.
func isPushOrCall(rec *trace.Record) bool {
	for _, r := range rec.DestinationRegisters {
		if taint.Reg(r) != regNone {
			return true
		}
	}
	return false
}

// Tracked reports whether the propagator tracks register r.
func Tracked(r taint.Reg) bool {
	return r != regNone && r != RegFlags && r != RegInstructionPointer
}

func appendTracked(dst []taint.Reg, regs []uint8, exclude []uint8) []taint.Reg {
	for _, r := range regs {
		if Tracked(taint.Reg(r)) && !slices.Contains(exclude, r) {
			dst = append(dst, taint.Reg(r))
		}
	}
	return dst
}
