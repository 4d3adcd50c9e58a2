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

package trace

import (
	"encoding/binary"
	"fmt"
)

const (
	// NumDestinations is the number of destination register and memory operands of a record.
	NumDestinations = 2
	// NumSources is the number of source register and memory operands of a record.
	NumSources = 4

	// RecordSize is the size in bytes of an encoded record.
	RecordSize = 8 + 2 + NumDestinations + NumSources + 8*NumDestinations + 8*NumSources
)

// offsets in the encoded record
const (
	offIP          = 0
	offIsBranch    = 8
	offBranchTaken = 9
	offDstRegs     = 10
	offSrcRegs     = offDstRegs + NumDestinations
	offDstMem      = offSrcRegs + NumSources
	offSrcMem      = offDstMem + 8*NumDestinations
)

// Record is one instruction of a ChampSim trace. A zero register or memory operand means the slot is unused.
type Record struct {
	IP uint64

	IsBranch    bool
	BranchTaken bool

	DestinationRegisters [NumDestinations]uint8
	SourceRegisters      [NumSources]uint8

	DestinationMemory [NumDestinations]uint64
	SourceMemory      [NumSources]uint64
}

// AppendBinary appends the little endian encoding of r to b.
func (r *Record) AppendBinary(b []byte) []byte {
	var buf [RecordSize]byte
	r.encode(buf[:])
	return append(b, buf[:]...)
}

// MarshalBinary returns the encoding of r.
func (r *Record) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(make([]byte, 0, RecordSize)), nil
}

// UnmarshalBinary decodes r from the first RecordSize bytes of b.
func (r *Record) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return fmt.Errorf("trace record: need %d bytes, got %d", RecordSize, len(b))
	}
	r.IP = binary.LittleEndian.Uint64(b[offIP:])
	r.IsBranch = b[offIsBranch] != 0
	r.BranchTaken = b[offBranchTaken] != 0
	copy(r.DestinationRegisters[:], b[offDstRegs:offSrcRegs])
	copy(r.SourceRegisters[:], b[offSrcRegs:offDstMem])
	for i := range r.DestinationMemory {
		r.DestinationMemory[i] = binary.LittleEndian.Uint64(b[offDstMem+8*i:])
	}
	for i := range r.SourceMemory {
		r.SourceMemory[i] = binary.LittleEndian.Uint64(b[offSrcMem+8*i:])
	}
	return nil
}

func (r *Record) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[offIP:], r.IP)
	b[offIsBranch] = boolByte(r.IsBranch)
	b[offBranchTaken] = boolByte(r.BranchTaken)
	copy(b[offDstRegs:offSrcRegs], r.DestinationRegisters[:])
	copy(b[offSrcRegs:offDstMem], r.SourceRegisters[:])
	for i, m := range r.DestinationMemory {
		binary.LittleEndian.PutUint64(b[offDstMem+8*i:], m)
	}
	for i, m := range r.SourceMemory {
		binary.LittleEndian.PutUint64(b[offSrcMem+8*i:], m)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (r *Record) String() string {
	return fmt.Sprintf("ip=%#x branch=%t taken=%t dreg=%v sreg=%v dmem=%#x smem=%#x",
		r.IP, r.IsBranch, r.BranchTaken, r.DestinationRegisters, r.SourceRegisters,
		r.DestinationMemory, r.SourceMemory)
}
