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

// Package reuse samples the reuse distance of the memory blocks holding leaked secrets.
//
// The clock advances on every memory access. The distance between two accesses to a block is the number of memory
// accesses to other addresses in between. Each block keeps its smallest distances: a new distance replaces the
// largest sample when it is smaller.
package reuse

import (
	"math"

	"github.com/clueless-dift/clueless/analysis/taint"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Unused is the value of a distance sample that has never been filled.
const Unused = math.MaxUint64

// Block is the sampling state of a memory block.
type Block struct {
	Distances []uint64
	Timestamp uint64
	Accesses  uint64
}

// Stats summarizes the distances of a block. Unused samples count as distances of Unused.
type Stats struct {
	// Address is the first address of the block
	Address  uint64
	Mean     float64
	Min      float64
	Max      float64
	StdDev   float64
	Accesses uint64
}

// Sampler implements taint.SecretExposedHook and the session's Observer interface.
type Sampler struct {
	blockBits uint
	samples   int
	blocks    map[uint64]*Block
	clock     uint64
}

// NewSampler returns a sampler where block addresses are addresses shifted right by blockBits, keeping samples
// distances per block.
func NewSampler(blockBits uint, samples int) *Sampler {
	if samples < 1 {
		panic("reuse: at least one sample per block is needed")
	}
	return &Sampler{
		blockBits: blockBits,
		samples:   samples,
		blocks:    map[uint64]*Block{},
	}
}

// BlockOf returns the block address of addr.
func (s *Sampler) BlockOf(addr uint64) uint64 {
	return addr >> s.blockBits
}

// OnSecretExposed starts sampling the block of the secret address, if it is not sampled yet.
func (s *Sampler) OnSecretExposed(e taint.SecretExposed) {
	b := s.BlockOf(e.SecretAddress)
	if _, ok := s.blocks[b]; ok {
		return
	}
	d := make([]uint64, s.samples)
	for i := range d {
		d[i] = Unused
	}
	s.blocks[b] = &Block{Distances: d, Timestamp: s.clock, Accesses: 1}
}

// OnInstr advances the clock on memory accesses and samples the distance if the accessed block is sampled.
func (s *Sampler) OnInstr(_ uint64, ins *taint.Instr) {
	if ins.Op != taint.OpLoad && ins.Op != taint.OpStore {
		return
	}
	s.clock++
	blk, ok := s.blocks[s.BlockOf(ins.Address)]
	if !ok {
		return
	}
	dist := s.clock - blk.Timestamp - 1
	largest := 0
	for i, d := range blk.Distances {
		if d > blk.Distances[largest] {
			largest = i
		}
	}
	if dist < blk.Distances[largest] {
		blk.Distances[largest] = dist
	}
	blk.Timestamp = s.clock
	blk.Accesses++
}

// Clock returns the number of memory accesses seen.
func (s *Sampler) Clock() uint64 {
	return s.clock
}

// Len returns the number of sampled blocks.
func (s *Sampler) Len() int {
	return len(s.blocks)
}

// Block returns the state of the block of addr, and false if it is not sampled.
func (s *Sampler) Block(addr uint64) (Block, bool) {
	b, ok := s.blocks[s.BlockOf(addr)]
	if !ok {
		return Block{}, false
	}
	return Block{Distances: slices.Clone(b.Distances), Timestamp: b.Timestamp, Accesses: b.Accesses}, true
}

// Report returns the statistics of every sampled block, by increasing address.
func (s *Sampler) Report() []Stats {
	keys := maps.Keys(s.blocks)
	slices.Sort(keys)
	report := make([]Stats, 0, len(keys))
	xs := make([]float64, s.samples)
	for _, k := range keys {
		b := s.blocks[k]
		for i, d := range b.Distances {
			xs[i] = float64(d)
		}
		mean, std := stat.PopMeanStdDev(xs, nil)
		report = append(report, Stats{
			Address:  k << s.blockBits,
			Mean:     mean,
			Min:      floats.Min(xs),
			Max:      floats.Max(xs),
			StdDev:   std,
			Accesses: b.Accesses,
		})
	}
	return report
}
