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

package config

const (
	// MaxLabels is the largest number of taint labels
	MaxLabels = 128
	// MaxRegisters is the largest number of register slots
	MaxRegisters = 256
	// DefaultLabels is the number of taint labels when the config does not set it
	DefaultLabels = MaxLabels
	// DefaultRegisters is the number of register slots when the config does not set it
	DefaultRegisters = MaxRegisters
	// DefaultSimulate is the default number of instructions tracked
	DefaultSimulate = 10000000
	// DefaultHeartbeat is the default number of instructions between two heartbeats
	DefaultHeartbeat = 100000
	// DefaultReportThreshold is the default number of versions above which a leaked address is listed
	DefaultReportThreshold = 100000
	// DefaultCacheWays is the associativity of the memory taint cache when only the number of sets is given
	DefaultCacheWays = 8
	// DefaultBlockBits is the default block size (64 bytes) of the reuse distance analysis
	DefaultBlockBits = 6
	// DefaultReuseSamples is the default number of reuse distances kept per block
	DefaultReuseSamples = 10
)
