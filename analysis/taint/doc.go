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

/*
Package taint implements the dynamic information-flow tracking engine. A [Propagator] consumes one decoded
instruction ([Instr]) at a time and moves, merges and retires taint labels in a fixed-capacity register table
([RegTable]). Labels are a scarce resource: at most [MaxLabels] of them exist, and when all of them are held the
least-recently allocated label is evicted (see [Queue]).

Every LOAD allocates a fresh label that remembers the effective address and instruction pointer that created it.
When a tainted register is later used to compute a memory address, the propagator reports a [SecretExposed] event
to every registered [SecretExposedHook]: the value loaded from the secret address now influences another address.
Evictions are reported to [TaintExhaustedHook] subscribers so that clients can treat their counts as lower bounds.

Two optional extensions are supported through [Options]: a [WatchSet] restricting label allocation to loads from
watched address ranges, and a set-associative memory taint [Cache] that carries taint through stores and loads.

The package has no global state and never logs. A Propagator is not safe for concurrent use; independent trace
segments each need their own Propagator, and taint does not flow between them.

Precondition violations (a label or register outside the configured capacity) are programming errors in the
caller and cause a panic.
*/
package taint
