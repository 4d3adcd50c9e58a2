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

import "fmt"

// SecretExposed describes a tainted value used to compute a memory address.
type SecretExposed struct {
	// Label is the label that was exposed. It is freed right after the hooks run.
	Label Label

	// SecretAddress is the address of the load that allocated the label, and AccessIP its instruction pointer.
	SecretAddress uint64
	AccessIP      uint64

	// TransmitAddress is the address computed from the tainted value, and TransmitIP the instruction computing it.
	TransmitAddress uint64
	TransmitIP      uint64

	// Depth is the number of register-to-register steps between the load and the exposure.
	Depth uint8

	// Indirect is true when Depth > 0, i.e. the loaded value was transformed before being used as an address.
	Indirect bool
}

func (e SecretExposed) String() string {
	return fmt.Sprintf("label %d: secret %#x (ip %#x) -> transmit %#x (ip %#x), depth %d",
		e.Label, e.SecretAddress, e.AccessIP, e.TransmitAddress, e.TransmitIP, e.Depth)
}

// A SecretExposedHook is notified of every exposure, synchronously, from within Propagate.
// Implementations must not call back into the Propagator.
type SecretExposedHook interface {
	OnSecretExposed(SecretExposed)
}

// SecretExposedFunc adapts a function to a SecretExposedHook.
type SecretExposedFunc func(SecretExposed)

// OnSecretExposed calls f(e).
func (f SecretExposedFunc) OnSecretExposed(e SecretExposed) { f(e) }

// A TaintExhaustedHook is notified when every label is in use and the label passed as argument has been evicted
// to satisfy a new allocation.
type TaintExhaustedHook interface {
	OnTaintExhausted(Label)
}

// TaintExhaustedFunc adapts a function to a TaintExhaustedHook.
type TaintExhaustedFunc func(Label)

// OnTaintExhausted calls f(l).
func (f TaintExhaustedFunc) OnTaintExhausted(l Label) { f(l) }
