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

package formatutil

import "testing"

func TestColors(t *testing.T) {
	defer SetColors(colors.Load())

	SetColors(false)
	if s := Red("leak ", 3); s != "leak 3" {
		t.Errorf("uncolored output %q", s)
	}
	SetColors(true)
	if s := Bold("ins"); s != "\033[1mins\033[0m" {
		t.Errorf("colored output %q", s)
	}
}

func TestSanitize(t *testing.T) {
	if s := Sanitize("trace\033[2J.gz"); s != `trace\x1b[2J.gz` {
		t.Errorf("Sanitize returned %q", s)
	}
}
