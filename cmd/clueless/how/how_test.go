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

package how

import (
	"bytes"
	"testing"

	"github.com/clueless-dift/clueless/internal/analysistest"
	"github.com/clueless-dift/clueless/internal/formatutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader(t *testing.T) {
	assert.Equal(t, []string{"ins", "lvl0", "lvl1", "lvl2", "lvl3+", "t1", "t2", "t3", "t4", "t5", "t6", "t7", "t8+",
		"gtt", "all"}, header())
}

func TestHow(t *testing.T) {
	formatutil.SetColors(false)
	cfg, logger := analysistest.LoadTest(t, analysistest.Dir("chase"))
	cfg.Heartbeat = 100
	path := analysistest.TraceFile(t, "chase", ".xz")

	var out bytes.Buffer
	require.NoError(t, run(cfg, logger, []string{path}, &out))
	lines := analysistest.Lines(out.String())

	// 0x3000 and 0x4000 are exposed together after a register move, by a store to 0x5000
	require.Len(t, lines, 4)
	assert.Equal(t, "0 0 0 0 0 0 0 0 0 0 0 0 0 0 0", lines[2])
	assert.Equal(t, "14 6 2 0 0 4 2 0 0 0 0 0 0 8 12", lines[3])
}
