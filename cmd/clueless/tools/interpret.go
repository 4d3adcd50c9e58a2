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

package tools

import "regexp"

// Captures traces that cannot be opened because of their extension
var regexUnsupportedFormat = regexp.MustCompile("unsupported trace format")

// Captures the kind of error that happen when you put a flag at the end instead of trace files
var flagAfterTraces = regexp.MustCompile(`(^|\s)-\w+: unsupported trace format`)

// Captures traces whose last record is truncated
var regexTruncated = regexp.MustCompile("unexpected EOF")

// Captures configuration values out of range
var regexInvalidConfig = regexp.MustCompile("invalid configuration: (labels|registers)")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexUnsupportedFormat.MatchString(errMsg) {
		if flagAfterTraces.MatchString(errMsg) {
			return "all command line flags should be before the paths to the traces"
		}
		return "traces must be ChampSim traces compressed with gzip (.gz), xz (.xz) or zstd (.zst)"
	}
	if regexTruncated.MatchString(errMsg) {
		return "the trace ends in the middle of a record; it may have been truncated during download"
	}
	if regexInvalidConfig.MatchString(errMsg) {
		return "a propagator tracks at most 128 labels and 256 registers"
	}
	return ""
}
