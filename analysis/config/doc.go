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
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type and its embedded [Options]. Every field is optional; fields not set keep the value of [NewDefault].
For example, a valid config file is as follows:

	log-level: 4
	labels: 64
	warmup: 1000000
	simulate: 50000000
	heartbeat: 1000000
	rewind: false
	watch:
	  - start: 0x7ffff7dd0000
	    size: 4096
	memory-taint:
	  sets: 1024
	  ways: 8
	reports-dir: reports
	plot: heartbeat.html
	metrics-addr: ":9090"

# Logging

[NewLogGroup] returns a group of leveled loggers (error, warning, info, debug, trace) filtered by the log-level
option. Debug and trace levels are meant for short traces only.
*/
package config
