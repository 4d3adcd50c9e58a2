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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Options configure a Reader.
type Options struct {
	// Rewind restarts the trace from its first record when the end is reached, instead of returning io.EOF.
	Rewind bool

	// OnRewind, if non-nil, is called every time the trace restarts.
	OnRewind func(path string)
}

// Reader reads the records of a compressed trace file, one at a time.
type Reader struct {
	path   string
	format Format
	opts   Options

	file *os.File
	dec  io.ReadCloser
	buf  *bufio.Reader
	rec  [RecordSize]byte

	// records read since the file was last opened
	read    uint64
	rewinds int
}

// Open opens the trace file at path. The decompressor is chosen from the file extension.
func Open(path string, opts Options) (*Reader, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{path: path, format: format, opts: opts}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the path of the trace file.
func (r *Reader) Path() string { return r.path }

// Rewinds returns the number of times the trace restarted.
func (r *Reader) Rewinds() int { return r.rewinds }

// ReadSingleInstr returns the next record of the trace.
//
// At the end of the trace, it restarts from the beginning if the reader was opened with Rewind, and returns io.EOF
// otherwise. An empty trace always returns io.EOF. A truncated last record is reported as io.ErrUnexpectedEOF.
func (r *Reader) ReadSingleInstr() (Record, error) {
	var rec Record
	err := r.next(&rec)
	if errors.Is(err, io.EOF) && r.opts.Rewind && r.read > 0 {
		if err = r.Rewind(); err != nil {
			return rec, err
		}
		err = r.next(&rec)
	}
	return rec, err
}

// Skip reads and discards n records.
func (r *Reader) Skip(n uint64) error {
	for i := uint64(0); i < n; i++ {
		if _, err := r.ReadSingleInstr(); err != nil {
			return err
		}
	}
	return nil
}

// Rewind closes and reopens the trace file.
func (r *Reader) Rewind() error {
	if err := r.Close(); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}
	r.rewinds++
	if r.opts.OnRewind != nil {
		r.opts.OnRewind(r.path)
	}
	return nil
}

// Close releases the file and the decompressor.
func (r *Reader) Close() error {
	var err error
	if r.dec != nil {
		err = r.dec.Close()
		r.dec = nil
	}
	if r.file != nil {
		if cerr := r.file.Close(); err == nil {
			err = cerr
		}
		r.file = nil
	}
	return err
}

func (r *Reader) open() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("cannot open trace file: %w", err)
	}
	dec, err := decompress(r.format, bufio.NewReader(f))
	if err != nil {
		f.Close()
		return fmt.Errorf("cannot decompress %s as %s: %w", r.path, r.format, err)
	}
	r.file = f
	r.dec = dec
	r.buf = bufio.NewReaderSize(dec, 64*RecordSize)
	r.read = 0
	return nil
}

func (r *Reader) next(rec *Record) error {
	if r.buf == nil {
		return os.ErrClosed
	}
	if _, err := io.ReadFull(r.buf, r.rec[:]); err != nil {
		return err
	}
	r.read++
	return rec.UnmarshalBinary(r.rec[:])
}
