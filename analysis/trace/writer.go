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
	"fmt"
	"io"
	"os"
)

// Writer writes records to a compressed trace.
type Writer struct {
	file *os.File
	enc  io.WriteCloser
	buf  *bufio.Writer
	rec  []byte
	n    uint64
}

// Create creates the trace file at path, compressed according to its extension.
func Create(path string) (*Writer, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot create trace file: %w", err)
	}
	w, err := NewWriter(f, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.file = f
	return w, nil
}

// NewWriter returns a writer compressing records to out. Closing the writer does not close out.
func NewWriter(out io.Writer, format Format) (*Writer, error) {
	enc, err := compress(format, out)
	if err != nil {
		return nil, fmt.Errorf("cannot compress as %s: %w", format, err)
	}
	return &Writer{enc: enc, buf: bufio.NewWriter(enc), rec: make([]byte, 0, RecordSize)}, nil
}

// Write appends rec to the trace.
func (w *Writer) Write(rec *Record) error {
	w.rec = rec.AppendBinary(w.rec[:0])
	if _, err := w.buf.Write(w.rec); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() uint64 { return w.n }

// Close flushes the trace and closes the file if the writer created it.
func (w *Writer) Close() error {
	err := w.buf.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if w.file != nil {
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
