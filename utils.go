// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tessera

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

var (
	// BufferSize is the (default) size of buffers. Some methods create buffered
	// channels, this parameter controls how big such buffers might be.
	// Usually such buffers store no big data (ints, bools etc.).
	BufferSize = 1000
)

// ProgressFunc is a function that is used to inform a caller about the progress
// of a called function.
// For example if we process thousands of tiles we might wish to know
// how far the call is and give feedback to the user.
// The called method calls the process function after each iteration.
type ProgressFunc func(num int)

// ProgressIgnore is a ProgressFunc that does nothing.
func ProgressIgnore(num int) {}

// LoggerProgressFunc is a parameterized ProgressFunc that logs to log.
// The output describes the progress (how many of how many objects processed).
// Log messages may have an addition prefix. max is the total number of elements
// to process and step describes how often to print to the log (for example
// step = 100 every 100 items).
func LoggerProgressFunc(prefix string, max, step int) ProgressFunc {
	return func(num int) {
		if msg, ok := progressMessage(prefix, num, max, step); ok {
			log.Info(msg)
		}
	}
}

// StdProgressFunc works as LoggerProgressFunc but writes to w.
func StdProgressFunc(w io.Writer, prefix string, max, step int) ProgressFunc {
	return func(num int) {
		if msg, ok := progressMessage(prefix, num, max, step); ok {
			fmt.Fprintln(w, msg)
		}
	}
}

func progressMessage(prefix string, num, max, step int) (string, bool) {
	if step == 0 || max == 0 {
		return "", false
	}
	if !(step < 0 || num%step == 0 || num == max) {
		return "", false
	}
	percent := (float64(num) / float64(max)) * 100.0
	if percent > 100.0 {
		percent = 100.0
	}
	if prefix == "" {
		prefix = "Progress"
	}
	return fmt.Sprintf("%s: %d of %d (%.1f%%)", prefix, num, max, percent), true
}

// KeepRatioHeight computes the new height given the original width and height
// s.t. the ration remains unchanged. The original values must be > 0.
func KeepRatioHeight(originalWidth, originalHeight, width int) int {
	return int(float64(width*originalHeight) / float64(originalWidth))
}
