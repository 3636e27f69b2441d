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
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ConfigError is returned if dimensions or options are invalid or
// inconsistent, for example a grid that can't be divided into the requested
// number of sheets. It is always returned before any work begins.
type ConfigError struct {
	Field string
	Msg   string
}

func (err *ConfigError) Error() string {
	if err.Field == "" {
		return "Invalid configuration: " + err.Msg
	}
	return fmt.Sprintf("Invalid configuration for %s: %s", err.Field, err.Msg)
}

// DataError is returned if the input data can't be used at all: An empty
// reference collection, an unreadable target image or a grid descriptor that
// doesn't describe a complete grid.
type DataError struct {
	Msg string
	Err error
}

func (err *DataError) Error() string {
	if err.Err == nil {
		return "Invalid data: " + err.Msg
	}
	return fmt.Sprintf("Invalid data: %s: %s", err.Msg, err.Err.Error())
}

func (err *DataError) Unwrap() error {
	return err.Err
}

func newDataError(err error, format string, args ...interface{}) *DataError {
	return &DataError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// IsConfigError reports whether err (or any error it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsDataError reports whether err (or any error it wraps) is a DataError.
func IsDataError(err error) bool {
	var target *DataError
	return errors.As(err, &target)
}

// WarningKind describes the non-fatal conditions that are collected during
// a run.
type WarningKind int

const (
	// MissingResource is used if a reference tile, a tile file or a sheet file
	// is absent or can't be decoded.
	MissingResource WarningKind = iota
	// Fidelity is used if a sampled checksum comparison failed.
	Fidelity
)

func (kind WarningKind) String() string {
	switch kind {
	case MissingResource:
		return "MissingResourceWarning"
	case Fidelity:
		return "FidelityWarning"
	default:
		return fmt.Sprintf("WarningKind(%d)", int(kind))
	}
}

// Warning is a single non-fatal condition.
type Warning struct {
	Kind     WarningKind
	Resource string
	Msg      string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Resource, w.Msg)
}

// Warnings collects warnings from concurrent workers. Every warning is logged
// when it is added.
//
// The zero value is ready to use, a nil *Warnings only logs.
type Warnings struct {
	mutex sync.Mutex
	list  []Warning
}

// Add records a new warning.
func (ws *Warnings) Add(kind WarningKind, resource, format string, args ...interface{}) {
	w := Warning{Kind: kind, Resource: resource, Msg: fmt.Sprintf(format, args...)}
	log.WithFields(log.Fields{
		"kind":     kind.String(),
		"resource": resource,
	}).Warn(w.Msg)
	if ws == nil {
		return
	}
	ws.mutex.Lock()
	ws.list = append(ws.list, w)
	ws.mutex.Unlock()
}

// List returns a copy of all recorded warnings.
func (ws *Warnings) List() []Warning {
	if ws == nil {
		return nil
	}
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	res := make([]Warning, len(ws.list))
	copy(res, ws.list)
	return res
}

// Count returns the number of warnings of the given kind.
func (ws *Warnings) Count(kind WarningKind) int {
	res := 0
	for _, w := range ws.List() {
		if w.Kind == kind {
			res++
		}
	}
	return res
}

// Len returns the number of recorded warnings.
func (ws *Warnings) Len() int {
	if ws == nil {
		return 0
	}
	ws.mutex.Lock()
	defer ws.mutex.Unlock()
	return len(ws.list)
}

// LogSummary writes a summary of all warnings to the log. It is called at the
// end of each command.
func (ws *Warnings) LogSummary(prefix string) {
	list := ws.List()
	if len(list) == 0 {
		log.Infof("%s: finished without warnings", prefix)
		return
	}
	log.WithFields(log.Fields{
		"missing":  ws.Count(MissingResource),
		"fidelity": ws.Count(Fidelity),
	}).Warnf("%s: finished with %d warning(s)", prefix, len(list))
	for _, w := range list {
		log.Debug(w.String())
	}
}
