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

package main

import (
	"fmt"
	"os"

	"github.com/FabianWe/tessera"
	log "github.com/sirupsen/logrus"
)

// logLevelEnv overrides the log level, for example "debug" or "warn".
const logLevelEnv = "TESSERA_LOG_LEVEL"

func setupLogging(verbose bool) error {
	log.SetOutput(os.Stderr)
	level := log.InfoLevel
	if s := os.Getenv(logLevelEnv); s != "" {
		parsed, err := log.ParseLevel(s)
		if err != nil {
			return fmt.Errorf("Invalid value for %s: %w", logLevelEnv, err)
		}
		level = parsed
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	return nil
}

// splitVerbose removes the verbose flags from args, they're accepted at any
// position.
func splitVerbose(args []string) ([]string, bool) {
	rest := make([]string, 0, len(args))
	verbose := false
	for _, arg := range args {
		switch arg {
		case "-v", "--verbose", "-verbose":
			verbose = true
		default:
			rest = append(rest, arg)
		}
	}
	return rest, verbose
}

func main() {
	args, verbose := splitVerbose(os.Args[1:])
	if err := setupLogging(verbose); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	state, err := tessera.NewExecutorState(os.Stdout, verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: Unable to retrieve path:", err)
		os.Exit(1)
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage:", os.Args[0], "[--verbose] <command> [args]")
		fmt.Fprintln(os.Stderr)
		state.Out = os.Stderr
		tessera.HelpCommand(state)
		os.Exit(1)
	}
	if err := tessera.DefaultCommands.Run(state, args[0], args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
