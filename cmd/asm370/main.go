// Copyright (C) 2021  Antonio Lassandro

// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU General Public License as published by the Free
// Software Foundation, either version 3 of the License, or (at your option)
// any later version.

// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public License for
// more details.

// You should have received a copy of the GNU General Public License along
// with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

// Exit codes past the assembler return codes
const (
	EXIT_FATAL = 16
	EXIT_USAGE = 20
)

var exitCode int

var rootCmd = &cobra.Command{
	Use:   "asm370",
	Short: "System/370 assembler producing relocatable object decks",
	Long: `asm370 assembles fixed format System/370 source into 80 byte
ESD/TXT/RLD/END object records.

Commands:
  assemble  Assemble a source file into an object deck
  dump      Print the records of an object deck
`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Values already came through cobra; this only marks the set parsed
		flag.CommandLine.Parse([]string{})
	},
}

func init() {
	exe, _ := os.Executable()
	log.SetFlags(0)
	log.SetPrefix(fmt.Sprintf("%s: ", filepath.Base(exe)))
	log.SetOutput(os.Stderr)
}

func init() {
	// glog registers its flags on the standard flag set
	flag.CommandLine.Set("logtostderr", "true")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.AddCommand(assembleCmd, dumpCmd)
}

func asm370() int {
	defer glog.Flush()

	if err := rootCmd.Execute(); err != nil {
		log.Println(err)

		if exitCode == 0 {
			return EXIT_USAGE
		}
	}

	return exitCode
}

func main() {
	os.Exit(asm370())
}
