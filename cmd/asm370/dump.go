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
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lassandro/asm370/pkg/objdeck"
)

var formatvar string

var dumpCmd = &cobra.Command{
	Use:   "dump filename",
	Short: "Print the records of an object deck",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode = dump(args[0])
		return nil
	},
}

func init() {
	dumpCmd.Flags().StringVarP(
		&formatvar, "format", "f", "text", "Output format: text or yaml",
	)
}

func dump(filename string) int {
	if formatvar != "text" && formatvar != "yaml" {
		log.Printf("Unknown format %q", formatvar)
		return EXIT_USAGE
	}

	file, err := os.Open(filename)

	if err != nil {
		log.Println(err)
		return EXIT_FATAL
	}

	defer file.Close()

	records, err := objdeck.ReadRecords(file)

	if err != nil {
		log.Println(err)
		return EXIT_FATAL
	}

	decoded := make([]*objdeck.Decoded, 0, len(records))

	for i, record := range records {
		d, err := objdeck.Decode(i, record)

		if err != nil {
			log.Println(err)
			return EXIT_FATAL
		}

		decoded = append(decoded, d)
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	if formatvar == "yaml" {
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)

		if err := encoder.Encode(decoded); err != nil {
			log.Println(err)
			return EXIT_FATAL
		}

		encoder.Close()
		return 0
	}

	for i, d := range decoded {
		dumpText(out, i, d)
	}

	return 0
}

func dumpText(out io.Writer, index int, d *objdeck.Decoded) {
	fmt.Fprintf(out, "%04d %s %s\n", index+1, d.Kind, d.Sequence)

	for _, sym := range d.Symbols {
		switch sym.Type {
		case objdeck.ESD_LD:
			fmt.Fprintf(
				out, "     %-8s %-2s address %06X ldid %d\n",
				sym.Name, sym.Type, sym.Address, sym.LDID,
			)
		case objdeck.ESD_ER, objdeck.ESD_WX:
			fmt.Fprintf(out, "     %-8s %-2s esdid %d\n", sym.Name, sym.Type, sym.ID)
		default:
			fmt.Fprintf(
				out, "     %-8s %-2s esdid %d address %06X length %06X amode %s rmode %s\n",
				sym.Name, sym.Type, sym.ID, sym.Address, sym.Length,
				sym.AMode, sym.RMode,
			)
		}
	}

	if d.Text != nil {
		fmt.Fprintf(
			out, "     esdid %d address %06X %X\n",
			d.Text.Scope, d.Text.Address, []byte(d.Text.Data),
		)
	}

	for _, reloc := range d.Relocations {
		fmt.Fprintf(
			out, "     position %d target %d address %06X length %d %s\n",
			reloc.Position, reloc.Target, reloc.Address, reloc.Length, reloc.Action,
		)
	}

	if d.End != nil {
		switch {
		case d.End.Name != "":
			fmt.Fprintf(out, "     entry %s\n", d.End.Name)
		case d.End.Scope != 0:
			fmt.Fprintf(
				out, "     entry esdid %d address %06X length %06X\n",
				d.End.Scope, d.End.Address, d.End.Length,
			)
		}

		for _, idr := range d.End.IDR {
			fmt.Fprintf(out, "     idr %s %s %s\n", idr.Translator, idr.Version, idr.Date)
		}
	}
}
