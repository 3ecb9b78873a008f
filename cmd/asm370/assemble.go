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
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/lassandro/asm370/pkg/assembler"
	"github.com/lassandro/asm370/pkg/config"
	"github.com/lassandro/asm370/pkg/listing"
)

var outvar string
var listingvar string
var symbolsvar bool
var configvar string
var deckvar string
var regionvar int64
var noxrefvar bool

var assembleCmd = &cobra.Command{
	Use:   "assemble [filename]",
	Short: "Assemble a source file into an object deck",
	Long: `Assemble reads fixed format source from the named file, or from
standard input when it is not a terminal, and writes the object deck.

The exit status is the assembler return code: 0 clean, 2 notify,
4 warning, 8 error, 12 severe and 16 when the run could not complete.
No object deck is written above a return code of 4.
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exitCode = assemble(cmd, args)
		return nil
	},
}

func init() {
	flags := assembleCmd.Flags()

	flags.StringVarP(
		&outvar, "out", "o", "",
		"Specifies a precise name for the object deck, "+
			"overriding the default means of determining it",
	)
	flags.StringVar(
		&listingvar, "listing", "",
		"Writes the assembly listing to a file, or to stdout for '-'",
	)
	flags.BoolVar(
		&symbolsvar, "symbols", false,
		"Writes a symbol table next to the object deck with extension '.sym'",
	)
	flags.StringVar(&configvar, "config", "", "Reads options from a TOML file")
	flags.StringVar(&deckvar, "deck", "", "Deck id punched into columns 73-76")
	flags.Int64Var(&regionvar, "region", 0, "Largest module size in bytes")
	flags.BoolVar(&noxrefvar, "no-xref", false, "Omits the cross-reference")
}

func options(cmd *cobra.Command) (*config.Options, error) {
	opts := config.Default()

	if configvar != "" {
		var err error

		if opts, err = config.Load(configvar); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("deck") {
		opts.DeckID = deckvar
	}

	if cmd.Flags().Changed("region") {
		opts.RegionSize = regionvar
	}

	if noxrefvar {
		opts.XRef = false
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

func assemble(cmd *cobra.Command, args []string) int {
	opts, err := options(cmd)

	if err != nil {
		log.Println(err)
		return EXIT_FATAL
	}

	var infile string
	var source []byte

	if stat, _ := os.Stdin.Stat(); len(args) == 0 &&
		stat.Mode()&os.ModeCharDevice == 0 {
		if source, err = io.ReadAll(os.Stdin); err != nil {
			log.Println(err)
			return EXIT_FATAL
		}

		log.SetPrefix("\033[1m<stdin>:\033[0m")

		if outvar == "" {
			outvar = "out.obj"
		}
	} else {
		if len(args) != 1 {
			log.Println(cmd.UseLine())
			return EXIT_USAGE
		}

		infile = args[0]
		filename := filepath.Base(infile)

		if stat, err := os.Stat(infile); err != nil {
			log.Println(err)
			return EXIT_FATAL
		} else if stat.IsDir() {
			log.Printf("%s is not a valid assembler source file", filename)
			return EXIT_FATAL
		}

		if source, err = os.ReadFile(infile); err != nil {
			log.Println(err)
			return EXIT_FATAL
		}

		log.SetPrefix(fmt.Sprintf("\033[1m%s:\033[0m", filename))

		if outvar == "" {
			outvar = strings.TrimSuffix(infile, filepath.Ext(infile)) + ".obj"
		}
	}

	input := bytes.NewReader(source)
	result, err := assembler.Assemble(input, opts)

	if err != nil {
		log.Println(err)
		return EXIT_FATAL
	}

	glog.V(1).Infof(
		"asm370: %d records, %d diagnostics, return code %d",
		len(result.Records), len(result.Diagnostics), result.ReturnCode(),
	)

	printDiagnostics(result.Diagnostics, input, infile != "")

	if listingvar != "" && opts.Listing {
		if err := writeListing(result, opts, infile); err != nil {
			log.Println("Error writing listing")
			log.Println(err)
			return EXIT_FATAL
		}
	}

	if result.Object == nil {
		return result.ReturnCode()
	}

	{
		buffer := new(bytes.Buffer)

		for _, record := range result.Object {
			buffer.Write(record[:])
		}

		if err := os.WriteFile(outvar, buffer.Bytes(), 0666); err != nil {
			log.Println("Error writing output file")
			log.Println(err)
			return EXIT_FATAL
		}
	}

	if symbolsvar {
		if err := writeSymbols(result, infile); err != nil {
			log.Println("Error writing symbol table")
			log.Println(err)
			return EXIT_FATAL
		}
	}

	return result.ReturnCode()
}

// printDiagnostics reports each diagnostic with its source line and the
// operand underlined when the source can be reread
func printDiagnostics(
	diagnostics []assembler.Diagnostic, input io.ReadSeeker, underline bool,
) {
	color := isTerminal(os.Stderr.Fd())

	for _, diagnostic := range diagnostics {
		message := fmt.Sprintf("%s %s", diagnostic.Code(), diagnostic)

		if !underline {
			log.Println(message)
			continue
		}

		cursor := diagnostic.GetPosition()

		if _, err := input.Seek(cursor.LineByte, io.SeekStart); err != nil {
			panic(err)
		}

		line, _ := bufio.NewReader(input).ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		size := int(cursor.Size)

		if size < 1 {
			size = 1
		}

		caret := fmt.Sprintf(
			"%*s%s",
			int(cursor.Byte-cursor.LineByte)+1,
			"^",
			strings.Repeat("~", size-1),
		)

		if color {
			caret = "\033[31m" + caret + "\033[0m"
		}

		log.Printf("%s\n%s\n%s", message, line, caret)
	}
}

func writeListing(
	result *assembler.Result, opts *config.Options, infile string,
) error {
	title := result.DeckID

	if title == "" && infile != "" {
		title = filepath.Base(infile)
	}

	printer := listing.New(result, title)
	printer.XRef = opts.XRef

	if listingvar == "-" {
		printer.Color = isTerminal(os.Stdout.Fd())
		return printer.Write(os.Stdout)
	}

	file, err := os.Create(listingvar)

	if err != nil {
		return err
	}

	defer file.Close()

	return printer.Write(file)
}

func writeSymbols(result *assembler.Result, infile string) error {
	source := ""

	if infile != "" {
		var err error

		if source, err = filepath.Abs(infile); err != nil {
			log.Println(err)
			source = ""
		}
	}

	filename := filepath.Join(
		filepath.Dir(outvar),
		strings.TrimSuffix(filepath.Base(outvar), filepath.Ext(outvar))+".sym",
	)

	file, err := os.Create(filename)

	if err != nil {
		return err
	}

	defer file.Close()

	return result.SymTable(source).Encode(file)
}
