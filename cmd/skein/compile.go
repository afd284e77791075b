// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/skein-interactive/Skein/ink"
)

var CompileCmd = cli.Command{
	Action:    doCompile,
	Name:      "compile",
	Usage:     "Load a compiled story, validate it and write it back in canonical form",
	ArgsUsage: "<input> [output]",
	Description: `Reads a compiled story file (or - for stdin), loads it through the
runtime (version gate and full structural validation) and writes the
canonically re-serialized JSON to the output file. The output defaults
to <basename>.json in the current directory, or - for stdout.`,
}

func doCompile(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("missing input file; use - for stdin")
	}
	input := ctx.Args().Get(0)
	output := ctx.Args().Get(1)

	var data []byte
	var err error
	if input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	// Strip a UTF-8 byte-order mark, which inklecate likes to emit.
	text := strings.TrimPrefix(string(data), "\uFEFF")

	story, err := ink.NewStory(text)
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}

	canonical, err := story.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize story: %w", err)
	}

	if output == "" {
		if input == "-" {
			output = "-"
		} else {
			base := filepath.Base(input)
			base = strings.TrimSuffix(base, filepath.Ext(base))
			output = base + ".json"
		}
	}

	if output == "-" {
		fmt.Println(canonical)
		return nil
	}
	return os.WriteFile(output, []byte(canonical), 0644)
}
