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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/skein-interactive/Skein/ink"
)

var PlayCmd = cli.Command{
	Action:    doPlay,
	Name:      "play",
	Usage:     "Play a compiled story interactively in the terminal",
	ArgsUsage: "<story.json>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "tags",
			Usage: "print the tags attached to each line",
		},
	},
}

func doPlay(ctx *cli.Context) error {
	if ctx.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one story file")
	}

	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read story: %w", err)
	}

	story, err := ink.NewStory(strings.TrimPrefix(string(data), "\uFEFF"))
	if err != nil {
		return fmt.Errorf("failed to load story: %w", err)
	}

	story.OnError(func(message string, errorType ink.ErrorType) {
		fmt.Fprintf(os.Stderr, "%v: %s\n", errorType, message)
	})

	reader := bufio.NewReader(os.Stdin)
	showTags := ctx.Bool("tags")

	for {
		lines := story.ContinueMaximally()
		for {
			line, ok := lines.Next()
			if !ok {
				break
			}
			fmt.Print(line)
			if showTags {
				for _, tag := range story.CurrentTags() {
					fmt.Printf("  # %s\n", tag)
				}
			}
		}
		if err := lines.Err(); err != nil {
			return err
		}

		choices := story.CurrentChoices()
		if len(choices) == 0 {
			return nil
		}

		for _, choice := range choices {
			fmt.Printf("%d: %s\n", choice.Index+1, choice.Text)
		}

		fmt.Print("?> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		selected, err := strconv.Atoi(strings.TrimSpace(input))
		if err != nil || selected < 1 || selected > len(choices) {
			fmt.Println("please enter a valid choice number")
			continue
		}
		if err := story.ChooseChoiceIndex(selected - 1); err != nil {
			return err
		}
	}
}
