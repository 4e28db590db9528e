// Copyright (c) 2026 Jess Grable <jgrable@hey.com>.
// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"
	gojsondiff "github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// ParseDiffArgs returns the state-version specs trailing the command.
// Anything that parses as a directory is the RootDir, not a spec.
func ParseDiffArgs(ctx context.Context, cmd *cli.Command) []string {
	var specs []string
	for _, arg := range cmd.Args().Slice() {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			continue
		}
		specs = append(specs, arg)
	}
	log.Debugf("diff specs: %v", specs)
	return specs
}

// Diff renders the structural difference between exactly two state
// documents. Keys named by --diff_filter are removed from both sides first
// so that always-changing bookkeeping doesn't drown the signal.
func Diff(ctx context.Context, cmd *cli.Command, states [][]byte) error {
	if len(states) != 2 {
		return fmt.Errorf("diff needs exactly 2 states, got %d", len(states))
	}

	var left, right map[string]interface{}
	if err := json.Unmarshal(states[0], &left); err != nil {
		return fmt.Errorf("failed to parse left state: %w", err)
	}
	if err := json.Unmarshal(states[1], &right); err != nil {
		return fmt.Errorf("failed to parse right state: %w", err)
	}

	for _, key := range strings.Split(cmd.String("diff_filter"), ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		delete(left, key)
		delete(right, key)
	}

	leftRaw, _ := json.Marshal(left)
	rightRaw, _ := json.Marshal(right)

	d, err := gojsondiff.New().Compare(leftRaw, rightRaw)
	if err != nil {
		return fmt.Errorf("failed to compare states: %w", err)
	}

	if !d.Modified() {
		fmt.Println("No differences.")
		return nil
	}

	if cmd.String("output") == "json" {
		deltaFormatter := formatter.NewDeltaFormatter()
		out, err := deltaFormatter.Format(d)
		if err != nil {
			return fmt.Errorf("failed to format diff: %w", err)
		}
		fmt.Print(out)
		return nil
	}

	asciiFormatter := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: true,
		Coloring:       cmd.Bool("color"),
	})
	out, err := asciiFormatter.Format(d)
	if err != nil {
		return fmt.Errorf("failed to format diff: %w", err)
	}
	fmt.Print(out)

	return nil
}
