// Package cli provides shared CLI utilities for docrag and docragd.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cobra records MarkFlagsMutuallyExclusive groups under this flag annotation.
const mutuallyExclusiveAnnotation = "cobra_annotation_mutually_exclusive"

// FlagSchema describes one command flag.
type FlagSchema struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// CommandSchema describes a command tree so scripts and agents can drive the
// CLI without scraping help text.
type CommandSchema struct {
	Name              string          `json:"name"`
	Use               string          `json:"use,omitempty"`
	Args              []string        `json:"args,omitempty"`
	Description       string          `json:"description,omitempty"`
	Long              string          `json:"long,omitempty"`
	Flags             []FlagSchema    `json:"flags,omitempty"`
	MutuallyExclusive [][]string      `json:"mutually_exclusive,omitempty"`
	Subcommands       []CommandSchema `json:"subcommands,omitempty"`
}

// GenerateSchema generates a JSON schema for a cobra command.
func GenerateSchema(cmd *cobra.Command) CommandSchema {
	schema := CommandSchema{
		Name:              cmd.Name(),
		Use:               cmd.Use,
		Args:              positionalArgs(cmd.Use),
		Description:       cmd.Short,
		Long:              cmd.Long,
		Flags:             extractFlags(cmd),
		MutuallyExclusive: exclusiveGroups(cmd),
	}

	for _, sub := range cmd.Commands() {
		if sub.Name() == "help" || sub.Hidden {
			continue
		}
		schema.Subcommands = append(schema.Subcommands, GenerateSchema(sub))
	}

	return schema
}

// positionalArgs lists the placeholders of a Use line, e.g.
// "extract <file> [--schema name]" gives ["<file>"].
func positionalArgs(use string) []string {
	fields := strings.Fields(use)
	if len(fields) < 2 {
		return nil
	}
	var args []string
	for _, field := range fields[1:] {
		if strings.HasPrefix(field, "<") || (strings.HasPrefix(field, "[") && !strings.HasPrefix(field, "[-")) {
			args = append(args, field)
		}
	}
	return args
}

func extractFlags(cmd *cobra.Command) []FlagSchema {
	var flags []FlagSchema
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help-json" || f.Name == "help" {
			return
		}
		flags = append(flags, flagToSchema(f))
	})
	return flags
}

func flagToSchema(f *pflag.Flag) FlagSchema {
	_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
	return FlagSchema{
		Name:        f.Name,
		Shorthand:   f.Shorthand,
		Type:        f.Value.Type(),
		Default:     f.DefValue,
		Description: f.Usage,
		Required:    required,
	}
}

func exclusiveGroups(cmd *cobra.Command) [][]string {
	seen := map[string]bool{}
	var groups [][]string
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		for _, group := range f.Annotations[mutuallyExclusiveAnnotation] {
			if seen[group] {
				continue
			}
			seen[group] = true
			names := strings.Split(group, " ")
			sort.Strings(names)
			groups = append(groups, names)
		}
	})
	return groups
}

// WriteSchema writes the indented schema of cmd to w.
func WriteSchema(w io.Writer, cmd *cobra.Command) error {
	output, err := json.MarshalIndent(GenerateSchema(cmd), "", "  ")
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

// AddHelpJSONFlag adds the --help-json flag to a command.
func AddHelpJSONFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool("help-json", false, "Output command schema as JSON")
}

// CheckHelpJSON prints the schema of the addressed command and exits when
// os.Args carries --help-json. Call it before Execute so argument validation
// does not reject the request first.
func CheckHelpJSON(rootCmd *cobra.Command) {
	target, ok := helpJSONTarget(rootCmd, os.Args[1:])
	if !ok {
		return
	}
	if err := WriteSchema(os.Stdout, target); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func helpJSONTarget(rootCmd *cobra.Command, args []string) (*cobra.Command, bool) {
	for i, arg := range args {
		if arg == "--help-json" {
			return findTargetCommand(rootCmd, args[:i]), true
		}
	}
	return nil, false
}

// findTargetCommand walks subcommand names, skipping flags and their values.
func findTargetCommand(cmd *cobra.Command, args []string) *cobra.Command {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			if !strings.Contains(arg, "=") && takesValue(cmd, arg) {
				i++
			}
			continue
		}
		for _, sub := range cmd.Commands() {
			if sub.Name() == arg || sub.HasAlias(arg) {
				return findTargetCommand(sub, args[i+1:])
			}
		}
		return cmd
	}
	return cmd
}

func takesValue(cmd *cobra.Command, arg string) bool {
	var f *pflag.Flag
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		f = cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(name)
		}
	} else if len(arg) == 2 {
		f = cmd.Flags().ShorthandLookup(arg[1:])
		if f == nil {
			f = cmd.InheritedFlags().ShorthandLookup(arg[1:])
		}
	}
	return f != nil && f.NoOptDefVal == ""
}
