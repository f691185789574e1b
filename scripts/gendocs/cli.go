package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/warehouse/internal/cli"
	"github.com/leapstack-labs/warehouse/internal/config"
	"github.com/leapstack-labs/warehouse/pkg/adapter"
	_ "github.com/leapstack-labs/warehouse/pkg/adapters/all"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// generateCLIDocs writes index.md plus one page per documented command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := map[string][]byte{"index.md": cliIndex(root)}
	for _, cmd := range documentedCommands(root) {
		pages[cmd.Name()+".md"] = commandPage(cmd)
	}

	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(outDir, name), content, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

func documentedCommands(root *cobra.Command) []*cobra.Command {
	var cmds []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.Hidden || !cmd.IsAvailableCommand() || cmd.Name() == "help" {
			continue
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func cliIndex(root *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for warehouse")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/warehouse/cmd/warehouse@latest\nwarehouse <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range documentedCommands(root) {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name()),
			cleanDescription(cmd.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Engines")
	var engines []string
	for _, t := range adapter.SupportedTypes() {
		engines = append(engines, InlineCode(t.String()))
	}
	w.Paragraph("Warehouses may use any of these credential types: " + strings.Join(engines, ", ") + ".")

	w.Header(2, "Global Options")
	w.Table(flagHeaders, flagRows(root.PersistentFlags()))

	w.Header(2, "Environment Variables")
	w.Table([]string{"Variable", "Description"}, [][]string{
		{InlineCode(config.EnvPrefix + "DEFAULT"), "Default warehouse name"},
		{InlineCode(config.EnvPrefix + "OUTPUT"), "Output format (auto, text, markdown, json)"},
		{InlineCode(config.EnvPrefix + "VERBOSE"), "Verbose logging"},
	})
	w.Paragraph("Flags override environment variables, which override the config file.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, including failed connection tests"},
	})
	return w.Bytes()
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	w.CodeBlock("bash", cmd.UseLine())

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		aliases := make([]string, len(cmd.Aliases))
		for i, a := range cmd.Aliases {
			aliases[i] = InlineCode(a)
		}
		w.BulletList(aliases)
	}

	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		w.Table(flagHeaders, flagRows(cmd.LocalFlags()))
	}
	if cmd.HasAvailableInheritedFlags() {
		w.Header(2, "Global Options")
		w.Table(flagHeaders, flagRows(cmd.InheritedFlags()))
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	return w.Bytes()
}

var flagHeaders = []string{"Option", "Short", "Default", "Description"}

func flagRows(flags *pflag.FlagSet) [][]string {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if def != "" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	return rows
}

// dedent strips the indentation shared by all non-blank lines.
func dedent(text string) string {
	lines := strings.Split(strings.Trim(text, "\n"), "\n")
	indent := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		if n := len(line) - len(trimmed); indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.Join(lines, "\n")
}
