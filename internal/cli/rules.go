package cli

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ppiankov/docscrape/internal/model"
	"github.com/ppiankov/docscrape/internal/record"
	"github.com/ppiankov/docscrape/internal/rules"
	"github.com/ppiankov/docscrape/internal/session"
	"github.com/spf13/cobra"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate rule documents",
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the three rule documents",
	Long: `Check loads the field mapping, matcher and source documents exactly as
enrich would and reports what they contain. Locator strategies, actions and
tests are validated against the built-in capabilities.`,
	Args: cobra.NoArgs,
	RunE: runRulesCheck,
}

var rulesAliasesCmd = &cobra.Command{
	Use:   "aliases <name>...",
	Short: "Show which canonical field each raw name maps to",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRulesAliases,
}

var rulesHeadersCmd = &cobra.Command{
	Use:   "headers <input.csv>",
	Short: "Show how the header of a CSV file maps to canonical fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesHeaders,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesCheckCmd, rulesAliasesCmd, rulesHeadersCmd)

	addRuleFlags(rulesCheckCmd)
	addRuleFlags(rulesAliasesCmd)
	addRuleFlags(rulesHeadersCmd)
}

// addRuleFlags registers the rule document paths on cmd
func addRuleFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mapping", "m", "", "field mapping document (default from config: field-mapping.json)")
	cmd.Flags().StringP("sources", "s", "", "source definitions document (default from config: sources.json)")
	cmd.Flags().StringP("matchers", "x", "", "field matcher document (default from config: matchers.json)")
}

// applyRuleFlags overrides the configured rule paths with the flags that were set
func applyRuleFlags(cmd *cobra.Command, cfg *model.RulesConfig) {
	for name, dst := range map[string]*string{
		"mapping":  &cfg.MappingFile,
		"sources":  &cfg.SourcesFile,
		"matchers": &cfg.MatcherFile,
	} {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRuleFlags(cmd, &cfg.Rules)

	caps := session.NewRegistry()
	rs, err := rules.Load(cfg.Rules, caps)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	steps, scored := 0, 0
	for _, src := range rs.Sources {
		steps += len(src.Steps)
		if src.Results != nil {
			scored++
			steps += len(src.Results.Match)
		}
	}

	fmt.Fprintf(out, "✓ %s: %d aliases\n", cfg.Rules.MappingFile, rs.Aliases.Len())
	fmt.Fprintf(out, "✓ %s: %d fields with patterns\n", cfg.Rules.MatcherFile, rs.Matchers.Fields())
	fmt.Fprintf(out, "✓ %s: %d sources (%d with results), %d steps\n", cfg.Rules.SourcesFile, len(rs.Sources), scored, steps)

	for _, field := range rs.UnmatchedDataFields() {
		fmt.Fprintf(out, "⚠ data field %q has no matcher patterns; its steps always miss\n", field)
	}

	if verbose {
		actions, tests, strategies := caps.Names()
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Locator strategies: %s\n", strings.Join(strategies, ", "))
		fmt.Fprintf(out, "Actions: %s\n", strings.Join(actions, ", "))
		fmt.Fprintf(out, "Tests: %s\n", strings.Join(tests, ", "))
	}
	return nil
}

func runRulesAliases(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRuleFlags(cmd, &cfg.Rules)

	aliases, err := rules.LoadAliases(cfg.Rules.MappingFile)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Name", "Field", "Aliases of field"})
	for _, name := range args {
		field := aliases.Lookup(name)
		t.AppendRow(table.Row{name, field, len(aliases.Aliases(field))})
	}
	t.Render()
	return nil
}

func runRulesHeaders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRuleFlags(cmd, &cfg.Rules)

	aliases, err := rules.LoadAliases(cfg.Rules.MappingFile)
	if err != nil {
		return err
	}
	rows, err := record.ReadCSV(args[0])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s: no data rows", args[0])
	}

	mapper := record.NewMapper(aliases)
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Column", "Field"})
	for _, c := range rows[0] {
		t.AppendRow(table.Row{c.Name, aliases.Lookup(c.Name)})
	}
	t.Render()

	if unmapped := mapper.Unmapped(rows[0]); len(unmapped) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠ %d columns fall into %q: %s\n", len(unmapped), model.OtherField, strings.Join(unmapped, ", "))
	}
	return nil
}
