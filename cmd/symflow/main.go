package main

import (
	"fmt"
	"os"

	yaml "github.com/itchyny/go-yaml"
	"github.com/spf13/cobra"

	"github.com/symflow/symflow/mapvar"
	"github.com/symflow/symflow/pkg/disasm"
	"github.com/symflow/symflow/pkg/fixture"
)

var (
	yamlOut   bool
	valueName string
	strict    bool
	maxItems  int

	rootCmd = &cobra.Command{
		Use:   "symflow",
		Short: "Inspect symbolic mapping captures",
		Long: `symflow wraps guest values described by a fixture into trace sessions
and reports what the capture recorded: variable shapes, rebuild
instruction listings, and the guard ledger. Without a fixture argument
the built-in sample is used.`,
		SilenceUsage: true,
	}

	dumpCmd = &cobra.Command{
		Use:   "dump [fixture.yaml]",
		Short: "Print wrapped shapes and rebuild listings",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDump,
	}

	guardsCmd = &cobra.Command{
		Use:   "guards [fixture.yaml]",
		Short: "Print the guard ledger each value accumulates",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runGuards,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&yamlOut, "yaml", false, "emit YAML instead of text")
	rootCmd.PersistentFlags().StringVar(&valueName, "value", "", "inspect only the named fixture value")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "refuse host-table snapshot fallbacks")
	rootCmd.PersistentFlags().IntVar(&maxItems, "max-items", 0, "item cap per wrapped mapping (0 = default)")
	rootCmd.AddCommand(dumpCmd, guardsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadFixture(args []string) (*fixture.Fixture, error) {
	if len(args) == 0 {
		return fixture.Sample(), nil
	}
	return fixture.Load(args[0])
}

func selectNames(fx *fixture.Fixture) ([]string, error) {
	if valueName == "" {
		return fx.Names(), nil
	}
	if _, ok := fx.Value(valueName); !ok {
		return nil, fmt.Errorf("fixture has no value %q", valueName)
	}
	return []string{valueName}, nil
}

func sessionOptions() mapvar.Options {
	opts := mapvar.DefaultOptions()
	opts.LogLevel = "error"
	opts.StrictMode = strict
	if maxItems > 0 {
		opts.MaxItems = maxItems
	}
	return opts
}

type dumpReport struct {
	Name     string   `yaml:"name"`
	Shape    string   `yaml:"shape,omitempty"`
	Program  string   `yaml:"program,omitempty"`
	Declares []string `yaml:"declares,omitempty"`
	Error    string   `yaml:"error,omitempty"`
}

func runDump(cmd *cobra.Command, args []string) error {
	fx, err := loadFixture(args)
	if err != nil {
		return err
	}
	names, err := selectNames(fx)
	if err != nil {
		return err
	}
	reports := make([]dumpReport, 0, len(names))
	for _, name := range names {
		live, _ := fx.Value(name)
		reports = append(reports, dumpValue(name, live))
	}
	if yamlOut {
		return emitYAML(cmd, reports)
	}
	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(out, "=== %s ===\n", r.Name)
		if r.Error != "" {
			fmt.Fprintf(out, "error: %s\n\n", r.Error)
			continue
		}
		fmt.Fprintf(out, "shape: %s\n%s", r.Shape, r.Program)
		if len(r.Declares) > 0 {
			fmt.Fprintf(out, "declares: %v\n", r.Declares)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func dumpValue(name string, live any) dumpReport {
	v, _, err := mapvar.WrapValue(name, live, sessionOptions())
	if err != nil {
		return dumpReport{Name: name, Error: err.Error()}
	}
	r := dumpReport{Name: name, Shape: mapvar.Summarize(v)}
	prog, globals, err := mapvar.ReconstructProgram(v)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.Program = disasm.Render(prog)
	r.Declares = globals
	return r
}

type guardReport struct {
	Name   string   `yaml:"name"`
	Guards []string `yaml:"guards,omitempty"`
	Error  string   `yaml:"error,omitempty"`
}

func runGuards(cmd *cobra.Command, args []string) error {
	fx, err := loadFixture(args)
	if err != nil {
		return err
	}
	names, err := selectNames(fx)
	if err != nil {
		return err
	}
	reports := make([]guardReport, 0, len(names))
	for _, name := range names {
		live, _ := fx.Value(name)
		reports = append(reports, guardsFor(name, live))
	}
	if yamlOut {
		return emitYAML(cmd, reports)
	}
	out := cmd.OutOrStdout()
	for _, r := range reports {
		fmt.Fprintf(out, "=== %s ===\n", r.Name)
		if r.Error != "" {
			fmt.Fprintf(out, "error: %s\n\n", r.Error)
			continue
		}
		for _, g := range r.Guards {
			fmt.Fprintf(out, "  %s\n", g)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func guardsFor(name string, live any) guardReport {
	_, tx, err := mapvar.WrapValue(name, live, sessionOptions())
	if err != nil {
		return guardReport{Name: name, Error: err.Error()}
	}
	r := guardReport{Name: name}
	for _, g := range tx.SessionGuards().All() {
		r.Guards = append(r.Guards, g.String())
	}
	return r
}

func emitYAML(cmd *cobra.Command, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
