package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/solatis/flagkeeper/internal/schema"
	"github.com/solatis/flagkeeper/internal/targeting"
	"github.com/solatis/flagkeeper/internal/types"
)

// ErrInvalidConfiguration is returned by check when validation fails.
var ErrInvalidConfiguration = errors.New("configuration is not publishable")

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate a targeting configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var diffCmd = &cobra.Command{
	Use:   "diff BEFORE AFTER",
	Short: "Classify and render the changes between two configurations",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of targeting configurations",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(checkCmd, diffCmd, schemaCmd)
	checkCmd.Flags().String("return-type", string(types.ReturnBoolean), "toggle return type (boolean, string, number, json)")
	diffCmd.Flags().Bool("all", false, "include unchanged sections")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	conf, err := readConfiguration(args[0])
	if err != nil {
		return err
	}
	returnType, _ := cmd.Flags().GetString("return-type")

	res := engine.Check(conf, types.ToggleInfo{ReturnType: types.ReturnType(returnType)})
	out := cmd.OutOrStdout()
	if res.Valid() {
		fmt.Fprintf(out, "%s: ok\n", args[0])
		return nil
	}
	for _, fe := range res.Errors {
		fmt.Fprintf(out, "%s: %s: %s\n", args[0], fe.Path, fe.Message)
	}
	return fmt.Errorf("%w: %d error(s)", ErrInvalidConfiguration, len(res.Errors))
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	before, err := readConfiguration(args[0])
	if err != nil {
		return err
	}
	after, err := readConfiguration(args[1])
	if err != nil {
		return err
	}

	cl := engine.Classifier().Classify(before, after)
	report, err := targeting.BuildReport(engine.Localizer(), before, after, cl)
	if err != nil {
		return err
	}

	all, _ := cmd.Flags().GetBool("all")
	writeDiff(cmd.OutOrStdout(), cl, report, all)
	return nil
}

func writeDiff(w io.Writer, cl targeting.Classification, report targeting.Report, all bool) {
	if cl.Equal {
		fmt.Fprintln(w, "no changes")
		return
	}
	kind := "cosmetic"
	if cl.Material {
		kind = "material"
	}
	fmt.Fprintf(w, "%d change(s), %s\n", len(cl.Changes), kind)

	sections := report.Changed()
	if all {
		sections = report.Sections
	}
	for _, s := range sections {
		fmt.Fprintf(w, "\n== %s ==\n", s.Title)
		if s.Changed {
			fmt.Fprint(w, s.Diff)
		} else {
			fmt.Fprintln(w, s.After)
		}
	}
}

func runSchema(cmd *cobra.Command, args []string) error {
	raw, err := schema.JSON()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
