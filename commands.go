package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"hastycam/config"
	"hastycam/feed"
	"hastycam/validate"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var errInvalid = errors.New("feed is invalid")

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a feed JSON file and list every problem with it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			m := validate.Map{}
			if err := json.Unmarshal(b, &m); err != nil {
				return fmt.Errorf("failed to parse %v: %w", args[0], err)
			}
			errs := feed.Validate(m)
			out := cmd.OutOrStdout()
			if len(errs) == 0 {
				fmt.Fprintln(out, "ok")
				return nil
			}
			for _, e := range errs {
				fmt.Fprintf(out, "%s: %s\n", e.Field, e.Message)
			}
			return errInvalid
		},
	}
}

func newExportCommand(root *rootOptions) *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the full configuration, with defaults filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(root)
			if err != nil {
				return err
			}
			c, err := store.All()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asYAML {
				return exportYAML(out, c)
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print YAML instead of JSON.")
	return cmd
}

// exportYAML goes through JSON first so that keys keep their wire names.
func exportYAML(w io.Writer, c config.Config) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
