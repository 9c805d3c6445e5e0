package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// printOutput writes v as JSON or YAML, or as the table rows returns.
func printOutput(cmd *cobra.Command, v any, header table.Row, rows func() []table.Row) error {
	format, _ := cmd.Flags().GetString(FlagOutput)
	w := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		return writeYAML(w, v)
	case "table", "":
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(header)
		t.AppendRows(rows())
		t.Render()
		return nil
	}
	return fmt.Errorf("unknown output format %q", format)
}

// writeYAML goes through JSON so field names and amount encodings match the json output.
func writeYAML(w io.Writer, v any) error {
	dat, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err = yaml.Unmarshal(dat, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}
