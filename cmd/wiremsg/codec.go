package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/blockberries/wiremsg/pkg/schema"
	"github.com/blockberries/wiremsg/pkg/wiremsg"
)

func newEncodeCmd(a *app) *cobra.Command {
	var (
		typeName, in, out string
		hexOut            bool
	)
	cmd := &cobra.Command{
		Use:   "encode --type <message> [--in file]",
		Short: "Encode a JSON document into wire bytes",
		Long: `Encode reads a JSON object keyed by field name or JSON name and writes
the wire encoding of the message to stdout or --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc, err := a.message(typeName)
			if err != nil {
				return err
			}
			doc, err := readInput(cmd, in, false)
			if err != nil {
				return err
			}
			m, err := wiremsg.FromJSON(desc, doc)
			if err != nil {
				return err
			}
			data, err := wiremsg.MarshalWithOptions(m, a.cfg.Options)
			if err != nil {
				return err
			}
			a.log.Debug().Str("type", desc.Name).Int("bytes", len(data)).Msg("encoded")
			if hexOut {
				data = []byte(hex.EncodeToString(data) + "\n")
			}
			return writeOutput(cmd, out, data)
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "message type (full or unique short name)")
	cmd.Flags().StringVar(&in, "in", "", "input JSON file (default stdin)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&hexOut, "hex", false, "write hex text instead of raw bytes")
	return cmd
}

func newDecodeCmd(a *app) *cobra.Command {
	var (
		typeName, in   string
		hexIn, partial bool
		compact        bool
		project        wiremsg.ProjectOptions
	)
	cmd := &cobra.Command{
		Use:   "decode --type <message> [--in file]",
		Short: "Decode wire bytes into JSON",
		Long: `Decode parses wire bytes as the given message type and prints the
name-keyed JSON projection. Invalid UTF-8 strings are reported as warnings
and dropped; any other decode failure is an error unless --partial is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc, err := a.message(typeName)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, in, hexIn)
			if err != nil {
				return err
			}
			m, err := wiremsg.UnmarshalWithOptions(data, desc, a.cfg.Options)
			if err != nil {
				if !partial && !recoverable(err) {
					return err
				}
				a.log.Warn().Err(err).Str("type", desc.Name).Msg("decoded with errors")
			}
			doc, err := wiremsg.ToJSON(m, project)
			if err != nil {
				return err
			}
			if !compact {
				var buf bytes.Buffer
				if err := json.Indent(&buf, doc, "", "  "); err != nil {
					return err
				}
				doc = buf.Bytes()
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", doc)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&typeName, "type", "t", "", "message type (full or unique short name)")
	flags.StringVar(&in, "in", "", "input file (default stdin)")
	flags.BoolVar(&hexIn, "hex", false, "input is hex text")
	flags.BoolVar(&partial, "partial", false, "print the fields decoded before a failure")
	flags.BoolVar(&compact, "compact", false, "print JSON on one line")
	flags.BoolVar(&project.UseJSONNames, "json-names", false, "key fields by lowerCamel JSON name")
	flags.BoolVar(&project.EnumNames, "enum-names", false, "print enum value names")
	flags.BoolVar(&project.EmitDefaults, "emit-defaults", false, "include unpopulated fields")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		typeName, in string
		hexIn        bool
	)
	cmd := &cobra.Command{
		Use:   "inspect [--type <message>] [--in file]",
		Short: "List the fields of wire bytes one per line",
		Long: `Inspect prints every field with its offset, number and wire type. With
--type, fields are named and values rendered by kind; without it the bytes
are walked schemalessly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var desc *schema.Message
			if typeName != "" {
				var err error
				if desc, err = a.message(typeName); err != nil {
					return err
				}
			}
			data, err := readInput(cmd, in, hexIn)
			if err != nil {
				return err
			}
			return wiremsg.Dump(cmd.OutOrStdout(), data, desc)
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "message type (full or unique short name)")
	cmd.Flags().StringVar(&in, "in", "", "input file (default stdin)")
	cmd.Flags().BoolVar(&hexIn, "hex", false, "input is hex text")
	return cmd
}

// recoverable reports whether every error joined in err let decoding
// continue.
func recoverable(err error) bool {
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var de *wiremsg.DecodeError
		if !errors.As(e, &de) || !de.Recoverable() {
			return false
		}
	}
	return true
}

// readInput reads path, or stdin when path is empty or "-". Hex input may
// contain whitespace between digits.
func readInput(cmd *cobra.Command, path string, hexText bool) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !hexText {
		return data, nil
	}
	clean := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(data))
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decode hex input: %w", err)
	}
	return out, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
