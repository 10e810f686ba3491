package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blockberries/wiremsg/pkg/extract"
	"github.com/blockberries/wiremsg/pkg/schema"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file.proto]...",
		Short: "Check .proto files without using them",
		Long: `Validate loads each file with its imports and reports errors and
warnings. It exits 1 when any file has errors and 2 when there are only
warnings. With no arguments the configured schema.protos are checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if len(files) == 0 {
				files = a.cfg.Protos
			}
			if len(files) == 0 {
				return errors.New("no input files")
			}

			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
			hasErrors, hasWarnings := false, false
			for _, file := range files {
				l := schema.NewLoader(a.cfg.SearchPaths...)
				if err := l.LoadFile(file); err != nil {
					fmt.Fprintln(stderr, err)
					hasErrors = true
					continue
				}
				cat, err := l.Catalog()
				if err != nil {
					var verrs schema.ValidationErrors
					if errors.As(err, &verrs) {
						for _, e := range verrs {
							fmt.Fprintln(stderr, e)
						}
					} else {
						fmt.Fprintln(stderr, err)
					}
					hasErrors = true
					continue
				}
				warned := false
				for _, e := range schema.Validate(cat) {
					if e.Severity == schema.SeverityWarning {
						fmt.Fprintln(stderr, e)
						warned = true
					}
				}
				if warned {
					hasWarnings = true
					continue
				}
				fmt.Fprintf(stdout, "valid: %s\n", file)
			}

			if hasErrors {
				return &exitError{code: 1}
			}
			if hasWarnings {
				return &exitError{code: 2}
			}
			return nil
		},
	}
}

func newCompatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compat <old> <new>",
		Short: "Check that a schema change keeps wire compatibility",
		Long: `Compat compares two schemas, each a .proto file or a serialized
descriptor set, and lists the changes that would break readers of either
version. It exits 1 when any change is breaking.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldCat, err := a.loadSchemaFile(args[0])
			if err != nil {
				return err
			}
			newCat, err := a.loadSchemaFile(args[1])
			if err != nil {
				return err
			}

			report := schema.CheckCompatibility(oldCat, newCat)
			out := cmd.OutOrStdout()
			for _, b := range report.Breaking {
				fmt.Fprintf(out, "breaking: %s\n", b.Error())
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if !report.IsCompatible() {
				return &exitError{code: 1}
			}
			fmt.Fprintln(out, "compatible")
			return nil
		},
	}
}

// loadSchemaFile loads a .proto file, or a descriptor set for any other
// extension.
func (a *app) loadSchemaFile(path string) (*schema.Catalog, error) {
	if strings.EqualFold(filepath.Ext(path), ".proto") {
		return schema.LoadFiles([]string{path}, a.cfg.SearchPaths...)
	}
	return schema.LoadDescriptorSet(path)
}

func newFormatCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "format [-w] <file.proto>...",
		Short: "Rewrite .proto files in canonical form",
		Long: `Format loads each file and prints the declarations of the package it
declares in canonical proto3 form. With -w the file is overwritten.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasErrors := false
			for _, file := range args {
				if err := a.formatFile(cmd, file, write); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", file, err)
					hasErrors = true
				}
			}
			if hasErrors {
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write result to the source file instead of stdout")
	return cmd
}

func (a *app) formatFile(cmd *cobra.Command, file string, write bool) error {
	l := schema.NewLoader(a.cfg.SearchPaths...)
	if err := l.LoadFile(file); err != nil {
		return err
	}
	cat, err := l.Catalog()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := schema.NewWriter().WritePackage(&buf, cat, l.Package(abs)); err != nil {
		return err
	}
	if !write {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "formatted: %s\n", file)
	return nil
}

func newExtractCmd(a *app) *cobra.Command {
	var (
		cfg      extract.Config
		out, pkg string
	)
	cmd := &cobra.Command{
		Use:   "extract [packages]...",
		Short: "Generate a .proto schema from tagged Go types",
		Long: `Extract loads Go packages and writes a .proto file describing their
exported structs and integer enums. Fields take their numbers from
` + "`wire:\"N,options\"`" + ` struct tags; untagged fields are numbered after
the highest tag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args
			if len(patterns) == 0 {
				patterns = []string{"."}
			}
			ex := extract.NewExtractor(".")
			err := ex.ExtractAndWrite(&extract.ExtractorConfig{
				Config:     &cfg,
				Patterns:   patterns,
				OutputPath: out,
				Package:    pkg,
				Stdout:     cmd.OutOrStdout(),
			})
			for _, w := range ex.Warnings() {
				a.log.Warn().Msg(w)
			}
			if err != nil {
				return err
			}
			if out != "" {
				a.log.Info().Str("path", out).Msg("schema written")
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "", "output file (default stdout)")
	flags.StringVar(&pkg, "package", "", "schema package name (default the Go package name)")
	flags.BoolVar(&cfg.IncludePrivate, "private", false, "include unexported types")
	flags.StringSliceVar(&cfg.IncludePatterns, "include", nil, "type name globs to include")
	flags.StringSliceVar(&cfg.ExcludePatterns, "exclude", nil, "type name globs to exclude")
	flags.BoolVar(&cfg.RequireTags, "require-tags", false, "skip struct fields without a wire tag")
	return cmd
}
