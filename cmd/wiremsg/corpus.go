package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"

	"github.com/blockberries/wiremsg/internal/corpus"
	"github.com/blockberries/wiremsg/pkg/wiremsg"
)

func newCorpusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Manage golden wire samples",
		Long: `The corpus stores encoded messages by type so that a schema change can be
checked against bytes already in circulation.`,
	}
	cmd.AddCommand(
		newCorpusAddCmd(a),
		newCorpusListCmd(a),
		newCorpusShowCmd(a),
		newCorpusRemoveCmd(a),
		newCorpusVerifyCmd(a),
	)
	return cmd
}

func (a *app) openCorpus() (*corpus.Store, error) {
	return corpus.Open(a.cfg.CorpusDir, corpus.WithLogger(a.log))
}

func newCorpusAddCmd(a *app) *cobra.Command {
	var (
		typeName, in, note string
		hexIn, force       bool
	)
	cmd := &cobra.Command{
		Use:   "add --type <message> [--in file]",
		Short: "Store a sample after checking that it decodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desc, err := a.message(typeName)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, in, hexIn)
			if err != nil {
				return err
			}
			res := corpus.CheckSample(a.cat, corpus.Sample{Type: desc.Name, Data: data}, a.cfg.Options)
			if res.Err != nil {
				if !force {
					return fmt.Errorf("sample does not decode as %s: %w", desc.Name, res.Err)
				}
				a.log.Warn().Err(res.Err).Str("type", desc.Name).Msg("storing sample that does not decode")
			}

			store, err := a.openCorpus()
			if err != nil {
				return err
			}
			defer store.Close()
			id, err := store.Add(desc.Name, data, note)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&typeName, "type", "t", "", "message type (full or unique short name)")
	flags.StringVar(&in, "in", "", "input file (default stdin)")
	flags.BoolVar(&hexIn, "hex", false, "input is hex text")
	flags.StringVar(&note, "note", "", "free-form note stored with the sample")
	flags.BoolVar(&force, "force", false, "store the sample even if it does not decode")
	return cmd
}

func newCorpusListCmd(a *app) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "list [--type <message>]",
		Short: "List stored samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			msgType := typeName
			if msgType != "" {
				desc, err := a.message(msgType)
				if err != nil {
					return err
				}
				msgType = desc.Name
			}
			store, err := a.openCorpus()
			if err != nil {
				return err
			}
			defer store.Close()
			samples, err := store.List(msgType)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tBYTES\tNOTE")
			for _, s := range samples {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					s.ID, s.Created().UTC().Format("2006-01-02T15:04:05Z"), s.Type, len(s.Data), s.Note)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "only list samples of this message type")
	return cmd
}

func newCorpusShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored sample field by field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ksuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad sample id %q: %w", args[0], err)
			}
			store, err := a.openCorpus()
			if err != nil {
				return err
			}
			defer store.Close()
			sample, err := store.Get(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s %s %d bytes\n", sample.ID, sample.Type, len(sample.Data))
			if sample.Note != "" {
				fmt.Fprintf(out, "# %s\n", sample.Note)
			}
			desc, err := a.message(sample.Type)
			if err != nil {
				a.log.Warn().Err(err).Msg("showing sample without schema")
			}
			return wiremsg.Dump(out, sample.Data, desc)
		},
	}
}

func newCorpusRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Remove stored samples",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]ksuid.KSUID, len(args))
			for i, arg := range args {
				id, err := ksuid.Parse(arg)
				if err != nil {
					return fmt.Errorf("bad sample id %q: %w", arg, err)
				}
				ids[i] = id
			}
			store, err := a.openCorpus()
			if err != nil {
				return err
			}
			defer store.Close()
			for _, id := range ids {
				if err := store.Delete(id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newCorpusVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Decode every stored sample against the current schema",
		Long: `Verify decodes every sample with the loaded schema and reports the ones
that no longer decode. It exits 1 when any sample fails. Samples that decode
but re-encode to different bytes are listed as non-canonical.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			store, err := a.openCorpus()
			if err != nil {
				return err
			}
			defer store.Close()
			report, err := store.Verify(cat, a.cfg.Options)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, res := range report.Results {
				switch {
				case res.Err != nil:
					fmt.Fprintf(out, "FAIL %s %s: %v\n", res.ID, res.Type, res.Err)
				case !res.Canonical:
					fmt.Fprintf(out, "ok   %s %s (non-canonical)\n", res.ID, res.Type)
				default:
					fmt.Fprintf(out, "ok   %s %s\n", res.ID, res.Type)
				}
			}
			failed := len(report.Failed())
			fmt.Fprintf(out, "%d samples, %d failed\n", len(report.Results), failed)
			if !report.OK() {
				return &exitError{code: 1}
			}
			return nil
		},
	}
}
