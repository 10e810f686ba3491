package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/blockberries/wiremsg/internal/config"
	"github.com/blockberries/wiremsg/internal/logging"
	"github.com/blockberries/wiremsg/pkg/schema"
	"github.com/blockberries/wiremsg/pkg/wiremsg"
)

// app carries the resolved configuration shared by every subcommand.
type app struct {
	cfg config.Config
	log zerolog.Logger
	cat *schema.Catalog

	configPath     string
	protos         []string
	searchPaths    []string
	descriptorSets []string
	profile        string
	logLevel       string
	corpusDir      string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "wiremsg",
		Short: "Protobuf wire codec driven by runtime schemas",
		Long: `wiremsg encodes, decodes and inspects protobuf wire data using message
schemas loaded at runtime from .proto files or serialized descriptor sets.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "configuration file (default "+config.FileName+" if present)")
	pf.StringSliceVar(&a.protos, "proto", nil, ".proto files to load (repeatable)")
	pf.StringSliceVarP(&a.searchPaths, "proto-path", "I", nil, "import search path (repeatable)")
	pf.StringSliceVar(&a.descriptorSets, "descriptor-set", nil, "serialized FileDescriptorSet to load")
	pf.StringVar(&a.profile, "profile", "", "codec option profile: default, secure, strict or fast")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error or off")
	pf.StringVar(&a.corpusDir, "corpus-dir", "", "golden sample store directory")

	root.AddCommand(
		newEncodeCmd(a),
		newDecodeCmd(a),
		newInspectCmd(a),
		newValidateCmd(a),
		newCompatCmd(a),
		newFormatCmd(a),
		newExtractCmd(a),
		newCorpusCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration file, then applies the environment and
// finally the command-line flags, each overriding the last.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("proto") {
		cfg.Protos = a.protos
	}
	if flags.Changed("proto-path") {
		cfg.SearchPaths = a.searchPaths
	}
	if flags.Changed("descriptor-set") {
		cfg.DescriptorSets = a.descriptorSets
	}
	if flags.Changed("profile") {
		name := strings.ToLower(strings.TrimSpace(a.profile))
		preset, ok := config.Profiles[name]
		if !ok {
			return fmt.Errorf("unknown profile %q", a.profile)
		}
		cfg.Profile = name
		cfg.Options = preset
	}
	if flags.Changed("corpus-dir") {
		cfg.CorpusDir = a.corpusDir
	}

	logging.ApplyEnv(&cfg.Log)
	if flags.Changed("log-level") {
		lvl, ok := logging.ParseLevel(a.logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", a.logLevel)
		}
		cfg.Log.Level = lvl
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	a.log = logging.New(cmd.ErrOrStderr(), cfg.Log)
	cfg.Options = cfg.Options.WithLogger(a.log)
	a.cfg = cfg
	a.log.Debug().Str("profile", cfg.Profile).Strs("protos", cfg.Protos).Msg("configuration loaded")
	return nil
}

// catalog loads the configured schema once.
func (a *app) catalog() (*schema.Catalog, error) {
	if a.cat != nil {
		return a.cat, nil
	}
	var (
		cat *schema.Catalog
		err error
	)
	switch {
	case len(a.cfg.Protos) > 0 && len(a.cfg.DescriptorSets) > 0:
		return nil, errors.New("use either .proto files or descriptor sets, not both")
	case len(a.cfg.DescriptorSets) > 1:
		return nil, errors.New("only one descriptor set may be loaded")
	case len(a.cfg.DescriptorSets) == 1:
		cat, err = schema.LoadDescriptorSet(a.cfg.DescriptorSets[0])
	case len(a.cfg.Protos) > 0:
		cat, err = schema.LoadFiles(a.cfg.Protos, a.cfg.SearchPaths...)
	default:
		return nil, errors.New("no schema: pass --proto or --descriptor-set, or set schema.protos in the config file")
	}
	if err != nil {
		return nil, err
	}
	a.log.Debug().Int("messages", len(cat.Messages())).Int("enums", len(cat.Enums())).Msg("schema loaded")
	a.cat = cat
	return cat, nil
}

// message resolves a full or unique short message name.
func (a *app) message(name string) (*schema.Message, error) {
	if name == "" {
		return nil, errors.New("--type is required")
	}
	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}
	return cat.Lookup(name)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wiremsg %s\n", wiremsg.VersionInfo())
			return err
		},
	}
}
