package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ifureduce/pkg/config"
)

// commandContext carries the configuration and logger shared by all
// subcommands. Flags are bound before Execute, so values are resolved
// lazily in load().
type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	cfg *config.Config
	log zerolog.Logger
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{configFlag: configFlag, verboseFlag: verboseFlag}
}

// load resolves the configuration file and builds the console logger.
// A missing --config falls back to the built-in defaults.
func (c *commandContext) load() error {
	if c.cfg != nil {
		return nil
	}
	if *c.configFlag == "" {
		c.cfg = config.DefaultConfig()
	} else {
		cfg, err := config.LoadConfig(*c.configFlag)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	level := zerolog.InfoLevel
	if *c.verboseFlag || c.cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	c.log = zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()
	return nil
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	ctx := newCommandContext(&configFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:           "ifureduce",
		Short:         "Reduce IFU spectrograph exposures into reconstructed images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newReduceCommand(ctx))
	rootCmd.AddCommand(newBiasTemplateCommand(ctx))
	rootCmd.AddCommand(newFlatCommand(ctx))
	rootCmd.AddCommand(newConfigInitCommand())

	return rootCmd
}
