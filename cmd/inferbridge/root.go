package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferbridge/internal/common/fsutil"
	"inferbridge/internal/config"
	"inferbridge/internal/logging"
	"inferbridge/internal/registry"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "inferbridge",
		Short:         "On-device inference over GGUF models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("INFERBRIDGE_CONFIG"), "Config file (.yaml, .json or .toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug|info|warn|error|off (overrides config)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "Log format: console|json (overrides config)")

	root.AddCommand(
		newGenerateCmd(c),
		newTranscribeCmd(c),
		newModelsCmd(c),
		newServeCmd(c),
		newCompletionCmd(root),
	)
	return root
}

// setup loads the config file, applies flag overrides and installs the logger.
func (c *cli) setup() error {
	if c.configPath != "" {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		c.cfg = cfg
	}
	if c.logLevel != "" {
		c.cfg.LogLevel = c.logLevel
	}
	if c.logFormat != "" {
		c.cfg.LogFormat = c.logFormat
	}
	c.cfg.ApplyDefaults()
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	c.log = logging.Setup(c.cfg.LogLevel, c.cfg.LogFormat)
	return nil
}

// resolveModel accepts a model file path or a catalog name from the models
// directory and returns a verified absolute path.
func (c *cli) resolveModel(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("--model is required")
	}
	if p, err := fsutil.ModelFile(ref); err == nil {
		return p, nil
	}
	models, err := registry.LoadDir(c.cfg.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("model %q is not a file and models dir is unreadable: %w", ref, err)
	}
	m, ok := registry.Find(models, ref)
	if !ok {
		return "", fmt.Errorf("model %q not found in %s", ref, c.cfg.ModelsDir)
	}
	return fsutil.ModelFile(m.Path)
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	cmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	cmd.AddCommand(
		&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error {
			return root.GenBashCompletion(cmd.OutOrStdout())
		}},
		&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error {
			return root.GenZshCompletion(cmd.OutOrStdout())
		}},
		&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error {
			return root.GenFishCompletion(cmd.OutOrStdout(), true)
		}},
		&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error {
			return root.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		}},
	)
	return cmd
}
