// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/domsnap/internal/config"
	"github.com/xkilldash9x/domsnap/internal/observability"
)

const envPrefix = "DOMSNAP"

// app carries the state shared by one command tree: the viper instance,
// the loaded configuration and the seams tests replace.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Interface
	logger  *zap.Logger

	newCapturer func(ctx context.Context, a *app) (Capturer, error)
	openStore   func(ctx context.Context, a *app) (SnapshotStore, func(), error)
}

func newApp() *app {
	return &app{
		v:           viper.New(),
		newCapturer: newBrowserCapturer,
		openStore:   openPostgresStore,
	}
}

// NewRootCommand builds a fresh command tree. Every call gets its own
// configuration state.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "domsnap",
		Short:         "domsnap captures hybrid DOM and accessibility snapshots of web pages.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initializeConfig(cmd); err != nil {
				return err
			}
			cfg, err := config.NewConfigFromViper(a.v)
			if err != nil {
				return err
			}
			a.cfg = cfg
			observability.InitializeLogger(cfg.Logger())
			a.logger = observability.GetLogger()
			a.logger.Debug("Configuration loaded.", zap.String("version", Version))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newSnapshotCmd(a),
		newDiffCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the root command with ctx and reports failures on stderr.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

// initializeConfig layers defaults, the config file, DOMSNAP_* variables and
// flags, in increasing precedence.
func (a *app) initializeConfig(cmd *cobra.Command) error {
	config.SetDefaults(a.v)

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		a.v.Set("logger.level", f.Value.String())
	}
	return nil
}
