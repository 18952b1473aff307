package xivlauncher

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/xivlauncher/internal/launcher/coordinator"
	launcherctx "github.com/sjzar/xivlauncher/internal/launcher/ctx"
	"github.com/sjzar/xivlauncher/internal/model"
)

var configDir string

func init() {
	// windows only
	cobra.MousetrapHelpText = ""

	rootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "debug")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "config directory")
	rootCmd.PersistentPreRun = initLog
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Err(err).Msg("command execution failed")
	}
}

var rootCmd = &cobra.Command{
	Use:     "xivlauncher",
	Short:   "xivlauncher",
	Long:    `Logs in, keeps the Dalamud add-on current and starts FINAL FANTASY XIV.`,
	Example: `xivlauncher launch -p Main`,
	Args:    cobra.MinimumNArgs(0),
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// openContext loads the configuration and prints coordinator events.
func openContext(ctx context.Context, onExit func(*model.Process)) (*launcherctx.Context, error) {
	c, err := launcherctx.New(launcherctx.Options{
		ConfigDir: configDir,
		Notify:    printEvent,
		OnExit:    onExit,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Load(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func printEvent(e coordinator.Event) {
	if e.Err != nil {
		return
	}
	log.Info().Str("state", e.State.String()).Msg(e.Text)
}
