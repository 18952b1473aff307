package xivlauncher

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	updateProfile string
	maintainNow   bool
)

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVarP(&updateProfile, "profile", "p", "", "profile id or name")

	rootCmd.AddCommand(maintainCmd)
	maintainCmd.Flags().BoolVar(&maintainNow, "now", false, "run one pass before waiting for the schedule")
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Install or update the add-on for a profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := openContext(ctx, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		p, err := c.Profile(updateProfile)
		if err != nil {
			return err
		}
		unlock, err := c.Guard.Lock(ctx, p.ID)
		if err != nil {
			return err
		}
		defer unlock()

		err = c.Provisioner.UpdateWithNotifier(ctx, p, func(phase string) {
			log.Info().Str("profile", p.Name).Msg(phase)
		})
		if err != nil {
			return err
		}
		fmt.Printf("%s: add-on %s, runtime %s, assets %d\n",
			p.Name, p.Installed.DalamudVersion, p.Installed.RuntimeVersion, p.Installed.DalamudAssets)
		return nil
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Keep add-on installs current on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := openContext(ctx, nil)
		if err != nil {
			return err
		}
		defer c.Close()

		c.Watch(ctx)
		if maintainNow {
			for _, r := range c.Maintenance.RunOnce(ctx) {
				switch {
				case r.Skipped:
					fmt.Printf("%s: busy\n", r.Profile)
				case r.Err != nil:
					fmt.Printf("%s: %v\n", r.Profile, r.Err)
				default:
					fmt.Printf("%s: up to date\n", r.Profile)
				}
			}
		}
		if err := c.StartMaintenance(); err != nil {
			return err
		}

		<-ctx.Done()
		return nil
	},
}
