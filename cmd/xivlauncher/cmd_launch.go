package xivlauncher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	launcherctx "github.com/sjzar/xivlauncher/internal/launcher/ctx"
	"github.com/sjzar/xivlauncher/internal/model"
)

var (
	launchProfile   string
	launchAuto      bool
	launchImmediate bool
	launchOTP       string
)

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().StringVarP(&launchProfile, "profile", "p", "", "profile id or name")
	launchCmd.Flags().BoolVar(&launchAuto, "auto", false, "log in with remembered credentials after a countdown")
	launchCmd.Flags().BoolVar(&launchImmediate, "immediate", false, "start the game without logging in or updating")
	launchCmd.Flags().StringVar(&launchOTP, "otp", "", "one-time password")
	launchCmd.MarkFlagsMutuallyExclusive("auto", "immediate")
}

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Log in, update the add-on and start the game",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		exited := make(chan *model.Process, 1)
		c, err := openContext(ctx, func(p *model.Process) { exited <- p })
		if err != nil {
			return err
		}
		defer c.Close()

		p, err := c.Profile(launchProfile)
		if err != nil {
			return err
		}

		var proc *model.Process
		switch {
		case launchImmediate:
			proc, err = c.Coordinator.ImmediatelyLaunch(ctx, p)
		case launchAuto:
			delay := time.Duration(c.Settings().AutoLoginDelay) * time.Second
			proc, err = c.Coordinator.AutoLogin(ctx, p, delay)
		default:
			var creds model.Credentials
			creds, err = promptCredentials(c, p)
			if err != nil {
				return err
			}
			proc, err = c.Coordinator.BeginLogin(ctx, p, creds)
		}
		if err != nil {
			return err
		}
		fmt.Printf("game started, pid %d\n", proc.PID)

		if c.Settings().CloseWhenLaunched {
			return nil
		}
		return waitExit(ctx, exited)
	},
}

func waitExit(ctx context.Context, exited <-chan *model.Process) error {
	select {
	case p := <-exited:
		fmt.Printf("game exited, code %d\n", p.ExitCode)
	case <-ctx.Done():
		log.Info().Msg("stopped waiting for the game")
	}
	return nil
}

// promptCredentials fills in whatever the secret store does not remember.
func promptCredentials(c *launcherctx.Context, p *model.Profile) (model.Credentials, error) {
	if !p.RequiresLogin() {
		return model.Credentials{}, nil
	}
	account, ok := c.Store.AccountFor(p)
	if !ok {
		return model.Credentials{}, fmt.Errorf("profile %q has no account, see `xivlauncher account add`", p.Name)
	}

	creds := model.Credentials{Username: account.Name, OneTimePassword: launchOTP}

	password, err := c.Secrets.Password(account.ID)
	if err != nil {
		return creds, err
	}
	if password == "" {
		if password, err = readSecret(fmt.Sprintf("Password for %s: ", account.Name)); err != nil {
			return creds, err
		}
	}
	creds.Password = password

	if account.UseOTP && creds.OneTimePassword == "" {
		code, err := rememberedOTP(c, account)
		if err != nil {
			return creds, err
		}
		if code == "" {
			if code, err = readLine("One-time password: "); err != nil {
				return creds, err
			}
		}
		creds.OneTimePassword = code
	}
	return creds, nil
}
