package xivlauncher

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sjzar/xivlauncher/internal/launcher/auth"
	"github.com/sjzar/xivlauncher/internal/model"
)

var (
	accountLobby     string
	accountSteam     bool
	accountFreeTrial bool
	accountOTP       bool
	accountProfile   string

	rememberPassword bool
	rememberOTP      bool
	forget           bool
)

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd, accountAddCmd, accountRememberCmd)

	accountAddCmd.Flags().StringVar(&accountLobby, "lobby", "", "self-hosted lobby URL, selects the alternate login")
	accountAddCmd.Flags().BoolVar(&accountSteam, "steam", false, "Steam license")
	accountAddCmd.Flags().BoolVar(&accountFreeTrial, "free-trial", false, "free trial account")
	accountAddCmd.Flags().BoolVar(&accountOTP, "otp", false, "account uses a one-time password")
	accountAddCmd.Flags().StringVarP(&accountProfile, "profile", "p", "", "link the account to this profile")

	accountRememberCmd.Flags().BoolVar(&rememberPassword, "password", true, "remember the password")
	accountRememberCmd.Flags().BoolVar(&rememberOTP, "otp-secret", false, "remember the one-time password secret")
	accountRememberCmd.Flags().BoolVar(&forget, "forget", false, "delete everything remembered for the account")
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage login accounts",
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tBACKEND\tLICENSE\tOTP\tREMEMBERED")
		for _, a := range c.Store.Accounts() {
			password, err := c.Secrets.Password(a.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\n", a.ID, a.Name, a.Backend, a.License, a.UseOTP, password != "")
		}
		return w.Flush()
	},
}

var accountAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		a := &model.Account{
			ID:          uuid.NewString(),
			Name:        args[0],
			Backend:     model.BackendOfficial,
			License:     model.LicenseWindowsStandalone,
			IsFreeTrial: accountFreeTrial,
			UseOTP:      accountOTP,
		}
		if accountLobby != "" {
			a.Backend = model.BackendAlternate
			a.LobbyURL = accountLobby
		}
		if accountSteam {
			a.License = model.LicenseWindowsSteam
		}
		if err := c.Store.SaveAccount(a); err != nil {
			return err
		}

		if accountProfile != "" {
			p, err := c.Profile(accountProfile)
			if err != nil {
				return err
			}
			if _, err := c.Store.UpdateProfile(p.ID, func(p *model.Profile) { p.AccountID = a.ID }); err != nil {
				return err
			}
		}
		fmt.Println(a.ID)
		return nil
	},
}

var accountRememberCmd = &cobra.Command{
	Use:   "remember <account>",
	Short: "Store an account's password or one-time password secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		a, ok := c.Store.FindAccount(args[0])
		if !ok {
			return fmt.Errorf("account %q not found", args[0])
		}

		if forget {
			if err := c.Secrets.Delete(a.ID); err != nil {
				return err
			}
			a.RememberPassword = false
			a.RememberOTP = false
			return c.Store.SaveAccount(a)
		}

		if rememberPassword {
			password, err := readSecret(fmt.Sprintf("Password for %s: ", a.Name))
			if err != nil {
				return err
			}
			if err := c.Secrets.SetPassword(a.ID, password); err != nil {
				return err
			}
			a.RememberPassword = true
		}
		if rememberOTP {
			secret, err := readSecret("One-time password secret: ")
			if err != nil {
				return err
			}
			// reject secrets that cannot produce a code
			if _, err := auth.GenerateOTP(secret, c.Now()); err != nil {
				return err
			}
			if err := c.Secrets.SetOTPSecret(a.ID, secret); err != nil {
				return err
			}
			a.RememberOTP = true
			a.UseOTP = true
		}
		return c.Store.SaveAccount(a)
	},
}
