package xivlauncher

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sjzar/xivlauncher/internal/game/gamedata"
	"github.com/sjzar/xivlauncher/internal/launcher/conf"
	"github.com/sjzar/xivlauncher/internal/model"
)

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileAddCmd, profileSetCmd)
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage game profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		current := c.Settings().CurrentProfile
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tNAME\tGAME\tADD-ON")
		for _, p := range c.Store.Profiles() {
			mark := ""
			if p.ID == current {
				mark = "*"
			}
			addon := "disabled"
			if p.Dalamud.Enabled {
				addon = fmt.Sprintf("%s %s", p.Dalamud.Channel, p.Installed.DalamudVersion)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, p.ID, p.Name, p.Installed.GameVersion, addon)
		}
		return w.Flush()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Show a profile's settings and installed versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		p, err := c.Profile(firstArg(args))
		if err != nil {
			return err
		}
		fields, err := conf.ProfileFields(p)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "id\t%s\n", p.ID)
		for _, f := range fields {
			fmt.Fprintf(w, "%s\t%s\n", f[0], f[1])
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Println()
		fmt.Println(installedText(p))
		return nil
	},
}

func installedText(p *model.Profile) string {
	info := &gamedata.Info{
		BootVersion:       p.Installed.BootVersion,
		GameVersion:       p.Installed.GameVersion,
		ExpansionVersions: p.Installed.ExpansionVersions,
	}
	var b strings.Builder
	b.WriteString(info.VersionText())
	if p.Installed.WineVersion != "" {
		fmt.Fprintf(&b, "\nWine (%s)", p.Installed.WineVersion)
	}
	if p.Installed.DalamudVersion != "" {
		fmt.Fprintf(&b, "\nDalamud (%s, runtime %s, assets %d)",
			p.Installed.DalamudVersion, p.Installed.RuntimeVersion, p.Installed.DalamudAssets)
	}
	return b.String()
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		p := model.NewProfile(args[0])
		if err := c.Store.SaveProfile(p); err != nil {
			return err
		}
		if c.Settings().CurrentProfile == "" {
			if err := c.Store.UpdateSettings(func(s *conf.Settings) { s.CurrentProfile = p.ID }); err != nil {
				return err
			}
		}
		fmt.Println(p.ID)
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:     "set <profile> <key=value>...",
	Short:   "Change profile settings",
	Example: `xivlauncher profile set Main game_path=/games/ffxiv dalamud.enabled=true`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := openContext(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer c.Close()

		p, err := c.Profile(args[0])
		if err != nil {
			return err
		}

		updated := *p
		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("expected key=value, got %q", kv)
			}
			if key == "account" && value != "" {
				account, found := c.Store.FindAccount(value)
				if !found {
					return fmt.Errorf("account %q not found", value)
				}
				value = account.ID
			}
			if err := conf.SetProfileField(&updated, key, value); err != nil {
				return err
			}
		}

		_, err = c.Store.UpdateProfile(p.ID, func(p *model.Profile) { *p = updated })
		return err
	},
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
