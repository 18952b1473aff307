package xivlauncher

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(wineVersionCmd)
}

var wineVersionCmd = &cobra.Command{
	Use:   "wine-version [profile]",
	Short: "Print the compatibility layer version a profile uses",
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
		if c.Runner.IsNative() {
			fmt.Println("native")
			return nil
		}
		v := c.Runner.WineVersion(cmd.Context(), p)
		if v == "" {
			return fmt.Errorf("could not determine the wine version for %s", p.Name)
		}
		fmt.Println(v)
		return nil
	},
}
