package commands

import (
	"github.com/spf13/cobra"

	"github.com/hashlock-labs/htlc-swap/htlc"
)

type secretView struct {
	Secret   string `yaml:"secret"`
	Hashlock string `yaml:"hashlock"`
}

// Secret returns the secret command group.
func (c *Commands) Secret() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Secret commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a random secret and its hashlock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := htlc.NewSecret()
			if err != nil {
				return err
			}

			return printYAML(cmd, secretView{Secret: s.Hex(), Hashlock: s.Hashlock().Hex()})
		},
	})

	return cmd
}
