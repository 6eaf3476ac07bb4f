package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAppID = "conduit.example.org/text"

var (
	relayURL string
	appID    string
	verify   bool
)

// Execute runs the CLI.
func Execute() error {
	root := &cobra.Command{
		Use:   "conduit",
		Short: "Exchange messages through a code-authenticated rendezvous channel",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags win; CONDUIT_RELAY / CONDUIT_APPID fill the gaps.
			viper.SetEnvPrefix("conduit")
			viper.AutomaticEnv()
			flags := cmd.Root().PersistentFlags()
			if err := viper.BindPFlag("relay", flags.Lookup("relay")); err != nil {
				return err
			}
			if err := viper.BindPFlag("appid", flags.Lookup("appid")); err != nil {
				return err
			}
			relayURL = viper.GetString("relay")
			appID = viper.GetString("appid")
			return nil
		},
	}

	root.PersistentFlags().StringVar(&relayURL, "relay", "http://127.0.0.1:4000", "rendezvous relay base URL")
	root.PersistentFlags().StringVar(&appID, "appid", defaultAppID, "application identifier (must match the peer)")
	root.PersistentFlags().BoolVar(&verify, "verify", false, "print the verifier for out-of-band comparison")

	root.AddCommand(sendTextCmd(), recvTextCmd())
	return root.Execute()
}
