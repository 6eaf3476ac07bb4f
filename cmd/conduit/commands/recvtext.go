package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"conduit"
	"conduit/internal/domain"
)

// recv-text <code>: join the sender's channel and print the message.
func recvTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv-text <code>",
		Short: "Receive a text message using a code from the sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := conduit.NewBlocking(conduit.Config{
				AppID:    appID,
				RelayURL: relayURL,
			})
			if err != nil {
				return err
			}
			if err := w.SetCode(domain.Code(args[0])); err != nil {
				return err
			}

			if verify {
				v, err := w.GetVerifier(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Verifier: %s\n", hex.EncodeToString(v))
			}

			msg, err := w.GetData(ctx, []byte("ok"))
			if err != nil {
				return err
			}
			fmt.Println(string(msg))
			_, err = w.Close(ctx)
			return err
		},
	}
}
