package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"conduit"
)

// send-text <message>: allocate a code, hand it to the peer out-of-band,
// then deliver the message.
func sendTextCmd() *cobra.Command {
	var codeLength int
	cmd := &cobra.Command{
		Use:   "send-text <message>",
		Short: "Send a text message to whoever enters the printed code",
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

			code, err := w.GetCode(ctx, codeLength)
			if err != nil {
				return err
			}
			fmt.Printf("Conduit code is: %s\n", code)
			fmt.Println("On the other computer, run: conduit recv-text " + string(code))

			if verify {
				v, err := w.GetVerifier(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Verifier: %s\n", hex.EncodeToString(v))
			}

			reply, err := w.GetData(ctx, []byte(args[0]))
			if err != nil {
				return err
			}
			if string(reply) != "ok" {
				fmt.Printf("peer says: %s\n", reply)
			}
			_, err = w.Close(ctx)
			return err
		},
	}
	cmd.Flags().IntVar(&codeLength, "code-length", 2, "number of words in the code")
	return cmd
}
