package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	historycmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/history"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/version"
)

const rootLongDesc string = `chatrelay answers WhatsApp messages with an LLM.

It receives Twilio webhooks, keeps a short rolling history per sender,
asks the configured completion API for a reply and answers with TwiML.`

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         "WhatsApp to LLM relay",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
