// Package difyvoicecmder is the root difyvoice command.
package difyvoicecmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/difyvoice/cmd/difyvoice/chat"
	configcmder "github.com/papercomputeco/difyvoice/cmd/difyvoice/config"
	envcmder "github.com/papercomputeco/difyvoice/cmd/difyvoice/env"
	servecmder "github.com/papercomputeco/difyvoice/cmd/difyvoice/serve"
	versioncmder "github.com/papercomputeco/difyvoice/cmd/version"
)

const difyvoiceLongDesc string = `difyvoice runs a voice agent backed by a Dify chat application.

Answers are streamed from Dify fragment by fragment, and every call records
completion metrics (duration, time to first token, token counts).

Commands:
  difyvoice chat       Talk to the agent in text mode
  difyvoice serve      Run the metrics API
  difyvoice env        Edit the agent env file (.env.local)
  difyvoice config     Manage persistent configuration`

const difyvoiceShortDesc string = "difyvoice - Dify-backed voice agent"

func NewDifyVoiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "difyvoice",
		Short:        difyvoiceShortDesc,
		Long:         difyvoiceLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .difyvoice/ config directory")
	cmd.PersistentFlags().String("log-file", "", "Also append JSON logs, including debug records, to this file")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(envcmder.NewEnvCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
