package envcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/difyvoice/pkg/cliui"
	"github.com/papercomputeco/difyvoice/pkg/envfile"
)

const setLongDesc string = `Set a variable in the agent env file.

Every existing "KEY=" line is rewritten; when the key is absent the
assignment is appended. The env file must already exist.

Examples:
  difyvoice env set AGENT_NAME lawyer
  difyvoice env set DIFY_BASE_URL https://api.dify.ai/v1/chat-messages`

const setShortDesc string = "Set a variable in the agent env file"

func newSetCmd(cmder *envCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmder.resolveEnvFile(cmd)
			if err != nil {
				return err
			}
			return runSet(cmd.OutOrStdout(), path, args[0], args[1])
		},
	}
}

func runSet(w io.Writer, path, key, value string) error {
	if err := envfile.Set(path, key, value); err != nil {
		return fmt.Errorf("updating env file: %w", err)
	}

	shown := value
	if isSecret(key) {
		shown = cliui.MaskSecret(value)
	}

	fmt.Fprintf(w, "  %s Set %s = %s %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(shown),
		cliui.DimStyle.Render("("+path+")"),
	)
	return nil
}
