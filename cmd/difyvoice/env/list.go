package envcmder

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/difyvoice/pkg/cliui"
	"github.com/papercomputeco/difyvoice/pkg/envfile"
)

const listShortDesc string = "List the agent env file with secrets masked"

func newListCmd(cmder *envCommander) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmder.resolveEnvFile(cmd)
			if err != nil {
				return err
			}
			return runList(cmd.OutOrStdout(), path)
		},
	}
}

func runList(w io.Writer, path string) error {
	env, err := envfile.Read(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Env file:"),
		cliui.DimStyle.Render(path),
	)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := env[k]
		if isSecret(k) {
			v = cliui.MaskSecret(v)
		}
		fmt.Fprintf(w, "  %s\n", cliui.KeyValue(k, v))
	}

	fmt.Fprintln(w)
	return nil
}

func isSecret(key string) bool {
	upper := strings.ToUpper(key)
	return strings.HasSuffix(upper, "_KEY") || strings.HasSuffix(upper, "_TOKEN") || strings.Contains(upper, "SECRET")
}
