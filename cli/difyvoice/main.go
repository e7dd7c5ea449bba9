package main

import (
	"os"

	difyvoicecmder "github.com/papercomputeco/difyvoice/cmd/difyvoice"
)

func main() {
	cmd := difyvoicecmder.NewDifyVoiceCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
