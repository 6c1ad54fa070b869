package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/linktune/linktune/cmd/linktune/commands"
	"github.com/linktune/linktune/pkg/rankexec"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cmd := commands.NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(rankexec.ErrorCode(err))
	}
}
