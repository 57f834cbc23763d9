package main

import (
	"log/slog"
	"os"

	"github.com/psds-microservice/supportbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		slog.Error("supportbot", "error", err)
		os.Exit(1)
	}
}
