package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psds-microservice/supportbot/internal/application"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the chat bot (long polling)",
	RunE:  runBot,
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	app, err := application.NewBot(ctx, cfg, log)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
