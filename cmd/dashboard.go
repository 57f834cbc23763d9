package cmd

import (
	"github.com/spf13/cobra"

	"github.com/psds-microservice/supportbot/internal/application"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the staff dashboard and JSON API",
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	app, err := application.NewDashboard(cfg, log)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return app.Run(ctx)
}
