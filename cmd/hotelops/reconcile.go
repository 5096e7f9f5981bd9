package main

import (
	"encoding/json"

	"github.com/urfave/cli/v2"

	"github.com/oomaallah/hotelops/internal/app"
	jobmetrics "github.com/oomaallah/hotelops/internal/jobs"
)

func reconcileCommand() *cli.Command {
	return &cli.Command{
		Name:  "reconcile",
		Usage: "check ledger balance, stock quantities and order totals",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "fix", Usage: "rewrite drifted order totals"},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			services, err := app.NewServices(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			defer services.Close()

			metrics := jobmetrics.NewMetrics(services.Metrics.Registerer())
			report, err := services.Maintenance(cfg, metrics).Reconcile(c.Context, c.Bool("fix"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.Clean() {
				return cli.Exit("discrepancies found", 2)
			}
			return nil
		},
	}
}
