package main

import (
	"fmt"
	"os"
	"time"

	"github.com/quantave/backsim/config"
	"github.com/quantave/backsim/engine"
	"github.com/quantave/backsim/report"
	"github.com/quantave/backsim/store"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "execute a backtest described by a config file",
	ArgsUsage: "<config>",
	Action:    runBacktest,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the run config file",
		},
		&cli.BoolFlag{
			Name:  "trades",
			Usage: "print the realized trade detail table",
		},
	},
}

func runBacktest(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = c.Args().First()
	}
	if path == "" {
		return cli.ShowSubcommandHelp(c)
	}

	cfg, err := config.ReadConfigFromFile(path)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		verbose = true
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	bt, err := engine.NewFromConfig(c.Context, cfg, logger)
	if err != nil {
		return err
	}

	// at most one progress line per second, plus the final one
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)
	err = bt.SetProgressCallback(func(processed, total int64, now time.Time) {
		if processed != total && !limiter.Allow() {
			return
		}
		fmt.Fprintf(os.Stderr, "processed %d/%d ticks, sim time %s\n",
			processed, total, now.Format(time.RFC3339))
	})
	if err != nil {
		return err
	}

	go func() {
		<-c.Context.Done()
		bt.Stop()
	}()

	result, err := bt.Run()
	if err != nil {
		return err
	}

	settings := cfg.Report
	if c.Bool("trades") {
		settings.DetailedTrades = true
	}
	if !settings.GenerateReport {
		// console only
		settings.OutputPath = ""
	}
	if err = report.New(os.Stdout, logger).Generate(result, settings); err != nil {
		return err
	}

	if cfg.Store.Enabled {
		s, err := store.New(storePath(cfg.Store.Path), logger)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		if err = s.Save(result); err != nil {
			return err
		}
		fmt.Printf("result stored under run id %s\n", bt.RunID())
	}
	return nil
}
