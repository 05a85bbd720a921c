package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/quantave/backsim/signaler"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var verbose bool

func main() {
	app := cli.NewApp()
	app.Name = "backsim"
	app.Usage = "deterministic historical backtesting of trading strategies"
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:        "verbose",
			Aliases:     []string{"v"},
			Usage:       "enable debug logging",
			Destination: &verbose,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		strategiesCommand,
		resultsCommand,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-signaler.WaitForInterrupt()
		fmt.Fprintln(os.Stderr, "interrupt received, stopping")
		cancel()
	}()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
