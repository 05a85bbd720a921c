package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/quantave/backsim/report"
	"github.com/quantave/backsim/store"
	"github.com/urfave/cli/v2"
)

const defaultStorePath = "backsim-results"

func storePath(configured string) string {
	if configured != "" {
		return configured
	}
	return defaultStorePath
}

var storeFlag = &cli.StringFlag{
	Name:  "store",
	Usage: "path to the result store directory",
	Value: defaultStorePath,
}

var resultsCommand = &cli.Command{
	Name:  "results",
	Usage: "manage stored run results",
	Subcommands: []*cli.Command{
		{
			Name:   "list",
			Usage:  "list stored results",
			Action: listResults,
			Flags:  []cli.Flag{storeFlag},
		},
		{
			Name:      "show",
			Usage:     "print one stored result",
			ArgsUsage: "<run-id>",
			Action:    showResult,
			Flags: []cli.Flag{
				storeFlag,
				&cli.BoolFlag{
					Name:  "trades",
					Usage: "print the realized trade detail table",
				},
				&cli.BoolFlag{
					Name:  "json",
					Usage: "print the raw result JSON instead of tables",
				},
			},
		},
		{
			Name:      "delete",
			Usage:     "delete one stored result",
			ArgsUsage: "<run-id>",
			Action:    deleteResult,
			Flags:     []cli.Flag{storeFlag},
		},
	},
}

func openStore(c *cli.Context) (*store.Store, error) {
	return store.New(c.String("store"), nil)
}

func listResults(c *cli.Context) error {
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	summaries, err := s.List()
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no stored results")
		return nil
	}
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Run ID", "Nickname", "Strategy", "Start", "End", "Net PnL")
	for i := range summaries {
		tbl.Append(
			summaries[i].RunID,
			summaries[i].Nickname,
			summaries[i].Strategy,
			summaries[i].StartTime.Format(time.RFC3339),
			summaries[i].EndTime.Format(time.RFC3339),
			summaries[i].NetPnL.StringFixed(2),
		)
	}
	tbl.Render()
	return nil
}

func showResult(c *cli.Context) error {
	runID := c.Args().First()
	if runID == "" {
		return cli.ShowSubcommandHelp(c)
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	result, err := s.Load(runID)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		payload, err := result.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	}

	w := report.New(os.Stdout, nil)
	if err = w.PrintSummary(result); err != nil {
		return err
	}
	if c.Bool("trades") {
		return w.PrintTrades(result)
	}
	return nil
}

func deleteResult(c *cli.Context) error {
	runID := c.Args().First()
	if runID == "" {
		return cli.ShowSubcommandHelp(c)
	}
	s, err := openStore(c)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err = s.Delete(runID); err != nil {
		return err
	}
	fmt.Printf("deleted result %s\n", runID)
	return nil
}
