package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/quantave/backsim/strategies"
	"github.com/urfave/cli/v2"
)

var strategiesCommand = &cli.Command{
	Name:   "strategies",
	Usage:  "list the available strategies",
	Action: listStrategies,
}

func listStrategies(_ *cli.Context) error {
	tbl := tablewriter.NewWriter(os.Stdout)
	tbl.Header("Name", "Description")
	for _, s := range strategies.GetStrategies() {
		tbl.Append(s.Name(), s.Description())
	}
	tbl.Render()
	return nil
}
