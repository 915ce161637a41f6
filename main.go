package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/sitemap2skill/internal/build"
	"github.com/dtnitsch/sitemap2skill/internal/inspect"
	"github.com/dtnitsch/sitemap2skill/internal/resolve"
	"github.com/dtnitsch/sitemap2skill/internal/runs"
	"github.com/dtnitsch/sitemap2skill/pkg/help"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "sitemap2skill",
		Usage:   "turn a website sitemap into a zipped AI skill bundle",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:      "build",
				Usage:     "fetch every page in a sitemap and package it as a skill bundle",
				ArgsUsage: "[sitemap-url]",
				Flags:     build.Flags(),
				Action:    build.BuildAction,
			},
			{
				Name:      "resolve",
				Usage:     "list the URLs a build would fetch",
				ArgsUsage: "[sitemap-url]",
				Flags:     resolve.Flags(),
				Action:    resolve.ResolveAction,
			},
			{
				Name:      "inspect",
				Usage:     "summarise a skill bundle and check its structure",
				ArgsUsage: "<bundle.zip>",
				Flags:     inspect.Flags(),
				Action:    inspect.InspectAction,
			},
			{
				Name:   "runs",
				Usage:  "list builds recorded with --history",
				Flags:  runs.ListFlags(),
				Action: runs.RunsAction,
				Subcommands: []*cli.Command{
					{
						Name:      "show",
						Usage:     "show one recorded build and its failed URLs",
						ArgsUsage: "<run_id>",
						Flags:     runs.Flags(),
						Action:    runs.ShowAction,
					},
				},
			},
			{
				Name:  "coldstart",
				Usage: "print a quick-start guide",
				Action: func(c *cli.Context) error {
					fmt.Fprint(c.App.Writer, help.ColdstartYAML)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
