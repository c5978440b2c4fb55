package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	zerolog "github.com/rs/zerolog/log"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/projecteru2/barge/cluster"
	"github.com/projecteru2/barge/cluster/calcium"
	"github.com/projecteru2/barge/log"
	"github.com/projecteru2/barge/printer"
	"github.com/projecteru2/barge/types"
	"github.com/projecteru2/barge/utils"
	"github.com/projecteru2/barge/version"
)

const exitInterrupted = 130

var (
	configPath string
	plain      bool
)

type env struct {
	cluster cluster.Cluster
	console *printer.Console
}

// setup loads config and makes the cluster for one command
func setup(c *cli.Context) (*env, error) {
	config, err := utils.LoadConfig(configPath)
	if err != nil {
		zerolog.Fatal().Err(err).Send()
	}
	if err := log.SetupLog(c.Context, config.LogLevel, config.SentryDSN); err != nil {
		zerolog.Fatal().Err(err).Send()
	}
	if endpoint := c.String("docker"); endpoint != "" {
		config.Docker.Endpoint = endpoint
	}
	cal, err := calcium.New(c.Context, config)
	if err != nil {
		return nil, err
	}
	return &env{cluster: cal, console: printer.NewConsole(os.Stdout, plain)}, nil
}

func main() {
	os.Exit(run())
}

func run() int {
	defer log.SentryDefer()
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Print(version.String())
	}

	app := cli.NewApp()
	app.Name = version.NAME
	app.Usage = "build and deploy container projects to fleets and local devices"
	app.Version = version.VERSION
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Value:       "/etc/barge/barge.yaml",
			Usage:       "config file path, in yaml",
			Destination: &configPath,
			EnvVars:     []string{"BARGE_CONFIG_PATH"},
		},
		&cli.BoolFlag{
			Name:        "plain",
			Usage:       "no colours in output",
			Destination: &plain,
			EnvVars:     []string{"BARGE_PLAIN"},
		},
	}
	app.Commands = []*cli.Command{
		buildCommand(),
		deployCommand(),
		pushCommand(),
	}
	app.ExitErrHandler = func(*cli.Context, error) {}

	// SIGINT cancels every pipeline, cleanup runs on detached contexts
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = log.WithRunID(ctx, utils.RandomHex()[:8])
	err := app.RunContext(ctx, os.Args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, types.ErrInterrupted) || ctx.Err() != nil:
		fmt.Fprintln(os.Stderr, "interrupted")
		return exitInterrupted
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
	return 1
}
