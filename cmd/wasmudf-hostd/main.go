// Command wasmudf-hostd loads a precompiled guest component and logs
// the scalar UDFs it declares. It is the CLI-surface analogue of the
// teacher's StartFuseManager entry point (service/service.go), minus
// process supervision: there is no child process to launch here, only
// a single in-process component pool to stand up.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/wasmudf/sandbox-host/capconfig"
	"github.com/wasmudf/sandbox-host/component"
	"github.com/wasmudf/sandbox-host/service"
)

func main() {
	app := cli.NewApp()
	app.Name = "wasmudf-hostd"
	app.Usage = "load a precompiled WASM scalar-UDF component and report what it declares"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to a capability config TOML file",
		},
		cli.StringFlag{
			Name:  "precompiled",
			Usage: "path to a precompiled component artifact (see component.Store)",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "logrus level: trace, debug, info, warn, error",
		},
		cli.IntFlag{
			Name:  "instances",
			Value: 1,
			Usage: "number of component instances to keep in the pool",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level, err := logrus.ParseLevel(c.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	precompiledPath := c.String("precompiled")
	if precompiledPath == "" {
		return cli.NewExitError("missing required flag: -precompiled", 1)
	}

	ctx := context.Background()
	if err := service.Supported(ctx); err != nil {
		return fmt.Errorf("wazero runtime unsupported on this host: %w", err)
	}

	artifact, err := os.ReadFile(precompiledPath)
	if err != nil {
		return fmt.Errorf("read precompiled artifact: %w", err)
	}
	precompiled, err := component.Load(ctx, artifact)
	if err != nil {
		return fmt.Errorf("load precompiled component: %w", err)
	}

	var cfg capconfig.File
	if path := c.String("config"); path != "" {
		loaded, err := capconfig.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load capability config: %w", err)
		}
		cfg = *loaded
	}

	host, err := service.New(ctx, ".", &cfg, precompiled,
		service.WithInstancePoolSize(c.Int("instances")))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer host.Close(ctx)

	adapters, err := host.Adapters(ctx, nil)
	if err != nil {
		return fmt.Errorf("discover scalar UDFs: %w", err)
	}

	logrus.WithField("count", len(adapters)).Info("scalar UDFs declared by guest component")
	for _, a := range adapters {
		logrus.WithField("name", a.Name()).Info("udf")
	}
	return nil
}
