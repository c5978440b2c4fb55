package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	cli "github.com/urfave/cli/v2"

	"github.com/projecteru2/barge/types"
)

func projectFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "source", Aliases: []string{"s"}, Value: ".", Usage: "project directory"},
		&cli.StringFlag{Name: "dockerfile", Usage: "alternative dockerfile, relative to the project directory"},
		&cli.StringFlag{Name: "projectName", Aliases: []string{"n"}, Usage: "project name, defaults to the directory name"},
		&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "tag appended to generated image names"},
		&cli.BoolFlag{Name: "nogitignore", Aliases: []string{"G"}, Usage: "ignore .gitignore files, .dockerignore still applies"},
		&cli.BoolFlag{Name: "convert-eol", Aliases: []string{"l"}, Usage: "convert line endings of text files from CRLF to LF"},
		&cli.BoolFlag{Name: "nocache", Usage: "build without cache"},
		&cli.BoolFlag{Name: "pull", Usage: "always pull base images"},
	}
}

func projectOptions(c *cli.Context) types.ProjectOptions {
	return types.ProjectOptions{
		Path:       c.String("source"),
		Name:       c.String("projectName"),
		Dockerfile: c.String("dockerfile"),
		Image:      c.String("image"),
		Tag:        c.String("tag"),
	}
}

func convertEOL(c *cli.Context) *bool {
	if !c.IsSet("convert-eol") {
		return nil
	}
	v := c.Bool("convert-eol")
	return &v
}

func buildArgs(c *cli.Context) (map[string]string, error) {
	args := map[string]string{}
	for _, arg := range c.StringSlice("buildArg") {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, errors.Wrapf(types.ErrConflictingOptions, "bad build arg %s", arg)
		}
		args[key] = value
	}
	return args, nil
}

func buildFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "emulated", Aliases: []string{"e"}, Usage: "build ARM images on other hosts with qemu"},
		&cli.StringSliceFlag{Name: "buildArg", Aliases: []string{"B"}, Usage: "build argument K=V, repeatable"},
		&cli.StringSliceFlag{Name: "cache-from", Usage: "images to use as build cache, repeatable"},
	}
}

func buildOptions(c *cli.Context) (*types.BuildOptions, error) {
	args, err := buildArgs(c)
	if err != nil {
		return nil, err
	}
	return &types.BuildOptions{
		Arch:        c.String("arch"),
		DeviceType:  c.String("device-type"),
		Emulated:    c.Bool("emulated"),
		NoGitignore: c.Bool("nogitignore"),
		ConvertEOL:  convertEOL(c),
		NoCache:     c.Bool("nocache"),
		Pull:        c.Bool("pull"),
		BuildArgs:   args,
		CacheFrom:   c.StringSlice("cache-from"),
	}, nil
}

func buildCommand() *cli.Command {
	flags := append(projectFlags(), buildFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "arch", Aliases: []string{"A"}, Usage: "target architecture"},
		&cli.StringFlag{Name: "device-type", Aliases: []string{"d"}, Usage: "target device type"},
		&cli.StringFlag{Name: "docker", Aliases: []string{"P"}, Usage: "docker endpoint, defaults to the configured one"},
	)
	return &cli.Command{
		Name:  "build",
		Usage: "build a project locally",
		Flags: flags,
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.cluster.Finalizer()
			opts, err := buildOptions(c)
			if err != nil {
				return err
			}
			opts.Sink = e.console
			projectOpts := projectOptions(c)
			images, err := e.cluster.Build(c.Context, &projectOpts, opts)
			for _, image := range images {
				if image.Successful {
					fmt.Printf("Built %s (%s)\n", image.Name, units.HumanSize(float64(image.Props.Size)))
				}
			}
			return err
		},
	}
}

func deployCommand() *cli.Command {
	flags := append(projectFlags(), buildFlags()...)
	flags = append(flags,
		&cli.StringFlag{Name: "image", Usage: "deploy this image instead of building the project"},
		&cli.BoolFlag{Name: "build", Aliases: []string{"b"}, Usage: "build even if images exist locally"},
		&cli.BoolFlag{Name: "nologupload", Usage: "do not upload build logs"},
	)
	return &cli.Command{
		Name:      "deploy",
		Usage:     "build a project and create a release of it on a fleet",
		ArgsUsage: "<fleet>",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.Wrap(types.ErrConflictingOptions, "deploy takes exactly one fleet")
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.cluster.Finalizer()
			buildOpts, err := buildOptions(c)
			if err != nil {
				return err
			}
			release, err := e.cluster.Deploy(c.Context, &types.DeployOptions{
				Fleet:         c.Args().First(),
				Project:       projectOptions(c),
				Build:         *buildOpts,
				ForceBuild:    c.Bool("build"),
				SkipLogUpload: c.Bool("nologupload"),
				Sink:          e.console,
			})
			if release != nil {
				fmt.Printf("Release %s: %s\n", release.Commit, release.Status)
			}
			return err
		},
	}
}

func pushCommand() *cli.Command {
	flags := append(projectFlags(),
		&cli.BoolFlag{Name: "nolive", Usage: "do not watch for changes after the push"},
		&cli.BoolFlag{Name: "nologs", Usage: "do not stream device logs after the push"},
		&cli.StringSliceFlag{Name: "env", Usage: "environment variable K=V or service:K=V, repeatable"},
		&cli.StringSliceFlag{Name: "service", Usage: "only show logs of this service, repeatable"},
	)
	return &cli.Command{
		Name:      "push",
		Usage:     "build a project on a local mode device and run it there",
		ArgsUsage: "<device-ip>",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.Wrap(types.ErrConflictingOptions, "push takes exactly one device address")
			}
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.cluster.Finalizer()
			return e.cluster.DeployToDevice(c.Context, &types.DeviceDeployOptions{
				DeviceHost:  c.Args().First(),
				Project:     projectOptions(c),
				Live:        !c.Bool("nolive"),
				Logs:        !c.Bool("nologs"),
				Env:         c.StringSlice("env"),
				Services:    c.StringSlice("service"),
				NoGitignore: c.Bool("nogitignore"),
				ConvertEOL:  convertEOL(c),
				NoCache:     c.Bool("nocache"),
				Pull:        c.Bool("pull"),
				Sink:        e.console,
			})
		},
	}
}
