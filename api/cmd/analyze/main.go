package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"healthtech/api/internal/config"
	"healthtech/api/internal/logging"
	"healthtech/api/internal/uploader"
)

func newApp(out io.Writer) *cli.App {
	var server string
	return &cli.App{
		Name:      "analyze",
		Usage:     "Upload a prescription or blood report image and print the analysis",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Usage:       "Base URL of the healthtech server",
				Aliases:     []string{"s"},
				Value:       config.ServerURL(),
				Destination: &server,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("usage: analyze [--server URL] FILE")
			}
			f, err := uploader.ReadFile(c.Args().First())
			if err != nil {
				return err
			}
			log.Debug().Str("server", server).Str("file", f.Name).Int("bytes", len(f.Data)).Msg("uploading")

			w := uploader.NewWidget(uploader.NewClient(server, nil))
			w.Drop(f)
			if _, err := w.Submit(c.Context); err != nil {
				return errors.New(w.State().Error)
			}
			_, err = fmt.Fprintln(out, w.State().Display())
			return err
		},
	}
}

func main() {
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	// stdout carries the analysis
	log.Logger = logging.New(os.Stderr, os.Getenv("LOG_FORMAT"))
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
