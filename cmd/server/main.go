// @title                      NineX Admin API
// @version                    1.0
// @description                License and credential administration over the Airtable record store with Telegram 2FA.
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"ninex/internal/app"
	"ninex/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath string

	flagSet := pflag.NewFlagSet("ninex", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the YAML config file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	return app.Run(configPath)
}
