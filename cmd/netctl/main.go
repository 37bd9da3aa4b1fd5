// Package main is the netctl service entry point.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/radio-control/netctl/internal/api"
	"github.com/radio-control/netctl/internal/config"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file (default $"+config.EnvConfigFile+")")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(api.Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "netctl: %v\n", err)
		os.Exit(1)
	}

	newApp(cfg).Run()
}
