package main

import (
	"flag"
	"os"

	"github.com/lowrenn/inkroom/internal/platform/config"
	"github.com/lowrenn/inkroom/internal/tools/challengekey"
)

func main() {
	cfg, err := challengekey.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := challengekey.Run(cfg, os.Stdout); err != nil {
		config.Exitf("generate challenge: %v", err)
	}
}
