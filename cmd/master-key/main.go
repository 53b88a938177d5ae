package main

import (
	"flag"
	"os"

	"github.com/louisbranch/socialconnect/internal/platform/config"
	"github.com/louisbranch/socialconnect/internal/tools/masterkey"
)

func main() {
	cfg, err := masterkey.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := masterkey.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate key: %v", err)
	}
}
