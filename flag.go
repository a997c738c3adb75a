package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf         bool
	configPath string
	logLevel   string
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tileserv version: tileserv/v0.1.0
Usage: tileserv [-h] [-c filename] [-l logLevel]
`)
	flag.PrintDefaults()
}
