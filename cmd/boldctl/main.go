// boldctl talks to Bold smart cylinders over Bluetooth LE.
//
// Usage:
//
//	boldctl <command> [options]
//
// Commands:
//
//	scan      list nearby cylinders
//	activate  unlock a cylinder with stored or file based material
//	store     save cloud API material to the system keyring
//	demo      activate an emulated cylinder over an in-memory link
//
// Example:
//
//	boldctl store -handshakes handshakes.json -commands commands.json
//	boldctl activate -device 1234567890
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/logging"
	"github.com/sirupsen/logrus"
)

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, lf logging.LoggerFactory, args []string) error
}

var commands = []command{
	{"scan", "list nearby cylinders", runScan},
	{"activate", "unlock a cylinder", runActivate},
	{"store", "save cloud API material to the keyring", runStore},
	{"demo", "activate an emulated cylinder", runDemo},
}

func main() {
	level := flag.String("log", "info", "Log level (trace, debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	lf, err := newLoggerFactory(os.Stderr, *level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name := flag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(ctx, lf, flag.Args()[1:]); err != nil {
			logrus.Fatalf("%s: %v", name, err)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
	printUsage()
	os.Exit(2)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [command options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}
