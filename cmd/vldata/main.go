// Command vldata inspects, packs and serves vision-language datasets.
//
// Usage:
//
//	vldata inspect -annotations foil_train.json -features train.vlf -vocab vocab.txt [-histogram lengths.png]
//	vldata pack -input features.jsonl -output train.vlf [-compression zstd]
//	vldata serve -annotations foil_train.json -features train.vlf -vocab vocab.txt [-addr :8093]
//
// Every subcommand accepts -config with a JSON file whose keys mirror the flag
// names (with underscores); flags given explicitly override the file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"inspect", "print dataset statistics, check feature coverage and plot caption lengths", runInspect},
	{"pack", "convert a JSON-lines feature dump into a .vlf feature store", runPack},
	{"serve", "serve dataset samples over HTTP", runServe},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "vldata: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return flag.ErrHelp
	}
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, args[1:], stdout, stderr)
		}
	}
	usage(stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: vldata <command> [flags]")
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}
