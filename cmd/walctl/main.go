// walctl is the operator CLI for a waldb log directory: inspect its
// records, list and apply archive/trim candidates, and drive it from an
// interactive session.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "walctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return fmt.Errorf("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "stat":
		return cmdStat(rest)
	case "dump":
		return cmdDump(rest)
	case "archive":
		return cmdArchive(rest)
	case "trim":
		return cmdTrim(rest)
	case "repl":
		return cmdRepl(rest)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: walctl <command> [options] <log-dir>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  stat <dir>      Print logger status and write status.json")
	fmt.Fprintln(os.Stderr, "  dump <dir>      Print every record in the log directory")
	fmt.Fprintln(os.Stderr, "  archive <dir>   List log files safe to move to backup storage")
	fmt.Fprintln(os.Stderr, "  trim <dir>      Delete log files at or below --lsn (default: last LSN)")
	fmt.Fprintln(os.Stderr, "  repl <dir>      Run transactions and maintenance interactively")
}
