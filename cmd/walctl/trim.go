package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"waldb/internal/logger"
	"waldb/pkg/types"
)

func cmdTrim(args []string) error {
	flagSet := flag.NewFlagSet("trim", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	lsn := flagSet.Uint64("lsn", 0, "trim log files whose highest LSN is at or below this LSN (default: last LSN in the log)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	dir, err := requireDir(flagSet.Args())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	l, err := logger.Open(dir, cfg.loggerOptions())
	if err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	defer l.Close()

	trimLSN := types.LSN(*lsn)
	if !flagSet.Changed("lsn") {
		trimLSN = l.LastLSN()
	}

	before := l.Status().NumLogFiles
	if err := l.MaybeTrimLog(trimLSN); err != nil {
		return fmt.Errorf("trim %s: %w", dir, err)
	}
	after := l.Status().NumLogFiles

	fmt.Printf("trimmed %d log file(s), %d remaining\n", before-after, after)
	return nil
}
