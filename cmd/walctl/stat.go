package main

import (
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"waldb/internal/logger"
)

func cmdStat(args []string) error {
	flagSet := flag.NewFlagSet("stat", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	writeFile := flagSet.Bool("write-status-file", true, "also write status.json in the log directory")
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

	st := l.Status()
	fmt.Printf("log files:       %d\n", st.NumLogFiles)
	fmt.Printf("last lsn:        %s\n", st.LastLSN)
	fmt.Printf("fsynced lsn:     %s\n", st.FsyncedLSN)
	fmt.Printf("input lock ctr:  %d\n", st.InputLockCtr)
	fmt.Printf("output cond ctr: %d\n", st.OutputConditionLockCtr)
	fmt.Printf("swap ctr:        %d\n", st.SwapCtr)

	if *writeFile {
		if err := writeStatusFile(dir, newStatusSnapshot(st, time.Now())); err != nil {
			return err
		}
	}
	return nil
}
