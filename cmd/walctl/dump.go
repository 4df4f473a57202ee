package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"waldb/internal/logfilemgr"
	"waldb/internal/record"
)

func cmdDump(args []string) error {
	flagSet := flag.NewFlagSet("dump", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	onlyType := flagSet.String("type", "", "only print records of this type name (e.g. commit)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	dir, err := requireDir(flagSet.Args())
	if err != nil {
		return err
	}

	lfm, err := logfilemgr.Init(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for _, entry := range lfm.Entries() {
		name := logfilemgr.FileName(entry.Index)
		if err := dumpOneFile(w, filepath.Join(dir, name), *onlyType); err != nil {
			return fmt.Errorf("dump %s: %w", name, err)
		}
	}
	return nil
}

func dumpOneFile(w *bufio.Writer, path, onlyType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := skipLogHeader(f); err != nil {
		return err
	}

	r := bufio.NewReader(f)
	for {
		rec, _, err := record.ReadFrameForward(r)
		if err != nil {
			return nil
		}
		if onlyType != "" && rec.Type.String() != onlyType {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", rec.LSN, describeRecord(rec))
	}
}

func describeRecord(rec *record.Record) string {
	switch {
	case rec.Comment != "":
		return fmt.Sprintf("%s txn=%d comment=%q", rec.Type, rec.TxnID, rec.Comment)
	case len(rec.LiveTxn) > 0:
		return fmt.Sprintf("%s live=%v", rec.Type, rec.LiveTxn)
	default:
		return fmt.Sprintf("%s txn=%d file=%d block=%d", rec.Type, rec.TxnID, rec.FileNum, rec.Block)
	}
}

// skipLogHeader advances past the fixed-size magic+version header every
// log file starts with, without validating it — dump is a best-effort
// inspection tool, not a correctness check.
func skipLogHeader(f *os.File) error {
	const headerLen = 12
	if _, err := f.Seek(headerLen, 0); err != nil {
		return err
	}
	return nil
}

func requireDir(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("missing log directory argument")
	}
	return args[0], nil
}
