package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"waldb/internal/collab"
	"waldb/internal/logger"
	"waldb/internal/record"
	"waldb/pkg/types"
)

func cmdRepl(args []string) error {
	dir, err := requireDir(args)
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

	r := &REPL{dir: dir, l: l, txns: collab.NewTxnManager(l), activeTxns: make(map[uint64]*collab.Txn)}
	return r.Run()
}

// REPL is the interactive command loop over an open log directory.
type REPL struct {
	dir        string
	l          *logger.Logger
	txns       *collab.TxnManager
	liner      *liner.State
	activeTxns map[uint64]*collab.Txn
}

func replHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".walctl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(replHistoryFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("walctl - log directory %s\n", r.dir)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("walctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "status", "stat":
			r.cmdStatus()

		case "begin":
			r.cmdBegin()

		case "commit":
			r.cmdCommit(args)

		case "abort":
			r.cmdAbort(args)

		case "comment":
			r.cmdComment(args)

		case "fsync":
			r.cmdFsync(args)

		case "archive":
			r.cmdArchive()

		case "trim":
			r.cmdTrim(args)

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := replHistoryFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"status", "begin", "commit", "abort", "comment",
		"fsync", "archive", "trim", "help", "exit", "quit",
	}
	var out []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (r *REPL) printHelp() {
	fmt.Println(`Commands:
  status                 print the logger's current status
  begin                   start a transaction, prints its id
  commit <txn-id>         commit a transaction, fsyncs before returning
  abort <txn-id>          abort a transaction
  comment <text>          append a comment record
  fsync <lsn>             block until lsn is durable
  archive                 list log files safe to archive
  trim <lsn>              delete log files at or below lsn
  help                    show this help
  exit, quit              leave the REPL`)
}

func (r *REPL) cmdStatus() {
	st := r.l.Status()
	fmt.Printf("log files: %d  last lsn: %s  fsynced lsn: %s\n", st.NumLogFiles, st.LastLSN, st.FsyncedLSN)
	if err := writeStatusFile(r.dir, newStatusSnapshot(st, time.Now())); err != nil {
		fmt.Printf("warning: could not write status.json: %v\n", err)
	}
}

func (r *REPL) cmdBegin() {
	txn, err := r.txns.Begin()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	r.activeTxns[uint64(txn.ID)] = txn
	fmt.Printf("txn=%d\n", txn.ID)
}

func (r *REPL) findTxn(arg string) (*collab.Txn, bool) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		fmt.Printf("error: %q is not a transaction id\n", arg)
		return nil, false
	}
	txn, ok := r.activeTxns[id]
	if !ok {
		fmt.Printf("error: no active transaction %d\n", id)
		return nil, false
	}
	return txn, true
}

func (r *REPL) cmdCommit(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: commit <txn-id>")
		return
	}
	txn, ok := r.findTxn(args[0])
	if !ok {
		return
	}
	if err := r.txns.Commit(txn); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	delete(r.activeTxns, uint64(txn.ID))
	fmt.Printf("committed txn=%d lsn=%s\n", txn.ID, txn.LastLSN)
}

func (r *REPL) cmdAbort(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: abort <txn-id>")
		return
	}
	txn, ok := r.findTxn(args[0])
	if !ok {
		return
	}
	if err := r.txns.Abort(txn); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	delete(r.activeTxns, uint64(txn.ID))
	fmt.Printf("aborted txn=%d lsn=%s\n", txn.ID, txn.LastLSN)
}

func (r *REPL) cmdComment(args []string) {
	if len(args) == 0 {
		fmt.Println("usage: comment <text>")
		return
	}
	lsn, err := r.l.Append(record.Comment(strings.Join(args, " ")))
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Printf("appended at lsn=%s\n", lsn)
}

func (r *REPL) cmdFsync(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: fsync <lsn>")
		return
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("error: %q is not an lsn\n", args[0])
		return
	}
	if err := r.l.Fsync(types.LSN(n)); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println("ok")
}

func (r *REPL) cmdArchive() {
	names, err := r.l.LogArchive()
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("(nothing archivable)")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func (r *REPL) cmdTrim(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: trim <lsn>")
		return
	}
	n, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("error: %q is not an lsn\n", args[0])
		return
	}
	before := r.l.Status().NumLogFiles
	if err := r.l.MaybeTrimLog(types.LSN(n)); err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	after := r.l.Status().NumLogFiles
	fmt.Printf("trimmed %d log file(s), %d remaining\n", before-after, after)
}
