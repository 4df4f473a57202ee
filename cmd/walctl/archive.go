package main

import (
	"fmt"

	"waldb/internal/logger"
)

func cmdArchive(args []string) error {
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

	names, err := l.LogArchive()
	if err != nil {
		return fmt.Errorf("archive %s: %w", dir, err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
