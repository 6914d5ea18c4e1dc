package main

import (
	"io"
	"log"
	"os"
)

var logger = log.New(os.Stderr, "tokenizely: ", log.LstdFlags)

func logf(format string, args ...any) {
	logger.Printf(format, args...)
}

// SetLogOutput redirects diagnostic logging, used by tests and --quiet.
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}
