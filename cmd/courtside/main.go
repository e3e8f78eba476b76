package main

import (
	"os"

	"github.com/timmy/courtside/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}
