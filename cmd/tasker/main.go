package main

import (
	"os"

	"github.com/ternarybob/tasker/internal/common"
)

func main() {
	defer common.RecoverWithCrashFile()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
