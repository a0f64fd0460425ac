package main

import (
	"os"

	appLog "happenings/internal/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("command failed", err)
		os.Exit(1)
	}
}
