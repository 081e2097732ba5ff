package main

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/log"
)

var Version = "dev"

func main() {
	log.SetLevel(log.LevelWarn)

	rootCmd := newRootCmd(newBackend(), os.Stdout)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
