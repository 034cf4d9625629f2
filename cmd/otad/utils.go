package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/256dpi/ota/pkg/config"
)

func exitIfSet(errs ...error) {
	for _, err := range errs {
		if err != nil {
			exitWithError(err.Error())
		}
	}
}

func exitWithError(str string) {
	_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", str)
	os.Exit(1)
}

func getConfig(cmd *command) *config.Config {
	cfg, err := config.Read(cmd.oConfig)
	exitIfSet(err)

	return cfg
}

func clientID() string {
	// get hostname
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "otad"
	}

	return "otad-" + strings.Split(host, ".")[0]
}
