package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/zerok/gtimelog2jira/internal/config"
)

func main() {
	log := logrus.New()
	app := newApplication(log, os.Stdout)
	app.keyring = config.SystemKeyring{}
	app.prompt = config.TerminalPrompt{}

	os.Exit(app.execute(context.Background(), newRootCommand(app), os.Stderr))
}
