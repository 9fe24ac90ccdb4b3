package main

import (
	"context"
	"log/slog"
	"os"
)

var App *DaoStakeApp

func main() {
	App = initApp()

	err := App.cliCmd.Run(context.Background(), os.Args)
	App.close()
	if err != nil {
		slog.Error("Error", "msg", err)
		os.Exit(1)
	}
}
