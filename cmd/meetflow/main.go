package main

import (
	"os"

	"github.com/BizzBuzzCreations/BBC-MEET-FRONTEND/internal/client/cmd"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(cmd.Execute(cmd.NewRootCmd(version, buildDate)))
}
