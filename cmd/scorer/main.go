package main

import (
	"os"

	cliruntime "github.com/tomasbasham/cli-runtime"

	"github.com/anime-shed/vision-analysis-go/internal/cmd"
)

func main() {
	command := cmd.NewScorerCommand()
	if code := cliruntime.Run(command); code != 0 {
		os.Exit(code)
	}
}
