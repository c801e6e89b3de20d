package main

import (
	_ "time/tzdata"

	"github.com/pfrederiksen/shelter-watch/internal/cli"
)

func main() {
	cli.Execute()
}
