package main

import (
	"os"

	"github.com/MrEthical07/goWA/cmd/wagateway/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
