package main

import (
	"fmt"
	"os"

	"github.com/sandboxy-go/sandboxy/cmd/sandboxctl/cmd"
	"github.com/sandboxy-go/sandboxy/pkg/config"
)

func main() {
	config.LoadEnv()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
