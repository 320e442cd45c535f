package main

import (
	"fmt"
	"os"

	"github.com/schardosin/bpmnbot/cmd/bpmnbot"
)

func main() {
	if err := bpmnbot.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
