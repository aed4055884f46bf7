package main

import (
	"log"

	"github.com/thiagokokada/gitbase-go/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("gitbase: %v", err)
	}
}
