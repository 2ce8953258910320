package main

import (
	"context"
	"log"

	"github.com/MrSnakeDoc/snip/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatalf("❌ snip: %v", err)
	}
}
