package main

import (
	"context"
	"log"

	"github.com/fdamstra/speed-limit-demonstration/internal/app"
)

func main() {
	if err := app.Run(context.Background(), app.Config{}); err != nil {
		log.Fatalf("%v", err)
	}
}
