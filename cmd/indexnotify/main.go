package main

import (
	"log"

	"github.com/MrSnakeDoc/indexnotify/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ indexnotify failed to start: %v", err)
	}
}
