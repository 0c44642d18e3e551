package main

import (
	"log"

	"github.com/EasterCompany/dex-voice-recorder/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("fatal error building app: %v", err)
	}

	if err := a.Run(); err != nil {
		log.Fatalf("fatal error running app: %v", err)
	}
}
