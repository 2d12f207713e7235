package main

import (
	"os"

	"github.com/S4DIB/news-hud-sub001/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
