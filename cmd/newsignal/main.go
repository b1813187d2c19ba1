package main

import (
	"os"

	"horse.fit/newsignal/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
