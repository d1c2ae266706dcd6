package main

import (
	"context"
	"errors"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	app := mustBootstrapTrafficAPI()
	defer app.Close()

	if err := app.Run(); err != nil && !errors.Is(err, context.Canceled) {
		panic(err)
	}
}
