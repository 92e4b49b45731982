package main

import (
	"chikondi_backend/internal/app"
)

func main() {
	app.Run()
}
