// @title SchoolConnect Chat
// @version 0.1
// @description Real-time chat rooms of the SchoolConnect student portal.

// @host localhost:8080
// @BasePath /api
// @query.collection.format multi
// @schemes http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"fmt"
	"os"

	"tush00nka/schoolconnect_chat/internal/app"
	"tush00nka/schoolconnect_chat/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	os.Exit(app.Run(cfg))
}
