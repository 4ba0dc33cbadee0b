package main

import (
	"appstorys-engine/internal/app/server"
	"appstorys-engine/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel)
	server.Run(cfg)
}
