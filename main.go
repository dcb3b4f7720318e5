package main

import (
	"pricing_service/startup"
	"pricing_service/startup/config"
)

func main() {
	cfg := config.NewConfig()
	server := startup.NewServer(cfg)
	server.Start()
}
