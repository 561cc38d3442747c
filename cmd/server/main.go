package main

import (
	"github.com/diwan-erp/correspondence/internal/server"
	"github.com/diwan-erp/correspondence/internal/util"
	"github.com/diwan-erp/correspondence/pkg/logger"
	"github.com/diwan-erp/correspondence/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		Prefix: "server",
	})
	logger.Init(consoleLogger)

	server.Init()
}
