package main

import (
	"os"
	"os/signal"
	"syscall"

	"portarium/app/config"
	"portarium/app/db"
	"portarium/app/dispatcher/server"
)

func main() {
	dbCfg := config.Config.Database
	cfg := &db.Config{
		Connection:  dbCfg.Connection,
		Debug:       dbCfg.Debug,
		PoolSize:    dbCfg.PoolSize,
		IdleTimeout: dbCfg.IdleTimeout,
	}
	err := db.Init(cfg)
	if err != nil {
		panic(err)
	}
	if err := db.Migrate(); err != nil {
		panic(err)
	}

	svc := server.NewDispatcherServer()
	if err := svc.Initialize(); err != nil {
		panic(err)
	}
	if err := svc.Start(); err != nil {
		panic(err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs
	_ = svc.Stop()
}
