package main

import (
	"context"
	"os"
	"time"

	"github.com/buconnects/server/config"
	"github.com/buconnects/server/models"
	"github.com/buconnects/server/realtime"
	"github.com/buconnects/server/routes"
	"github.com/buconnects/server/utils"
)

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer utils.Logger.Sync()

	db := config.InitDatabase(models.All()...)

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		utils.Sugar.Fatalf("create upload dir %s: %v", cfg.UploadDir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(cfg.ChatDelivery)
	go hub.Run()
	if rdb := utils.GetRedis(); rdb != nil {
		relay := realtime.NewRelay(rdb, hub)
		if err := relay.Start(ctx); err != nil {
			utils.Sugar.Warnf("chat relay disabled: %v", err)
		} else {
			utils.Sugar.Infof("chat relay started, origin=%s", relay.Origin())
		}
	}

	utils.StartMediaReclaimer(ctx, db, 5*time.Minute)

	r := routes.SetupRouter(db, hub)

	utils.Sugar.Infof("Starting server on port %s (graceful), chat delivery=%s", cfg.AppPort, hub.Mode())
	err := utils.GraceServer(":"+cfg.AppPort, r, hub.Stop, cancel)
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
