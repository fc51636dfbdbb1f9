package main

import (
	"github.com/cppla/perkclaims/config"
	"github.com/cppla/perkclaims/routes"
	"github.com/cppla/perkclaims/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		utils.Sugar.Fatalf("database init failed: %v", err)
	}

	// Redis backs caching and token revocation; both degrade to local state without it
	if _, err := utils.InitRedis(cfg); err != nil {
		utils.Sugar.Warnf("redis unavailable at %s:%d: %v", cfg.RedisHost, cfg.RedisPort, err)
	}

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
