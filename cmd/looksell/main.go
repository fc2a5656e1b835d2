package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/looksell/looksell/internal/clock"
	"github.com/looksell/looksell/internal/config"
	"github.com/looksell/looksell/internal/migration"
	"github.com/looksell/looksell/internal/server"
	"github.com/looksell/looksell/pkg/db"
	"github.com/looksell/looksell/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
