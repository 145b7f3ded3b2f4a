// Command umongo-admin inspects and maintains the MongoDB collections behind
// a umongo deployment: it lists and drops indexes, counts documents and drops
// whole collections.
//
// Usage:
//
//	umongo-admin count <collection>
//	umongo-admin indexes <collection>
//	umongo-admin drop-indexes <collection>
//	umongo-admin drop-collection <collection>
//
// Configuration is read from config/<ENV>.yaml (see internal/config).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/kunla/umongo/internal/config"
	dbMongo "github.com/kunla/umongo/internal/db/mongo"
	logpkg "github.com/kunla/umongo/internal/logger"
	"github.com/kunla/umongo/internal/version"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: umongo-admin <count|indexes|drop-indexes|drop-collection> <collection>")
		os.Exit(2)
	}
	command, collection := os.Args[1], os.Args[2]

	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting umongo-admin",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("database", cfg.Database.Name),
	)

	ctx, cancel := context.WithTimeout(
		context.Background(), time.Duration(cfg.Database.TimeoutSec)*time.Second,
	)
	defer cancel()

	store, err := dbMongo.NewStore(ctx, dbMongo.Config{
		URI:      cfg.Database.URI,
		Database: cfg.Database.Name,
	})
	if err != nil {
		logger.Fatal("Failed to connect", zap.Error(err))
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error("Error closing store", zap.Error(err))
		}
	}()

	switch command {
	case "count":
		n, err := store.Count(ctx, collection, bson.M{})
		if err != nil {
			logger.Fatal("Count failed", zap.Error(err))
		}
		fmt.Printf("%s: %d documents\n", collection, n)

	case "indexes":
		indexes, err := store.ListIndexes(ctx, collection)
		if err != nil {
			logger.Fatal("ListIndexes failed", zap.Error(err))
		}
		for _, ix := range indexes {
			flags := ""
			if ix.Unique {
				flags += " unique"
			}
			if ix.Sparse {
				flags += " sparse"
			}
			fmt.Printf("%s\t%v%s\n", ix.Name, ix.Keys, flags)
		}

	case "drop-indexes":
		if err := store.DropIndexes(ctx, collection); err != nil {
			logger.Fatal("DropIndexes failed", zap.Error(err))
		}
		logger.Info("Indexes dropped", zap.String("collection", collection))

	case "drop-collection":
		if err := store.DropCollection(ctx, collection); err != nil {
			logger.Fatal("DropCollection failed", zap.Error(err))
		}
		logger.Info("Collection dropped", zap.String("collection", collection))

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", command)
		os.Exit(2)
	}
}
