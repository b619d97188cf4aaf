package main

import (
	"context"
	"fmt"
	"os"

	redisstore "github.com/conveyorhq/conveyor/internal/infra/jobstore/redis"
)

func main() {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	store, err := redisstore.New(redisstore.Config{
		URL:      url,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err != nil {
		panic(err)
	}
	defer store.Close()

	n, err := store.PurgeAll(context.Background())
	if err != nil {
		panic(err)
	}

	fmt.Printf("Purged %d job records\n", n)
}
