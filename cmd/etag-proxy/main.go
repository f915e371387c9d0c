// Command etag-proxy serves GitHub list endpoints through the pagination
// ETag cache.
//
//	etag-proxy --store sqlite --sqlite-path data/etags.db
//	curl localhost:8080/github/users/linus/followers
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
