// Command authsessiond serves the authsession flows over HTTP, backed by a
// SQLite principal store and Redis. Without --redis-addr it starts an
// in-process miniredis, which is only suitable for development.
//
// Run:
//
//	go run ./cmd/authsessiond migrate --database auth.db
//	go run ./cmd/authsessiond create-principal --database auth.db \
//	  --email alice@example.com --password 'correct horse' --active
//	go run ./cmd/authsessiond serve --database auth.db \
//	  --access-secret "$(openssl rand -hex 32)" --refresh-secret "$(openssl rand -hex 32)"
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
