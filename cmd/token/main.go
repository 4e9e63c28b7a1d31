// ==============================================================================
// DEV TOKEN ISSUER - cmd/token/main.go
// ==============================================================================
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"stakehub/internal/middleware"
	"stakehub/pkg/config"
)

func main() {
	_ = godotenv.Load()
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if flag.NArg() != 1 || !common.IsHexAddress(flag.Arg(0)) {
		fmt.Fprintln(os.Stderr, "usage: token [-ttl 1h] ADDRESS")
		os.Exit(2)
	}

	cfg := config.Load()
	token, err := middleware.IssueToken(cfg.JWT.Secret, common.HexToAddress(flag.Arg(0)), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
