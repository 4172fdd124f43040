// Package main provides a one-shot utility for bearer grant key generation.
//
// It emits the asymmetric keypair used to sign and verify API grants.
package main

import (
	"os"

	"github.com/gavelworks/auctionhouse/internal/platform/config"
	"github.com/gavelworks/auctionhouse/internal/tools/grantkey"
)

func main() {
	if err := grantkey.Run(os.Stdout, nil); err != nil {
		config.Exitf("generate grant key: %v", err)
	}
}
