// Command dailybriefd runs the dailybrief daemon with the default
// configuration lookup. It is equivalent to `dailybrief daemon`.
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"dailybrief/internal/config"
	"dailybrief/internal/daemonrun"
)

func main() {
	cfg, _, _, err := config.Load(os.Getenv("DAILYBRIEF_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("dailybriefd: %v", err)
	}
}
