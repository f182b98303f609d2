// We should remove that code (and this dependency) with 1.25:
// https://tip.golang.org/doc/go1.25#container-aware-gomaxprocs
//
//go:build !go1.25

package main

import (
	"fmt"
	"log/slog"
	"math"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/bisondb/bison/internal/logging"
)

func setGOMAXPROCS(logger *slog.Logger) {
	maxprocsOpts := []maxprocs.Option{
		maxprocs.Min(1),
		maxprocs.RoundQuotaFunc(func(v float64) int {
			return int(math.Ceil(v))
		}),
		maxprocs.Logger(func(format string, a ...any) {
			logger.Debug(fmt.Sprintf(format, a...))
		}),
	}

	if _, err := maxprocs.Set(maxprocsOpts...); err != nil {
		logger.Warn("failed to set GOMAXPROCS", logging.Error(err))
	}
}
