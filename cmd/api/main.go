package main

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	httpadp "vaultshield/internal/adapter/http"
	"vaultshield/internal/adapter/middleware"
	"vaultshield/internal/adapter/repository/mysql"
	"vaultshield/internal/codec"
	"vaultshield/internal/config"
	"vaultshield/internal/coordinator"
	loandomain "vaultshield/internal/domain/loan"
	repdomain "vaultshield/internal/domain/reputation"
	vaultdomain "vaultshield/internal/domain/vault"
	"vaultshield/internal/infrastructure/cache"
	"vaultshield/internal/infrastructure/db"
	"vaultshield/internal/ledger"
	"vaultshield/internal/oracle"
	loanuc "vaultshield/internal/usecase/loan"
	reputationuc "vaultshield/internal/usecase/reputation"
	vaultuc "vaultshield/internal/usecase/vault"
	"vaultshield/pkg/logger"
)

func main() {
	log := logger.New("vaultshield-api")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("mysql connect failed")
	}
	if err := gdb.AutoMigrate(&vaultdomain.Vault{}, &loandomain.Loan{}, &repdomain.Record{}); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}

	cdc, err := buildCodec(cfg.CodecKey)
	if err != nil {
		log.Fatal().Err(err).Msg("codec init failed")
	}

	// The real ledger and valuation oracle are external collaborators;
	// development wiring runs the in-memory stand-ins.
	led := ledger.NewMemLedger(500 * time.Millisecond)
	orc := oracle.NewStatic()

	coord := coordinator.New(rdb, led, log, cfg.CoordLockTTL, cfg.CoordRecordTTL, cfg.ConfirmTimeout)

	uow := mysql.NewGormUoW(gdb)
	vaults := mysql.NewVaultRepository(gdb)
	loans := mysql.NewLoanRepository(gdb)
	reps := mysql.NewReputationRepository(gdb)

	repUC := reputationuc.NewUsecase(reps, cfg.ReputationFloor)
	vaultUC := vaultuc.NewUsecase(uow, vaults, loans, cdc, orc, coord, log)
	loanUC := loanuc.NewUsecase(uow, loans, vaults, repUC, cdc, coord, cfg.RiskPolicy(), log)

	cv := httpadp.NewValidator()
	h := httpadp.NewHandler()
	vh := httpadp.NewVaultHandler(vaultUC, cv)
	lh := httpadp.NewLoanHandler(loanUC, cv)
	rh := httpadp.NewReputationHandler(repUC)
	oh := httpadp.NewOperationHandler(coord)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger(), echomw.Recover())

	e.GET("/health", h.Health)

	api := e.Group("", middleware.IdempotencyMiddleware(rdb, cfg.IdempTTL, log))
	api.POST("/vaults", vh.CreateVault)
	api.POST("/vaults/:vault_id/close", vh.CloseVault)
	api.POST("/vaults/:vault_id/refresh-estimate", vh.RefreshEstimate)
	api.POST("/loans", lh.RequestLoan)
	api.POST("/loans/:loan_id/repay", lh.Repay)
	api.POST("/loans/:loan_id/liquidate", lh.Liquidate)
	api.POST("/loans/:loan_id/default", lh.MarkDefaulted)

	e.GET("/vaults/:vault_id", vh.GetVault)
	e.GET("/loans/:loan_id", lh.GetLoan)
	e.GET("/borrowers/:address/reputation", rh.GetReputation)
	e.GET("/operations/:operation_id", oh.GetOperation)
	e.GET("/operations", oh.GetStatusForKey)
	e.POST("/operations/:operation_id/cancel", oh.CancelOperation)

	addr := ":" + cfg.AppPort
	log.Info().Str("addr", addr).Msg("listening")
	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// buildCodec loads the reference codec from the configured key, or a random
// ephemeral key in development when none is set.
func buildCodec(keyHex string) (codec.Codec, error) {
	var key []byte
	if keyHex == "" {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	} else {
		var err error
		key, err = hex.DecodeString(keyHex)
		if err != nil {
			return nil, err
		}
	}
	return codec.NewAESGCMCodec(key)
}
