// Command bot is the entry point for the combination-tracking engine: it
// loads configuration, restores (or creates) the combination registry,
// wires the domain services together, and serves the read-only dashboard
// until it receives a shutdown signal.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/config"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/dashboard"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/hedging"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/persistence"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/riskmon"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/selection"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/sizing"
)

// strategyName identifies this engine's snapshot file on disk. A multi-book
// deployment would derive this from config; one book is all this exercise
// wires.
const strategyName = "combination-engine"

// Engine composes the domain services around a single combination registry.
// It owns no market-data or broker connection: Evaluate callers
// supply current Greeks and prices from whatever feed they're wired to.
type Engine struct {
	aggregate   *combo.Aggregate
	facade      *combo.Facade
	lifecycle   *combo.LifecycleService
	sizer       *sizing.Service
	optionSel   *selection.OptionSelector
	futureSel   *selection.FutureSelector
	hedger      *hedging.Engine
	stopLoss    *riskmon.StopLossManager
	liquidity   *riskmon.LiquidityMonitor
	riskChecker *combo.RiskChecker

	mu         sync.Mutex
	lastGreeks map[string]combo.CombinationGreeks
}

// PortfolioGreeks sums the last-computed Greeks for every active
// combination. It satisfies dashboard.GreeksSource.
func (e *Engine) PortfolioGreeks() combo.PortfolioGreeks {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total combo.PortfolioGreeks
	for _, g := range e.lastGreeks {
		total.TotalDelta += g.Delta
		total.TotalGamma += g.Gamma
		total.TotalTheta += g.Theta
		total.TotalVega += g.Vega
	}
	return total
}

// CombinationGreeks returns a copy of the last-computed per-combination
// Greeks. It satisfies dashboard.GreeksSource.
func (e *Engine) CombinationGreeks() map[string]combo.CombinationGreeks {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]combo.CombinationGreeks, len(e.lastGreeks))
	for k, v := range e.lastGreeks {
		out[k] = v
	}
	return out
}

// GetActive delegates to the underlying Aggregate. It satisfies
// dashboard.CombinationSource.
func (e *Engine) GetActive() []*combo.Combination {
	return e.aggregate.GetActive()
}

// ToSnapshot delegates to the underlying Aggregate. It satisfies
// dashboard.CombinationSource.
func (e *Engine) ToSnapshot() combo.AggregateSnapshot {
	return e.aggregate.ToSnapshot()
}

// Evaluate runs the Greeks/PnL/risk facade for one combination and caches
// the resulting Greeks for PortfolioGreeks/CombinationGreeks. greeksMap and
// currentPrices come from whatever live pricing feed the caller owns; this
// engine never fetches them itself.
func (e *Engine) Evaluate(c *combo.Combination, greeksMap map[string]combo.LegGreeks, currentPrices map[string]float64, multiplier float64, realizedPnLMap map[string]float64) combo.CombinationEvaluation {
	result := e.facade.Evaluate(c, greeksMap, currentPrices, multiplier, realizedPnLMap)

	e.mu.Lock()
	e.lastGreeks[c.CombinationID] = result.Greeks
	e.mu.Unlock()

	return result
}

// OpenCombination registers c and returns its open instructions, rejecting
// the trade first against sizing limits. sizingReq carries the account and
// market state the sizing check needs; it comes from the external
// market-data feed, same as priceMap.
func (e *Engine) OpenCombination(c *combo.Combination, sizingReq sizing.Request, priceMap map[string]float64) ([]combo.OrderInstruction, sizing.SizingResult, error) {
	sizingResult := e.sizer.ComputeSizing(sizingReq)
	if !sizingResult.Passed {
		return nil, sizingResult, nil
	}
	if err := e.aggregate.Register(c); err != nil {
		return nil, sizingResult, err
	}
	return e.lifecycle.GenerateOpenInstructions(c, priceMap), sizingResult, nil
}

// CloseCombination returns close instructions for an already-registered
// combination's active legs.
func (e *Engine) CloseCombination(c *combo.Combination, priceMap map[string]float64) []combo.OrderInstruction {
	return e.lifecycle.GenerateCloseInstructions(c, priceMap)
}

// CheckHedge runs the Vega hedging engine against the current portfolio
// exposure. It returns ok=false when hedging is disabled in configuration.
func (e *Engine) CheckHedge(currentPrice float64) (hedging.Result, []combo.DomainEvent, bool) {
	if e.hedger == nil {
		return hedging.Result{}, nil, false
	}
	result, events := e.hedger.CheckAndHedge(e.PortfolioGreeks(), currentPrice)
	return result, events, true
}

// CheckPositionStopLoss forwards to the configured StopLossManager.
func (e *Engine) CheckPositionStopLoss(leg combo.Leg, currentPrice, peakProfit, multiplier float64) (riskmon.StopLossTrigger, bool) {
	return e.stopLoss.CheckPositionStopLoss(leg, currentPrice, peakProfit, multiplier)
}

// CheckPortfolioStopLoss forwards to the configured StopLossManager.
func (e *Engine) CheckPortfolioStopLoss(activeLegs []combo.Leg, dailyStartEquity, currentEquity float64) (riskmon.PortfolioStopLossTrigger, bool) {
	return e.stopLoss.CheckPortfolioStopLoss(activeLegs, dailyStartEquity, currentEquity)
}

// MonitorLiquidity forwards to the configured LiquidityMonitor.
func (e *Engine) MonitorLiquidity(activeVTSymbols []string, marketData map[string]riskmon.MarketSample, historicalData map[string][]riskmon.MarketSample) []riskmon.LiquidityWarning {
	return e.liquidity.MonitorPositions(activeVTSymbols, marketData, historicalData)
}

// SelectOption forwards to the configured OptionSelector.
func (e *Engine) SelectOption(chain []combo.OptionContract, side combo.OptionType, spot float64, level int) (combo.OptionContract, bool) {
	return e.optionSel.SelectOption(chain, side, spot, level)
}

// SelectDominantFuture forwards to the configured FutureSelector.
func (e *Engine) SelectDominantFuture(contracts []selection.FutureContract, marketData map[string]selection.FutureMarketData, volumeWeight, oiWeight float64) (selection.FutureContract, bool) {
	return e.futureSel.SelectDominantContract(contracts, marketData, volumeWeight, oiWeight)
}

// snapshotFn adapts the Aggregate's snapshot to persistence.SnapshotFn by
// round-tripping it through JSON into a plain map, since FileRepository
// stores arbitrary map[string]any payloads rather than typed structs.
func (e *Engine) snapshotFn() map[string]any {
	raw, err := json.Marshal(e.aggregate.ToSnapshot())
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func loadAggregate(repo *persistence.FileRepository) *combo.Aggregate {
	data, err := repo.Load(strategyName)
	if err != nil {
		return combo.NewAggregate(nil)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return combo.NewAggregate(nil)
	}
	var snapshot combo.AggregateSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return combo.NewAggregate(nil)
	}
	return combo.FromSnapshot(snapshot, nil)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.IsPaperTrading() {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg)
	logger.WithField("mode", cfg.Environment.Mode).Info("starting combination engine")

	serializer := persistence.NewSerializer(persistence.NewMigrationChain())
	repo, err := persistence.NewFileRepository(
		cfg.Persistence.Dir,
		serializer,
		log.New(logger.Writer(), "", 0),
		cfg.Persistence.CompressionThresholdBytes,
	)
	if err != nil {
		return fmt.Errorf("opening snapshot repository: %w", err)
	}

	riskChecker := combo.NewRiskChecker(cfg.CombinationRisk.ToComboRiskConfig())
	engine := &Engine{
		aggregate:   loadAggregate(repo),
		facade:      combo.NewFacade(combo.NewGreeksCalculator(), combo.NewPnLCalculator(nil), riskChecker),
		lifecycle:   combo.NewLifecycleService(cfg.OptionSelector.TickSize),
		sizer:       sizing.NewService(cfg.Sizing.ToSizingConfig()),
		optionSel:   selection.NewOptionSelector(cfg.OptionSelector.ToSelectionConfig()),
		futureSel:   selection.NewFutureSelector(),
		stopLoss:    riskmon.NewStopLossManager(cfg.StopLoss.ToStopLossConfig()),
		riskChecker: riskChecker,
		lastGreeks:  make(map[string]combo.CombinationGreeks),
	}

	if cfg.Hedging.Enabled {
		engine.hedger = hedging.NewEngine(cfg.Hedging.ToHedgingConfig())
	}
	liquidityMonitor, err := riskmon.NewLiquidityMonitor(cfg.Liquidity.ToLiquidityConfig())
	if err != nil {
		return fmt.Errorf("constructing liquidity monitor: %w", err)
	}
	engine.liquidity = liquidityMonitor

	autoSave := persistence.NewAutoSaveService(repo, strategyName, serializer, persistence.AutoSaveConfig{
		Interval:        time.Duration(cfg.Persistence.AutoSaveIntervalSeconds) * time.Second,
		CleanupInterval: time.Duration(cfg.Persistence.CleanupIntervalHours) * time.Hour,
		KeepDays:        cfg.Persistence.KeepDays,
	}, log.New(logger.Writer(), "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var dashServer *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashServer = dashboard.NewServer(
			dashboard.Config{Port: cfg.Dashboard.Port, AuthToken: cfg.Dashboard.AuthToken},
			engine, engine, repo, strategyName, riskChecker, logger,
		)
		go func() {
			if err := dashServer.Start(); err != nil {
				logger.WithError(err).Error("dashboard server stopped")
			}
		}()
	}

	checkInterval := cfg.GetCheckInterval()
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.WithField("interval", checkInterval).Info("engine running; awaiting signal or tick")

runLoop:
	for {
		select {
		case <-ticker.C:
			within, err := cfg.IsWithinTradingHours(time.Now())
			if err != nil {
				logger.WithError(err).Warn("trading-hours check failed; treating as open")
				within = true
			}
			if !within {
				logger.Debug("outside trading hours; skipping tick")
				continue
			}
			autoSave.MaybeSave(engine.snapshotFn)
		case <-sigCh:
			logger.Info("shutdown signal received")
			break runLoop
		case <-ctx.Done():
			break runLoop
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if dashServer != nil {
		if err := dashServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("dashboard shutdown error")
		}
	}
	autoSave.Shutdown(shutdownCtx)
	if err := repo.Save(strategyName, engine.snapshotFn()); err != nil {
		logger.WithError(err).Error("final snapshot save failed")
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
