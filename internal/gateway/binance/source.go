// Package binance implements the exchange client on Binance USD-M futures.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"

	"tessera/internal/gateway/exchange"
	"tessera/internal/logger"
	"tessera/internal/market"
)

const maxHistoryLimit = 1500

// Binance error codes that indicate missing margin rather than a malformed
// order.
const (
	codeInsufficientBalance = -2019
	codeInsufficientMargin  = -4164
)

// Config describes how to reach the venue.
type Config struct {
	RESTBaseURL   string
	APIKey        string
	APISecret     string
	StakeCurrency string
	HTTPTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.StakeCurrency) == "" {
		c.StakeCurrency = "USDT"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// Source talks to Binance futures over REST.
type Source struct {
	cfg    Config
	client *futures.Client
}

// New builds a Source for the configured venue endpoint.
func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	if base := strings.TrimSpace(final.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

// FetchCandles loads up to limit closed klines for symbol/interval. Venue
// failures surface as exchange.ErrDataUnavailable.
func (s *Source) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}

	kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: klines %s %s: %v", exchange.ErrDataUnavailable, symbol, interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

// PlaceMarketOrder submits a market order and reports the fill. Rejections
// map onto exchange.ErrOrderRejected / exchange.ErrInsufficientBalance.
func (s *Source) PlaceMarketOrder(ctx context.Context, symbol, side string, qty float64) (exchange.Fill, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	orderSide := futures.SideType(strings.ToUpper(strings.TrimSpace(side)))
	if orderSide != futures.SideTypeBuy && orderSide != futures.SideTypeSell {
		return exchange.Fill{}, fmt.Errorf("invalid order side %q", side)
	}
	if qty <= 0 {
		return exchange.Fill{}, fmt.Errorf("order quantity must be positive, got %v", qty)
	}

	res, err := s.client.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return exchange.Fill{}, mapOrderError(err)
	}

	fill := exchange.Fill{
		Price:    parseFloat(res.AvgPrice),
		Quantity: parseFloat(res.ExecutedQuantity),
	}
	if fill.Quantity == 0 {
		fill.Quantity = qty
	}
	logger.Infof("Binance order filled symbol=%s side=%s qty=%v price=%v orderID=%d",
		symbol, orderSide, fill.Quantity, fill.Price, res.OrderID)
	return fill, nil
}

// AccountBalance returns the total stake-currency futures balance.
func (s *Source) AccountBalance(ctx context.Context) (float64, error) {
	balances, err := s.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: balance: %v", exchange.ErrDataUnavailable, err)
	}
	for _, b := range balances {
		if b != nil && strings.EqualFold(b.Asset, s.cfg.StakeCurrency) {
			return parseFloat(b.Balance), nil
		}
	}
	return 0, fmt.Errorf("%w: no %s balance entry", exchange.ErrDataUnavailable, s.cfg.StakeCurrency)
}

func mapOrderError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeInsufficientBalance, codeInsufficientMargin:
			return fmt.Errorf("%w: %s", exchange.ErrInsufficientBalance, apiErr.Message)
		default:
			return fmt.Errorf("%w: code=%d %s", exchange.ErrOrderRejected, apiErr.Code, apiErr.Message)
		}
	}
	// Network-level failure before the venue answered.
	return fmt.Errorf("%w: %v", exchange.ErrOrderRejected, err)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
