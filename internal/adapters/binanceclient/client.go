package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"marginledger/internal/domain"
	"marginledger/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"
)

// Client implements the ports.ExchangeClient interface using the go-binance
// library. It only covers the collaborator surface the ledger consumes;
// order placement strategy lives with the callers.
type Client struct {
	api    *binance.Client
	logger ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	api := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		api.BaseURL = baseURLTestnet
	} else {
		api.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": api.BaseURL})

	return &Client{api: api, logger: cfg.Logger}, nil
}

// symbol converts a ledger pair ("ETH/BTC") into an exchange symbol ("ETHBTC").
func symbol(pair string) string {
	return strings.ReplaceAll(pair, "/", "")
}

// handleError translates Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiCode"] = apiErr.Code
		c.logger.Error(ctx, err, "Binance API error", fields)
		switch apiErr.Code {
		case -1003:
			return fmt.Errorf("%w: %v", ports.ErrRateLimited, err)
		case -2013:
			return fmt.Errorf("%w: %v", ports.ErrOrderNotFound, err)
		case -2014, -2015, -1022:
			return fmt.Errorf("%w: %v", ports.ErrAuthenticationFailed, err)
		default:
			return fmt.Errorf("%w: %v", ports.ErrExchangeUnavailable, err)
		}
	}

	c.logger.Error(ctx, err, "Binance request failed", fields)
	return fmt.Errorf("%w: %s: %v", ports.ErrConnectionFailed, operation, err)
}

// GetCurrentRate retrieves the last ticker price for a pair.
func (c *Client) GetCurrentRate(ctx context.Context, pair string) (float64, error) {
	prices, err := c.api.NewListPricesService().Symbol(symbol(pair)).Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetCurrentRate")
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: no ticker price for %s", ports.ErrNotFound, pair)
	}
	rate, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ticker price %q for %s: %w", prices[0].Price, pair, err)
	}
	return rate, nil
}

// GetBalance retrieves the free balance for an asset.
func (c *Client) GetBalance(ctx context.Context, asset string) (float64, error) {
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, "GetBalance")
	}
	for _, b := range account.Balances {
		if b.Asset == asset {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("failed to parse balance %q for %s: %w", b.Free, asset, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

// GetOrder fetches the current state of an order as a domain fill.
func (c *Client) GetOrder(ctx context.Context, pair, orderID string) (*domain.Fill, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: order id %q is not numeric", ports.ErrInvalidRequest, orderID)
	}
	order, err := c.api.NewGetOrderService().Symbol(symbol(pair)).OrderID(id).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, "GetOrder")
	}
	return mapOrder(order)
}

// CancelOrder cancels an open order by its ID.
func (c *Client) CancelOrder(ctx context.Context, pair, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: order id %q is not numeric", ports.ErrInvalidRequest, orderID)
	}
	if _, err := c.api.NewCancelOrderService().Symbol(symbol(pair)).OrderID(id).Do(ctx); err != nil {
		wrapped := c.handleError(ctx, err, "CancelOrder")
		if errors.Is(wrapped, ports.ErrOrderNotFound) {
			return wrapped
		}
		return fmt.Errorf("%w: %v", ports.ErrOrderCancelFailed, wrapped)
	}
	return nil
}

// Ping checks connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.api.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, "Ping")
	}
	return nil
}

// mapOrder converts an exchange order into the fill shape the reducer consumes.
func mapOrder(o *binance.Order) (*domain.Fill, error) {
	fill := &domain.Fill{
		OrderID: strconv.FormatInt(o.OrderID, 10),
		Side:    domain.OrderSide(o.Side),
		Type:    domain.OrderType(strings.ToLower(string(o.Type))),
	}

	switch o.Status {
	case binance.OrderStatusTypeNew, binance.OrderStatusTypePartiallyFilled:
		fill.Status = domain.OrderStatusOpen
	case binance.OrderStatusTypeFilled:
		fill.Status = domain.OrderStatusClosed
	default:
		fill.Status = domain.OrderStatusCanceled
	}

	executed, err := strconv.ParseFloat(o.ExecutedQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse executed quantity %q: %w", o.ExecutedQuantity, err)
	}
	fill.Amount = executed

	// Average fill rate from the quote total when available, the limit price
	// otherwise (market orders report price 0 until filled).
	if executed > 0 {
		quote, err := strconv.ParseFloat(o.CummulativeQuoteQuantity, 64)
		if err == nil && quote > 0 {
			fill.Rate = quote / executed
			return fill, nil
		}
	}
	price, err := strconv.ParseFloat(o.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order price %q: %w", o.Price, err)
	}
	fill.Rate = price
	return fill, nil
}
