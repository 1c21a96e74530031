package stockmarket

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ctb/api"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// GroupName and Prefix identify the route group under /api/v1.
const (
	GroupName = "stock-market"
	Prefix    = "/stock-market"
)

const (
	serviceTimeout         = 10 * time.Second
	defaultHistoryInterval = Interval1d
	defaultHistoryWindow   = 30 * 24 * time.Hour
	dateLayout             = "2006-01-02"
)

// Validator checks request input.
type Validator interface {
	Struct(s interface{}) error
	Var(name string, value interface{}, tag string) error
}

// HistoryResponse is the body of GET /history/{symbol}.
type HistoryResponse struct {
	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Candles  []Candle  `json:"candles"`
}

// Controller adapts HTTP requests to the Service.
type Controller struct {
	service   Service
	validator Validator
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewController creates the stock-market controller. A nil service answers 503.
func NewController(service Service, validator Validator, logger *zap.SugaredLogger) *Controller {
	if service == nil {
		service = NotConfigured{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{service: service, validator: validator, logger: logger, now: time.Now}
}

// RouteGroup builds a fresh /stock-market group.
func (c *Controller) RouteGroup() *api.Group {
	return api.NewGroup(GroupName, Prefix).
		MustHandle("symbols", "/symbols", http.HandlerFunc(c.listSymbols), http.MethodGet).
		MustHandle("quote", "/quotes/{symbol}", http.HandlerFunc(c.getQuote), http.MethodGet).
		MustHandle("history", "/history/{symbol}", http.HandlerFunc(c.getHistory), http.MethodGet)
}

// listSymbols godoc
//
//	@Summary	List symbols
//	@Tags		stock-market
//	@Produce	json
//	@Success	200	{array}		Symbol
//	@Failure	503	{object}	api.ErrorResponse	"Service not configured"
//	@Router		/api/v1/stock-market/symbols [get]
func (c *Controller) listSymbols(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	symbols, err := c.service.ListSymbols(ctx)
	if err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return
	}
	if symbols == nil {
		symbols = []Symbol{}
	}
	api.WriteJSON(w, http.StatusOK, symbols)
}

func (c *Controller) symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(mux.Vars(r)["symbol"]))
	if err := c.validator.Var("symbol", symbol, "required,min=1,max=12,alphanum"); err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return "", false
	}
	return symbol, true
}

// getQuote godoc
//
//	@Summary	Latest quote
//	@Tags		stock-market
//	@Produce	json
//	@Param		symbol	path		string	true	"Ticker, letters and digits, up to 12"
//	@Success	200		{object}	Quote
//	@Failure	400		{object}	api.ErrorResponse	"Invalid symbol"
//	@Failure	404		{object}	api.ErrorResponse	"Unknown symbol"
//	@Failure	503		{object}	api.ErrorResponse	"Service not configured"
//	@Router		/api/v1/stock-market/quotes/{symbol} [get]
func (c *Controller) getQuote(w http.ResponseWriter, r *http.Request) {
	symbol, ok := c.symbolParam(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()
	quote, err := c.service.GetQuote(ctx, symbol)
	if err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return
	}
	api.WriteJSON(w, http.StatusOK, quote)
}

// getHistory godoc
//
//	@Summary		Price history
//	@Description	Candles between from and to. Defaults: interval 1d, to now, from 30 days before to.
//	@Tags			stock-market
//	@Produce		json
//	@Param			symbol		path		string	true	"Ticker"
//	@Param			from		query		string	false	"RFC 3339 or YYYY-MM-DD"
//	@Param			to			query		string	false	"RFC 3339 or YYYY-MM-DD"
//	@Param			interval	query		string	false	"1m, 5m, 15m, 1h, 1d or 1w"
//	@Success		200			{object}	HistoryResponse
//	@Failure		400			{object}	api.ErrorResponse	"Invalid query"
//	@Failure		404			{object}	api.ErrorResponse	"Unknown symbol"
//	@Failure		503			{object}	api.ErrorResponse	"Service not configured"
//	@Router			/api/v1/stock-market/history/{symbol} [get]
func (c *Controller) getHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := c.symbolParam(w, r)
	if !ok {
		return
	}

	q, err := c.parseHistoryQuery(r, symbol)
	if err != nil {
		api.WriteError(w, r, http.StatusBadRequest, err.Error(), err, c.logger)
		return
	}
	if err := c.validator.Struct(q); err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()
	candles, err := c.service.GetHistory(ctx, q)
	if err != nil {
		api.WriteServiceError(w, r, err, c.logger)
		return
	}
	if candles == nil {
		candles = []Candle{}
	}
	api.WriteJSON(w, http.StatusOK, HistoryResponse{
		Symbol:   q.Symbol,
		Interval: q.Interval,
		From:     q.From,
		To:       q.To,
		Candles:  candles,
	})
}

// parseHistoryQuery reads from, to and interval. Missing values default to
// the last 30 days of daily candles.
func (c *Controller) parseHistoryQuery(r *http.Request, symbol string) (HistoryQuery, error) {
	values := r.URL.Query()
	q := HistoryQuery{
		Symbol:   symbol,
		Interval: values.Get("interval"),
		To:       c.now().UTC(),
	}
	if q.Interval == "" {
		q.Interval = defaultHistoryInterval
	}

	if raw := values.Get("to"); raw != "" {
		to, err := parseTime(raw)
		if err != nil {
			return q, fmt.Errorf("invalid 'to' parameter: %w", err)
		}
		q.To = to
	}
	q.From = q.To.Add(-defaultHistoryWindow)
	if raw := values.Get("from"); raw != "" {
		from, err := parseTime(raw)
		if err != nil {
			return q, fmt.Errorf("invalid 'from' parameter: %w", err)
		}
		q.From = from
	}
	return q, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 timestamp or YYYY-MM-DD date, got %q", raw)
	}
	return t, nil
}
