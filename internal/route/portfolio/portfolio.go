package portfolio

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dense-analysis/coinfolio/internal/ledger"
	"github.com/dense-analysis/coinfolio/internal/market"
	portfolioservice "github.com/dense-analysis/coinfolio/internal/portfolio"
	"github.com/dense-analysis/coinfolio/internal/route/util"
	"github.com/dense-analysis/coinfolio/internal/template"
	"github.com/dense-analysis/coinfolio/pkg/lax"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler serves the portfolio as a JSON API and as an HTML page.
type Handler struct {
	service           *portfolioservice.Service
	currency          string
	passwordProtected bool
	logger            *zap.Logger
}

func NewHandler(
	service *portfolioservice.Service,
	currency string,
	passwordProtected bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		service:           service,
		currency:          currency,
		passwordProtected: passwordProtected,
		logger:            logger,
	}
}

// AcquireRequest is the body for adding coins through the API.
type AcquireRequest struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	Name          string           `json:"name"`
	Image         string           `json:"image"`
	Amount        decimal.Decimal  `json:"amount"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice"`
	PurchaseDate  *time.Time       `json:"purchaseDate"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (body AcquireRequest) input() ledger.HoldingInput {
	input := ledger.HoldingInput{
		ID:     strings.TrimSpace(body.ID),
		Symbol: body.Symbol,
		Name:   body.Name,
		Image:  body.Image,
		Amount: body.Amount,
	}

	if body.PurchasePrice != nil {
		input.PurchasePrice = *body.PurchasePrice
	}

	if body.PurchaseDate != nil {
		input.PurchaseDate = *body.PurchaseDate
	}

	return input
}

func validationIssue(err error) (lax.IssueDescription, bool) {
	switch {
	case errors.Is(err, ledger.ErrEmptyID):
		return lax.Issue("id", err.Error()), true
	case errors.Is(err, ledger.ErrNonPositiveAmount):
		return lax.Issue("amount", err.Error()), true
	case errors.Is(err, ledger.ErrNegativePrice):
		return lax.Issue("purchasePrice", err.Error()), true
	}

	return lax.IssueDescription{}, false
}

// acquireFailure maps an acquisition error to a response.
func (handler *Handler) acquireFailure(err error) any {
	if issue, ok := validationIssue(err); ok {
		return lax.MakeErrorListResponse(issue)
	}

	if errors.Is(err, portfolioservice.ErrUnknownCoin) {
		return lax.MakeNotFoundResponse()
	}

	return handler.marketFailure(err)
}

func (handler *Handler) marketFailure(err error) any {
	handler.logger.Warn("market request failed", zap.Error(err))

	var statusErr *market.StatusError

	if errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests {
		return lax.MakeResponse(http.StatusBadGateway, "market rate limit reached")
	}

	return lax.MakeResponse(http.StatusBadGateway, "market data unavailable")
}

func (handler *Handler) getPortfolio(request *lax.Request) any {
	return handler.service.Snapshot()
}

func (handler *Handler) postPortfolio(request *lax.Request) any {
	var body AcquireRequest

	if err := request.JSON(&body); err != nil {
		return lax.MakeBadRequestResponse(err)
	}

	input := body.input()

	// Check the input before any market lookup is made for it.
	if err := input.Validate(); err != nil {
		return handler.acquireFailure(err)
	}

	if body.PurchasePrice == nil {
		holding, err := handler.service.AcquireCoin(
			request.Context(),
			input.ID,
			input.Amount,
			nil,
			input.PurchaseDate,
		)

		if err != nil {
			return handler.acquireFailure(err)
		}

		return holding
	}

	if err := handler.service.Acquire(input); err != nil {
		return handler.acquireFailure(err)
	}

	holding, _ := handler.service.Get(input.ID)

	return holding
}

func (handler *Handler) deletePortfolio(request *lax.Request) any {
	handler.service.Clear()

	return nil
}

func (handler *Handler) putHolding(request *lax.Request) any {
	var body AmountRequest

	if err := request.JSON(&body); err != nil {
		return lax.MakeBadRequestResponse(err)
	}

	id := request.Var("id")

	if !handler.service.SetAmount(id, body.Amount) {
		return lax.MakeNotFoundResponse()
	}

	// Setting a zero amount removes the holding.
	holding, ok := handler.service.Get(id)

	if !ok {
		return lax.MakeResponse(http.StatusNoContent, nil)
	}

	return holding
}

func (handler *Handler) deleteHolding(request *lax.Request) any {
	if !handler.service.Remove(request.Var("id")) {
		return lax.MakeNotFoundResponse()
	}

	return nil
}

func (handler *Handler) postRefresh(request *lax.Request) any {
	if err := handler.service.RefreshPrices(request.Context()); err != nil {
		return handler.marketFailure(err)
	}

	return lax.MakeResponse(http.StatusOK, handler.service.Snapshot())
}

// RegisterAPI adds the JSON routes to a router.
func (handler *Handler) RegisterAPI(router *mux.Router) {
	router.Handle("/api/portfolio", lax.Wrap(lax.View{
		Get:    handler.getPortfolio,
		Post:   handler.postPortfolio,
		Delete: handler.deletePortfolio,
	}))
	router.Handle("/api/portfolio/refresh", lax.Wrap(lax.View{
		Post: handler.postRefresh,
	}))
	router.Handle("/api/portfolio/{id}", lax.Wrap(lax.View{
		Put:    handler.putHolding,
		Delete: handler.deleteHolding,
	}))
}

type PortfolioPageData struct {
	Snapshot          ledger.Snapshot
	Currency          string
	Error             string
	PasswordProtected bool
}

func (handler *Handler) renderPage(writer http.ResponseWriter, request *http.Request, status int, message string) {
	data := PortfolioPageData{
		Snapshot:          handler.service.Snapshot(),
		Currency:          handler.currency,
		Error:             message,
		PasswordProtected: handler.passwordProtected,
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(status)

	if err := template.Render(template.Portfolio, writer, data); err != nil {
		handler.logger.Error("rendering portfolio page failed", zap.Error(err))
	}
}

func redirectToPortfolio(writer http.ResponseWriter, request *http.Request) {
	http.Redirect(writer, request, "/portfolio", http.StatusFound)
}

// HandlePortfolio shows the holdings and totals.
func (handler *Handler) HandlePortfolio(writer http.ResponseWriter, request *http.Request) {
	handler.renderPage(writer, request, http.StatusOK, "")
}

// HandleAddHolding adds coins from the form on the portfolio page. Coin
// details always come from the market, and so does the price when the
// price field is left blank.
func (handler *Handler) HandleAddHolding(writer http.ResponseWriter, request *http.Request) {
	request.ParseForm()

	id := strings.ToLower(strings.TrimSpace(request.Form.Get("id")))

	if id == "" {
		handler.renderPage(writer, request, http.StatusBadRequest, "Enter a coin id")

		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(request.Form.Get("amount")))

	if err != nil || !amount.IsPositive() {
		handler.renderPage(writer, request, http.StatusBadRequest, "Amount must be greater than zero")

		return
	}

	var price *decimal.Decimal

	if priceText := strings.TrimSpace(request.Form.Get("price")); priceText != "" {
		value, err := decimal.NewFromString(priceText)

		if err != nil || value.IsNegative() {
			handler.renderPage(writer, request, http.StatusBadRequest, "Invalid price")

			return
		}

		price = &value
	}

	if _, err := handler.service.AcquireCoin(request.Context(), id, amount, price, time.Time{}); err != nil {
		switch {
		case errors.Is(err, portfolioservice.ErrUnknownCoin):
			handler.renderPage(writer, request, http.StatusNotFound, "Unknown coin: "+id)
		default:
			handler.logger.Warn("adding coin failed", zap.String("id", id), zap.Error(err))
			handler.renderPage(writer, request, http.StatusBadGateway, "Market data is unavailable, try again later")
		}

		return
	}

	redirectToPortfolio(writer, request)
}

// HandleUpdateHolding sets the amount held for one coin.
func (handler *Handler) HandleUpdateHolding(writer http.ResponseWriter, request *http.Request) {
	request.ParseForm()

	amount, err := decimal.NewFromString(strings.TrimSpace(request.Form.Get("amount")))

	if err != nil {
		util.RespondValidationError(writer, "Invalid amount")

		return
	}

	if !handler.service.SetAmount(mux.Vars(request)["id"], amount) {
		util.RespondNotFound(writer)

		return
	}

	redirectToPortfolio(writer, request)
}

func (handler *Handler) HandleDeleteHolding(writer http.ResponseWriter, request *http.Request) {
	if !handler.service.Remove(mux.Vars(request)["id"]) {
		util.RespondNotFound(writer)

		return
	}

	redirectToPortfolio(writer, request)
}

func (handler *Handler) HandleRefresh(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.RefreshPrices(request.Context()); err != nil {
		handler.renderPage(writer, request, http.StatusBadGateway, "Prices could not be refreshed")

		return
	}

	redirectToPortfolio(writer, request)
}

func (handler *Handler) HandleClear(writer http.ResponseWriter, request *http.Request) {
	handler.service.Clear()
	redirectToPortfolio(writer, request)
}

// RegisterPages adds the HTML routes to a router. The fixed paths are
// registered before /portfolio/{id} so they are not taken as coin ids.
func (handler *Handler) RegisterPages(router *mux.Router) {
	router.HandleFunc("/portfolio", handler.HandlePortfolio).Methods(http.MethodGet)
	router.HandleFunc("/portfolio", handler.HandleAddHolding).Methods(http.MethodPost)
	router.HandleFunc("/portfolio/refresh", handler.HandleRefresh).Methods(http.MethodPost)
	router.HandleFunc("/portfolio/clear", handler.HandleClear).Methods(http.MethodPost)
	router.HandleFunc("/portfolio/{id}", handler.HandleUpdateHolding).Methods(http.MethodPost)
	router.HandleFunc("/portfolio/{id}/delete", handler.HandleDeleteHolding).Methods(http.MethodPost)
}
