package handlers

import (
	"net/http"

	"github.com/atharvakonge/papertrade/internal/models"
	"github.com/atharvakonge/papertrade/internal/session"
	"github.com/atharvakonge/papertrade/internal/trading"
	"github.com/gin-gonic/gin"
)

// orderForm reads the symbol and shares fields shared by buy and sell
func orderForm(c *gin.Context) (string, int64, error) {
	symbol := trading.NormalizeSymbol(c.PostForm("symbol"))
	if symbol == "" {
		return "", 0, models.ErrMissingSymbol
	}
	shares, err := trading.ParseShares(c.PostForm("shares"))
	if err != nil {
		return "", 0, err
	}
	return symbol, shares, nil
}

// Index handles GET /
func (h *Handler) Index(c *gin.Context) {
	portfolio, err := h.trading.Portfolio(c.Request.Context(), session.CurrentUser(c))
	if err != nil {
		h.fail(c, "Index", err)
		return
	}
	h.render(c, http.StatusOK, "index.html", "Portfolio", gin.H{"Portfolio": portfolio})
}

// BuyForm handles GET /buy
func (h *Handler) BuyForm(c *gin.Context) {
	h.render(c, http.StatusOK, "buy.html", "Buy", nil)
}

// Buy handles POST /buy
func (h *Handler) Buy(c *gin.Context) {
	symbol, shares, err := orderForm(c)
	if err != nil {
		h.fail(c, "Buy", err)
		return
	}

	if _, err := h.trading.Buy(c.Request.Context(), session.CurrentUser(c), symbol, shares); err != nil {
		h.fail(c, "Buy", err)
		return
	}
	h.done(c, "Buy", "Purchase completed", "/")
}

// SellForm handles GET /sell; only symbols the user holds are offered
func (h *Handler) SellForm(c *gin.Context) {
	symbols, err := h.trading.OwnedSymbols(c.Request.Context(), session.CurrentUser(c))
	if err != nil {
		h.fail(c, "SellForm", err)
		return
	}
	h.render(c, http.StatusOK, "sell.html", "Sell", gin.H{"Symbols": symbols})
}

// Sell handles POST /sell
func (h *Handler) Sell(c *gin.Context) {
	symbol, shares, err := orderForm(c)
	if err != nil {
		h.fail(c, "Sell", err)
		return
	}

	if _, err := h.trading.Sell(c.Request.Context(), session.CurrentUser(c), symbol, shares); err != nil {
		h.fail(c, "Sell", err)
		return
	}
	h.done(c, "Sell", "Selling completed", "/")
}

// QuoteForm handles GET /quote
func (h *Handler) QuoteForm(c *gin.Context) {
	h.render(c, http.StatusOK, "quote.html", "Quote", nil)
}

// Quote handles POST /quote
func (h *Handler) Quote(c *gin.Context) {
	q, err := h.trading.Quote(c.Request.Context(), c.PostForm("symbol"))
	if err != nil {
		h.fail(c, "Quote", err)
		return
	}
	h.render(c, http.StatusOK, "quoted.html", "Quoted", gin.H{"Quote": q})
}

// History handles GET /history
func (h *Handler) History(c *gin.Context) {
	history, err := h.trading.History(c.Request.Context(), session.CurrentUser(c))
	if err != nil {
		h.fail(c, "History", err)
		return
	}
	h.render(c, http.StatusOK, "history.html", "History", gin.H{"History": history})
}

// AddForm handles GET /add
func (h *Handler) AddForm(c *gin.Context) {
	balance, err := h.trading.Cash(c.Request.Context(), session.CurrentUser(c))
	if err != nil {
		h.fail(c, "AddForm", err)
		return
	}
	h.render(c, http.StatusOK, "add.html", "Add cash", gin.H{"Balance": balance})
}

// Add handles POST /add
func (h *Handler) Add(c *gin.Context) {
	amount, err := trading.ParseAmount(c.PostForm("cash"))
	if err != nil {
		h.fail(c, "Add", err)
		return
	}

	if _, err := h.trading.AddCash(c.Request.Context(), session.CurrentUser(c), amount); err != nil {
		h.fail(c, "Add", err)
		return
	}
	h.done(c, "Add", "Balance added", "/add")
}
