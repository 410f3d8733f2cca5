package handlers

import (
	"context"
	"time"

	"github.com/atharvakonge/papertrade/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PriceUpdate is one position's live valuation
type PriceUpdate struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Total     decimal.Decimal `json:"total"`
	Timestamp time.Time       `json:"timestamp"`
}

const writeTimeout = 10 * time.Second

// The default origin check rejects cross-site pages; the stream is
// authenticated by the session cookie.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// QuoteStream handles GET /ws/quotes. It pushes the caller's priced positions
// right away and then every stream interval until the client goes away.
func (h *Handler) QuoteStream(c *gin.Context) {
	userID := session.CurrentUser(c)
	l := h.logger.WithFields(logrus.Fields{
		"method":  "QuoteStream",
		"user_id": userID,
	})

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already answered the request
		l.WithError(err).Info("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// reading is the only way to notice the client closing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	l.Debug("client connected to quote stream")

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()

	for {
		if err := h.pushPrices(ctx, conn, userID); err != nil {
			if ctx.Err() == nil {
				l.WithError(err).Info("quote stream ended")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Handler) pushPrices(ctx context.Context, conn *websocket.Conn, userID int64) error {
	portfolio, err := h.trading.Portfolio(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, pos := range portfolio.Positions {
		if !pos.Priced {
			continue
		}
		conn.SetWriteDeadline(now.Add(writeTimeout))
		err := conn.WriteJSON(PriceUpdate{
			Symbol:    pos.Symbol,
			Price:     pos.Price,
			Total:     pos.Total,
			Timestamp: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
