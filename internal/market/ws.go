// ============================
// File: internal/market/ws.go
// ============================
package market

import (
	"context"

	"github.com/gorilla/websocket"
)

// Conn is the minimal websocket surface the stream needs. Tests inject a
// fake; production wraps gorilla/websocket.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer establishes push-channel connections.
type Dialer interface {
	Dial(ctx context.Context, wsURL string) (Conn, error)
}

// WSDialer is the production dialer.
type WSDialer struct{}

func (WSDialer) Dial(ctx context.Context, wsURL string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, err
	}
	return gorillaConn{c}, nil
}

type gorillaConn struct {
	*websocket.Conn
}

func (c gorillaConn) ReadMessage() ([]byte, error) {
	_, data, err := c.Conn.ReadMessage()
	return data, err
}

// Birdeye push-channel wire format.
const (
	msgSubscribePrice = "SUBSCRIBE_PRICE"
	msgPriceData      = "PRICE_DATA"
)

type subscribeMsg struct {
	Type string        `json:"type"`
	Data subscribeData `json:"data"`
}

type subscribeData struct {
	QueryType string `json:"queryType"`
	ChartType string `json:"chartType"`
	Address   string `json:"address"`
	Currency  string `json:"currency"`
}

type pushMsg struct {
	Type string    `json:"type"`
	Data priceData `json:"data"`
}

type priceData struct {
	Open      float64 `json:"o"`
	ChangePct float64 `json:"pc"`
	Volume    float64 `json:"v"`
}

func newSubscribeMsg(address, granularity string) subscribeMsg {
	return subscribeMsg{
		Type: msgSubscribePrice,
		Data: subscribeData{
			QueryType: "simple",
			ChartType: granularity,
			Address:   address,
			Currency:  "usd",
		},
	}
}
