package feed

import (
	"context"
	"strconv"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"marketmaker/internal/errors"
	"marketmaker/internal/schema"
)

// quoteSubscribeID is the fixed request id used for the single subscribe
// handshake WSSource performs on connect.
const quoteSubscribeID = 1

// wireQuote is the generic, non-venue-specific quote message WSSource
// decodes: a flat symbol/bid/ask/sizes JSON object, carrying none of a real
// exchange's wire protocol.
type wireQuote struct {
	Symbol  string  `json:"symbol"`
	Bid     float64 `json:"bid"`
	Ask     float64 `json:"ask"`
	BidSize float64 `json:"bid_size"`
	AskSize float64 `json:"ask_size"`
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

type subscribeResponse struct {
	ID     int64 `json:"id"`
	Result any   `json:"result"`
}

// WSSource dials a configurable WebSocket endpoint, subscribes to a set of
// symbols, and decodes inbound frames as wireQuote. Reconnection and the
// subscribe/wait handshake follow the same idiom the reference stack's own
// exchange integrations use.
type WSSource struct {
	wss     *ws.WebSocket
	sink    QuoteSink
	symbols []string
}

// NewWSSource dials url. The connection is not started until Run is called.
func NewWSSource(ctx context.Context, url string, symbols []string, sink QuoteSink) *WSSource {
	return &WSSource{
		wss:     ws.New(ctx, url),
		sink:    sink,
		symbols: symbols,
	}
}

// Len reports the number of active subscriptions.
func (s *WSSource) Len() int { return s.wss.Len() }

// Close tears down the connection.
func (s *WSSource) Close() { s.wss.Close() }

// Run starts the connection, subscribes to its configured symbols, and
// decodes quotes until ctx is cancelled or the underlying socket is shut
// down. Satisfies the Runnable interface so it can be driven by RunAll
// alongside other feeds.
func (s *WSSource) Run(ctx context.Context) error {
	if err := s.wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start websocket")
	}
	if err := s.subscribe(ctx, s.symbols); err != nil {
		return errors.Wrap(err, "subscribe quotes")
	}

	ch, cancel := s.wss.Subscribe()
	defer cancel()
	for {
		select {
		case <-sys.Shutdown():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			wq, ok := ws.ReadMessage[wireQuote](m)
			if !ok || wq.Symbol == "" {
				continue
			}
			s.sink.OnQuote(schema.Quote{
				Symbol:  wq.Symbol,
				Bid:     schema.Price(wq.Bid),
				Ask:     schema.Price(wq.Ask),
				BidSize: schema.Quantity(wq.BidSize),
				AskSize: schema.Quantity(wq.AskSize),
			})
		}
	}
}

func (s *WSSource) subscribe(ctx context.Context, symbols []string) error {
	return s.wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "SUBSCRIBE",
				Params: symbols,
				ID:     quoteSubscribeID,
			}
			if err := client.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			var resp subscribeResponse
			if err := m.Unmarshal(&resp); err != nil {
				return false, nil
			}
			if resp.ID != quoteSubscribeID {
				return false, nil
			}
			if resp.Result != nil {
				logs.Errorf("subscribe quotes rejected, id: %s, result: %+v", strconv.FormatInt(resp.ID, 10), resp.Result)
				return false, errors.New("subscribe rejected")
			}
			return true, nil
		},
	}, true)
}
