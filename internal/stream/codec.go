package stream

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	methodSubscribe        = "subscribe"
	methodHeartbeat        = "public/heartbeat"
	methodRespondHeartbeat = "public/respond-heartbeat"
	channelPrefixTicker    = "ticker"
	channelPrefixOrderBook = "book"
)

// number decodes JSON numbers that the exchange may send as strings.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type subscribeRequest struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params subscribeParams `json:"params"`
	Nonce  int64           `json:"nonce"`
}

type subscribeParams struct {
	Channels []string `json:"channels"`
}

type heartbeatResponse struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
}

type frame struct {
	ID     int64        `json:"id"`
	Method string       `json:"method"`
	Code   int          `json:"code"`
	Result *frameResult `json:"result"`
}

type frameResult struct {
	Channel        string      `json:"channel"`
	Subscription   string      `json:"subscription"`
	InstrumentName string      `json:"instrument_name"`
	Data           []frameData `json:"data"`
}

// frameData is the union of ticker and book items.
type frameData struct {
	Instrument string     `json:"i"`
	Price      number     `json:"a"`
	Volume     number     `json:"v"`
	Bid        number     `json:"b"`
	Ask        number     `json:"k"`
	Time       number     `json:"t"`
	Bids       [][]number `json:"bids"`
	Asks       [][]number `json:"asks"`
}

func (r *frameResult) channel() string {
	if r.Channel != "" {
		return r.Channel
	}
	return r.Subscription
}

func (r *frameResult) isTicker() bool { return strings.HasPrefix(r.channel(), channelPrefixTicker) }

func (r *frameResult) isBook() bool { return strings.HasPrefix(r.channel(), channelPrefixOrderBook) }

func decodeFrame(data []byte) (frame, error) {
	var f frame
	err := sonic.Unmarshal(data, &f)
	return f, err
}

func encodeSubscribe(id, nonce int64, channels []string) ([]byte, error) {
	return sonic.Marshal(subscribeRequest{
		ID:     id,
		Method: methodSubscribe,
		Params: subscribeParams{Channels: channels},
		Nonce:  nonce,
	})
}

func encodeHeartbeatResponse(id int64) ([]byte, error) {
	return sonic.Marshal(heartbeatResponse{ID: id, Method: methodRespondHeartbeat})
}

func topOfBook(levels [][]number) float64 {
	if len(levels) == 0 || len(levels[0]) == 0 {
		return 0
	}
	return float64(levels[0][0])
}
