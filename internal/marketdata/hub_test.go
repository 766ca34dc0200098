package marketdata_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"heimdall/internal/common"
	"heimdall/internal/marketdata"
)

func TestMarshalTickShape(t *testing.T) {
	pair := common.Pair{Numeraire: "USD", Base: "BTC"}
	trade := common.Trade{AskOrderID: 1, BidOrderID: 2, Price: 50_000, Quantity: 3}

	raw, err := marketdata.MarshalTick(pair, trade)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "USD-BTC", decoded["pair"])
	require.EqualValues(t, 50_000, decoded["price"])
	require.EqualValues(t, 3, decoded["quantity"])
}

func TestHubPublishReachesSubscriber(t *testing.T) {
	hub := marketdata.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?pair=USD-BTC"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	pair := common.Pair{Numeraire: "USD", Base: "BTC"}
	trade := common.Trade{AskOrderID: 1, BidOrderID: 2, Price: 50_000, Quantity: 1}

	// Give the server goroutine a moment to finish registering the
	// subscriber before the first publish.
	time.Sleep(20 * time.Millisecond)
	hub.Publish(pair, trade)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "USD-BTC", got["pair"])
	require.EqualValues(t, 50_000, got["price"])
}

func TestHubPublishIgnoresOtherPairs(t *testing.T) {
	hub := marketdata.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?pair=USD-BTC"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	hub.Publish(common.Pair{Numeraire: "USD", Base: "ETH"}, common.Trade{Price: 1, Quantity: 1})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	var got map[string]any
	err = conn.ReadJSON(&got)
	require.Error(t, err) // deadline exceeded: no tick should have arrived
}

func TestServeHTTPRejectsMissingPair(t *testing.T) {
	hub := marketdata.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
