package news

import (
	"context"
	"errors"
	"testing"

	"market-dashboard/src/helpers"
	"market-dashboard/src/logger"
	"market-dashboard/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNetwork struct {
	calls  int
	url    string
	params map[string]string
	body   string
	err    error
}

func (n *stubNetwork) Get(ctx context.Context, url string, params map[string]string) ([]byte, error) {
	n.calls++
	n.url = url
	n.params = params
	return []byte(n.body), n.err
}

const okBody = `{"status":"ok","totalResults":1,"articles":[
 {"source":{"id":null,"name":"CoinDesk"},"author":null,"title":"Bitcoin rallies","description":"BTC up","url":"https://example.com/a","urlToImage":null,"publishedAt":"2026-10-17T08:00:00Z","content":null}
]}`

func newTestNews(net *stubNetwork, enabled bool) *NewsSource {
	cfg := &models.MConfig{News: models.MNewsConfig{
		Enabled:         enabled,
		BaseURL:         "https://news.example/v2/everything",
		APIKey:          "secret",
		Language:        "en",
		PageSize:        10,
		CacheTTLSeconds: 60,
	}}
	return NewNewsSource(cfg, net, logger.NewLogger(nil, "NewsTest"))
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "BTC OR Bitcoin stock market", BuildQuery("btcusdt"))
	assert.Equal(t, "ETH OR Ethereum stock market", BuildQuery("ETHBTC"))
	assert.Equal(t, "AAP OR Apple stock market", BuildQuery("AAPL"))
	assert.Equal(t, "SOL stock OR SOL trading OR SOL market", BuildQuery("SOLUSDT"))
	assert.Equal(t, "XR stock OR XR trading OR XR market", BuildQuery("xr"))
}

func TestFetchNewsMapsAndCaches(t *testing.T) {
	net := &stubNetwork{body: okBody}
	src := newTestNews(net, true)

	articles, err := src.FetchNews(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, models.MNewsArticle{
		Source:      "CoinDesk",
		Title:       "Bitcoin rallies",
		Description: "BTC up",
		URL:         "https://example.com/a",
		PublishedAt: "2026-10-17T08:00:00Z",
	}, articles[0])

	assert.Equal(t, "https://news.example/v2/everything", net.url)
	assert.Equal(t, map[string]string{
		"q":        "BTC OR Bitcoin stock market",
		"language": "en",
		"sortBy":   "publishedAt",
		"pageSize": "10",
		"apiKey":   "secret",
	}, net.params)

	// BTCBUSD expands to the same query
	_, err = src.FetchNews(context.Background(), "BTCBUSD")
	require.NoError(t, err)
	assert.Equal(t, 1, net.calls)
}

func TestFetchNewsErrors(t *testing.T) {
	_, err := newTestNews(&stubNetwork{}, false).FetchNews(context.Background(), "BTC")
	assert.ErrorIs(t, err, ErrDisabled)

	articles, err := newTestNews(&stubNetwork{}, true).FetchNews(context.Background(), "")
	assert.NoError(t, err)
	assert.Empty(t, articles)

	_, err = newTestNews(&stubNetwork{err: errors.New("timeout")}, true).FetchNews(context.Background(), "BTC")
	assert.True(t, helpers.IsFetchError(err))

	_, err = newTestNews(&stubNetwork{body: `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`}, true).FetchNews(context.Background(), "BTC")
	require.Error(t, err)
	assert.True(t, helpers.IsFetchError(err))
	assert.Contains(t, err.Error(), "bad key")
}
