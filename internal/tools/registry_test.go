package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumatrade/council/internal/config"
)

func testRegistry(t *testing.T, online bool) *Registry {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.OnlineTools = online
	cfg.CacheEnabled = false
	cfg.DataCacheDir = t.TempDir()

	r, err := NewRegistry(cfg, nil)
	require.NoError(t, err)
	return r
}

func TestOfflineRegistryOffersNothing(t *testing.T) {
	r := testRegistry(t, false)
	assert.Nil(t, r.Infos())

	_, err := r.Fetch(context.Background(), "get_market_data", `{"symbol":"AAPL"}`)
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "get_market_data", toolErr.Tool)
}

func TestOnlineRegistryListsTools(t *testing.T) {
	r := testRegistry(t, true)

	infos := r.Infos()
	require.Len(t, infos, 3)
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	assert.Contains(t, names, "get_quote")
	assert.Contains(t, names, "get_market_data")
	assert.Contains(t, names, "get_company_news")
}

func TestFetchUnknownTool(t *testing.T) {
	r := testRegistry(t, true)

	_, err := r.Fetch(context.Background(), "get_insider_trades", `{}`)
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "get_insider_trades", toolErr.Tool)
	assert.Contains(t, toolErr.Error(), "unknown tool")
}

func TestQuoteToolRequiresSymbol(t *testing.T) {
	r := testRegistry(t, true)

	_, err := r.Fetch(context.Background(), "get_quote", `{"symbol":""}`)
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "get_quote", toolErr.Tool)
	assert.Contains(t, toolErr.Error(), "symbol parameter is required")
}

func TestFetchRejectsMalformedArgs(t *testing.T) {
	r := testRegistry(t, true)

	_, err := r.Fetch(context.Background(), "get_market_data", `{not json`)
	require.Error(t, err)
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
}
