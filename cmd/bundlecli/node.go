package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// dialNode dials the RPC with keep-alives and sane timeouts for HTTP endpoints;
// ws and ipc endpoints go through the default dialer.
func dialNode(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	low := strings.ToLower(rpcURL)
	if !strings.HasPrefix(low, "http://") && !strings.HasPrefix(low, "https://") {
		return ethclient.DialContext(ctx, rpcURL)
	}
	transport := &http.Transport{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	rpcClient, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rpcClient), nil
}
