package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/core/state"
	"lendingcore/native/lending"
	"lendingcore/services/lending/server"
	"lendingcore/storage"
)

func TestRunListsReserves(t *testing.T) {
	pool := lending.NewPool(storage.NewMemDB(), state.OpenLendingState, lending.NewStaticOracle())
	asset := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	if _, err := pool.InitReserve(lending.InitReserveParams{
		Asset: asset,
		Configuration: lending.ReserveConfiguration{
			LTVBps: 5_000, LiquidationThresholdBps: 6_000, LiquidationBonusBps: 10_500, Active: true,
		},
	}); err != nil {
		t.Fatalf("init reserve: %v", err)
	}
	api := httptest.NewServer(server.New(pool, server.Options{}).Handler())
	defer api.Close()

	var out bytes.Buffer
	if err := run([]string{"reserves", "-endpoint", api.URL}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	var reserves []server.ReserveView
	if err := json.Unmarshal(out.Bytes(), &reserves); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(reserves) != 1 || reserves[0].Asset != asset.Hex() {
		t.Fatalf("unexpected reserves %+v", reserves)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run([]string{"liquidate"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestWriteCommandsNeedToken(t *testing.T) {
	t.Setenv(tokenEnv, "")
	err := run([]string{"supply", "-asset", "0x01", "-amount", "1"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), tokenEnv) {
		t.Fatalf("expected token error, got %v", err)
	}
}
