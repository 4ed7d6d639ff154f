package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendingcore/core/state"
	nativecommon "lendingcore/native/common"
	"lendingcore/native/lending"
	"lendingcore/storage"
)

const testGenesis = `
[Pauses]
Lending = false

[InterestModel]
BaseRate = "0.01"
Slope1 = "0.1"
Slope2 = "0.5"
Kink = "0.9"

[[Reserves]]
Asset = "0x00000000000000000000000000000000000000a1"
Decimals = 0
Price = "2"
LTVBps = 7500
LiquidationThresholdBps = 8000
LiquidationBonusBps = 10500
BorrowingEnabled = true

[[Reserves]]
Asset = "0x00000000000000000000000000000000000000b1"
Decimals = 6
Price = "1"
LTVBps = 0
LiquidationThresholdBps = 0
SupplyCap = 1000

[[Accounts]]
Address = "0x00000000000000000000000000000000000000e1"
Asset = "0x00000000000000000000000000000000000000a1"
Amount = "5000"
`

func writeGenesis(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write genesis: %v", err)
	}
	return path
}

func TestLoadParsesGenesis(t *testing.T) {
	g, err := Load(writeGenesis(t, testGenesis))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(g.Reserves) != 2 || len(g.Accounts) != 1 {
		t.Fatalf("unexpected genesis shape: %+v", g)
	}
	if g.Reserves[1].SupplyCap != 1000 || g.Reserves[1].BorrowingEnabled {
		t.Fatalf("unexpected second reserve: %+v", g.Reserves[1])
	}
	model, err := g.Model()
	if err != nil || model == nil {
		t.Fatalf("model: %v", err)
	}
	if model.Kink.Cmp(big.NewRat(9, 10)) != 0 {
		t.Fatalf("unexpected kink %s", model.Kink.FloatString(2))
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeGenesis(t, testGenesis+"\nBogus = 1\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "genesis.toml")
	g, err := Load(path)
	if err != nil {
		t.Fatalf("load default: %v", err)
	}
	if len(g.Reserves) != len(Default().Reserves) {
		t.Fatalf("expected default reserves, got %d", len(g.Reserves))
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload default: %v", err)
	}
	if again.Reserves[1].Decimals != 6 {
		t.Fatalf("default not persisted: %+v", again.Reserves[1])
	}
}

func TestValidateGenesis(t *testing.T) {
	valid := func() *Genesis {
		g, err := Load(writeGenesis(t, testGenesis))
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		return g
	}
	cases := map[string]func(g *Genesis){
		"bad asset":        func(g *Genesis) { g.Reserves[0].Asset = "nope" },
		"zero asset":       func(g *Genesis) { g.Reserves[0].Asset = "0x0000000000000000000000000000000000000000" },
		"duplicate":        func(g *Genesis) { g.Reserves[1].Asset = g.Reserves[0].Asset },
		"zero price":       func(g *Genesis) { g.Reserves[0].Price = "0" },
		"ltv above lt":     func(g *Genesis) { g.Reserves[0].LTVBps = 9_000 },
		"unknown asset":    func(g *Genesis) { g.Accounts[0].Asset = "0x00000000000000000000000000000000000000c1" },
		"negative amount":  func(g *Genesis) { g.Accounts[0].Amount = "-1" },
		"bad interest":     func(g *Genesis) { g.InterestModel.Kink = "2" },
		"bad claim token":  func(g *Genesis) { g.Reserves[0].ClaimToken = "0x12" },
		"too many reserve": func(g *Genesis) { g.Reserves = make([]ReserveGenesis, lending.MaxReserves+1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			g := valid()
			mutate(g)
			if err := ValidateGenesis(g); err == nil {
				t.Fatalf("expected validation failure")
			}
		})
	}
}

func TestApplySeedsPoolOnce(t *testing.T) {
	g, err := Load(writeGenesis(t, testGenesis))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g.Pauses.Lending = true

	db := storage.NewMemDB()
	oracle := lending.NewStaticOracle()
	pool := lending.NewPool(db, state.OpenLendingState, oracle)
	pool.SetClock(func() uint64 { return 1 })
	pauses := nativecommon.NewPauseSet()
	pool.SetPauses(pauses)

	listed, err := g.Apply(pool, oracle, pauses)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected two listed reserves, got %d", len(listed))
	}
	if !pauses.IsPaused(lending.ModuleName) {
		t.Fatalf("genesis pause not installed")
	}
	assetA := common.HexToAddress("0xa1")
	holder := common.HexToAddress("0xe1")
	price, err := oracle.AssetPrice(assetA)
	if err != nil || price.Int64() != 2 {
		t.Fatalf("unexpected price %v (%v)", price, err)
	}
	balance, err := pool.UnderlyingBalance(assetA, holder)
	if err != nil || balance.Int64() != 5000 {
		t.Fatalf("unexpected balance %v (%v)", balance, err)
	}

	listed, err = g.Apply(pool, oracle, pauses)
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("reapply listed %d reserves", len(listed))
	}
	balance, err = pool.UnderlyingBalance(assetA, holder)
	if err != nil || balance.Int64() != 5000 {
		t.Fatalf("reapply credited twice: %v (%v)", balance, err)
	}
}
