package config

// Genesis seeds an empty ledger with reserves, prices and balances.
type Genesis struct {
	Pauses        Pauses           `toml:"Pauses"`
	InterestModel InterestModel    `toml:"InterestModel"`
	Reserves      []ReserveGenesis `toml:"Reserves"`
	Accounts      []AccountGenesis `toml:"Accounts"`
}

// Pauses lists modules that start halted.
type Pauses struct {
	Lending bool `toml:"Lending"`
}

// InterestModel holds exact decimal strings, e.g. "0.02" for 2%.
type InterestModel struct {
	BaseRate string `toml:"BaseRate"`
	Slope1   string `toml:"Slope1"`
	Slope2   string `toml:"Slope2"`
	Kink     string `toml:"Kink"`
}

// ReserveGenesis lists one asset. Empty token addresses are derived from the
// asset address. Price is quoted per whole token in the base currency.
type ReserveGenesis struct {
	Asset                   string `toml:"Asset"`
	ClaimToken              string `toml:"ClaimToken,omitempty"`
	DebtToken               string `toml:"DebtToken,omitempty"`
	Decimals                uint8  `toml:"Decimals"`
	Price                   string `toml:"Price"`
	LTVBps                  uint64 `toml:"LTVBps"`
	LiquidationThresholdBps uint64 `toml:"LiquidationThresholdBps"`
	LiquidationBonusBps     uint64 `toml:"LiquidationBonusBps"`
	ReserveFactorBps        uint64 `toml:"ReserveFactorBps"`
	SupplyCap               uint64 `toml:"SupplyCap"`
	BorrowCap               uint64 `toml:"BorrowCap"`
	Frozen                  bool   `toml:"Frozen"`
	Paused                  bool   `toml:"Paused"`
	BorrowingEnabled        bool   `toml:"BorrowingEnabled"`
}

// AccountGenesis credits underlying to an address in base units.
type AccountGenesis struct {
	Address string `toml:"Address"`
	Asset   string `toml:"Asset"`
	Amount  string `toml:"Amount"`
}
