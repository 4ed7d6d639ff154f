package lending

import (
	"github.com/holiman/uint256"
)

var (
	borrowingMask  = uint256.MustFromHex("0x5555555555555555555555555555555555555555555555555555555555555555")
	collateralMask = uint256.MustFromHex("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

// UserConfiguration is a user's 256-bit reserve bitmap. Reserve id occupies
// bit 2*id (borrowing) and bit 2*id+1 (using as collateral).
type UserConfiguration struct {
	data uint256.Int
}

// UserConfigurationFromBytes decodes a big-endian bitmap of at most 32 bytes.
func UserConfigurationFromBytes(b []byte) (UserConfiguration, error) {
	var cfg UserConfiguration
	if len(b) > 32 {
		return cfg, ErrCorruptLedger
	}
	cfg.data.SetBytes(b)
	return cfg, nil
}

// Bytes returns the bitmap as 32 big-endian bytes.
func (c UserConfiguration) Bytes() []byte {
	out := c.data.Bytes32()
	return out[:]
}

// Hex renders the bitmap for logs and APIs.
func (c UserConfiguration) Hex() string { return c.data.Hex() }

func checkReserveID(id uint16) error {
	if id >= MaxReserves {
		return ErrInvalidReserveIndex
	}
	return nil
}

func (c *UserConfiguration) setBit(bit uint, on bool) {
	var mask uint256.Int
	mask.Lsh(uint256.NewInt(1), bit)
	if on {
		c.data.Or(&c.data, &mask)
		return
	}
	mask.Not(&mask)
	c.data.And(&c.data, &mask)
}

func (c UserConfiguration) bit(bit uint) bool {
	var shifted uint256.Int
	shifted.Rsh(&c.data, bit)
	return shifted.Uint64()&1 == 1
}

// SetBorrowing sets or clears the borrowing bit of reserve id.
func (c *UserConfiguration) SetBorrowing(id uint16, borrowing bool) error {
	if err := checkReserveID(id); err != nil {
		return err
	}
	c.setBit(uint(id)*2, borrowing)
	return nil
}

// SetUsingAsCollateral sets or clears the collateral bit of reserve id.
func (c *UserConfiguration) SetUsingAsCollateral(id uint16, using bool) error {
	if err := checkReserveID(id); err != nil {
		return err
	}
	c.setBit(uint(id)*2+1, using)
	return nil
}

func (c UserConfiguration) IsBorrowing(id uint16) bool {
	return id < MaxReserves && c.bit(uint(id)*2)
}

func (c UserConfiguration) IsUsingAsCollateral(id uint16) bool {
	return id < MaxReserves && c.bit(uint(id)*2+1)
}

func (c UserConfiguration) IsUsingAsCollateralOrBorrowing(id uint16) bool {
	return c.IsBorrowing(id) || c.IsUsingAsCollateral(id)
}

// IsBorrowingAny reports whether any borrowing bit is set.
func (c UserConfiguration) IsBorrowingAny() bool {
	var masked uint256.Int
	masked.And(&c.data, borrowingMask)
	return !masked.IsZero()
}

// IsUsingAsCollateralAny reports whether any collateral bit is set.
func (c UserConfiguration) IsUsingAsCollateralAny() bool {
	var masked uint256.Int
	masked.And(&c.data, collateralMask)
	return !masked.IsZero()
}

func (c UserConfiguration) IsEmpty() bool { return c.data.IsZero() }
