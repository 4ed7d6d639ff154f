package eventlog

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"lendingcore/core/events"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open("sqlite", dsn)
	require.NoError(t, err)
	return db
}

var (
	reserveA = common.HexToAddress("0xa1")
	reserveB = common.HexToAddress("0xb1")
	alice    = common.HexToAddress("0xe1")
	bob      = common.HexToAddress("0xe2")
)

func TestStoreAppendsAndFilters(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)

	store.Emit(events.ReserveUsedAsCollateralEnabled{Reserve: reserveA, User: alice})
	store.Emit(events.Supply{Reserve: reserveA, User: alice, OnBehalfOf: alice, Amount: big.NewInt(1_000)})
	store.Emit(events.Supply{Reserve: reserveB, User: bob, OnBehalfOf: bob, Amount: big.NewInt(5)})
	store.Emit(events.Withdraw{Reserve: reserveA, User: alice, To: bob, Amount: big.NewInt(10)})

	seq, head := store.Head()
	require.Equal(t, uint64(4), seq)
	require.Len(t, head, 64)

	ctx := context.Background()
	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, events.TypeLendingCollateralEnabled, all[0].Type)
	require.Equal(t, all[0].Digest, all[1].PrevDigest)

	aliceA, err := store.List(ctx, Filter{Reserve: reserveA.Hex(), Account: alice.Hex()})
	require.NoError(t, err)
	require.Len(t, aliceA, 3)

	supplies, err := store.List(ctx, Filter{Type: events.TypeLendingSupply, After: 2})
	require.NoError(t, err)
	require.Len(t, supplies, 1)
	evt, err := supplies[0].Event()
	require.NoError(t, err)
	require.Equal(t, "5", evt.Attributes["amount"])
	require.Equal(t, strings.ToLower(bob.Hex()), evt.Attributes["user"])

	require.NoError(t, store.Verify(ctx))
}

func TestStoreResumesChainAndDetectsTampering(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db, nil)
	require.NoError(t, err)
	store.Emit(events.Supply{Reserve: reserveA, User: alice, OnBehalfOf: alice, Amount: big.NewInt(1)})
	store.Emit(events.Supply{Reserve: reserveA, User: alice, OnBehalfOf: alice, Amount: big.NewInt(2)})
	_, head := store.Head()

	reopened, err := New(db, nil)
	require.NoError(t, err)
	seq, resumed := reopened.Head()
	require.Equal(t, uint64(2), seq)
	require.Equal(t, head, resumed)

	record, err := reopened.Append(context.Background(), events.Render(events.Repay{
		Reserve: reserveB, User: alice, Repayer: alice, Amount: big.NewInt(3),
	}))
	require.NoError(t, err)
	require.Equal(t, uint64(3), record.Sequence)
	require.Equal(t, head, record.PrevDigest)
	require.NoError(t, reopened.Verify(context.Background()))

	require.NoError(t, db.Model(&Record{}).Where("sequence = ?", 2).
		Update("attributes", `{"amount":"999"}`).Error)
	require.ErrorIs(t, reopened.Verify(context.Background()), ErrChainBroken)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "")
	require.Error(t, err)
}
