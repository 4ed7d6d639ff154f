package client_test

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"lendingcore/core/state"
	nativecommon "lendingcore/native/common"
	"lendingcore/native/lending"
	"lendingcore/services/lending/client"
	"lendingcore/services/lending/server"
	"lendingcore/storage"
)

var (
	asset = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	user  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

const operatorToken = "operator"

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	oracle := lending.NewStaticOracle()
	pauses := nativecommon.NewPauseSet()
	pool := lending.NewPool(storage.NewMemDB(), state.OpenLendingState, oracle)
	pool.SetPauses(pauses)
	_, err := pool.InitReserve(lending.InitReserveParams{
		Asset: asset,
		Configuration: lending.ReserveConfiguration{
			LTVBps:                  7_500,
			LiquidationThresholdBps: 8_000,
			LiquidationBonusBps:     10_500,
			Active:                  true,
		},
	})
	require.NoError(t, err)
	require.NoError(t, oracle.SetAssetPrice(asset, big.NewInt(1)))

	svc := server.New(pool, server.Options{
		Prices: oracle,
		Pauses: pauses,
		Auth:   server.NewAuthenticator(server.AuthConfig{HMACSecret: "secret", APITokens: []string{operatorToken}}),
	})
	api := httptest.NewServer(svc.Handler())
	t.Cleanup(api.Close)
	return api
}

func TestClientReadsReservesAndAccounts(t *testing.T) {
	api := newAPI(t)
	c, err := client.New(api.URL+"/", "", api.Client())
	require.NoError(t, err)
	ctx := context.Background()

	reserves, err := c.Reserves(ctx)
	require.NoError(t, err)
	require.Len(t, reserves, 1)
	require.Equal(t, asset.Hex(), reserves[0].Asset)

	account, err := c.Account(ctx, user.Hex())
	require.NoError(t, err)
	require.Equal(t, "max", account.HealthFactor)

	pos, err := c.Position(ctx, user.Hex(), asset.Hex())
	require.NoError(t, err)
	require.Equal(t, "0", pos.Balance)

	evts, err := c.Events(ctx, client.EventQuery{User: user.Hex(), Limit: 10})
	require.NoError(t, err)
	require.Empty(t, evts)
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	anonymous, err := client.New(api.URL, "", api.Client())
	require.NoError(t, err)
	_, err = anonymous.Supply(ctx, server.SupplyRequest{Asset: asset.Hex(), Amount: "1"})
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "unauthenticated", apiErr.Body.Kind)

	operator, err := client.New(api.URL, operatorToken, api.Client())
	require.NoError(t, err)
	require.NoError(t, operator.Pause(ctx, lending.ModuleName))
	require.NoError(t, operator.Resume(ctx, lending.ModuleName))

	_, err = operator.Account(ctx, "not-an-address")
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := client.New("localhost", "", nil)
	require.Error(t, err)
}
