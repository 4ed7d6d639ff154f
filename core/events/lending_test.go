package events

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testReserve = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testUser    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestSupplyEvent(t *testing.T) {
	evt := Supply{
		Reserve:      testReserve,
		User:         testUser,
		OnBehalfOf:   testUser,
		Amount:       big.NewInt(500),
		ReferralCode: 7,
	}.Event()
	if evt.Type != TypeLendingSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["reserve"] != "0x00000000000000000000000000000000000000aa" {
		t.Fatalf("unexpected reserve attr: %s", evt.Attributes["reserve"])
	}
	if evt.Attributes["amount"] != "500" || evt.Attributes["referralCode"] != "7" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
}

func TestSupplyEventOmitsZeroReferral(t *testing.T) {
	evt := Supply{Reserve: testReserve, User: testUser, OnBehalfOf: testUser}.Event()
	if _, ok := evt.Attributes["referralCode"]; ok {
		t.Fatalf("expected no referral attribute: %+v", evt.Attributes)
	}
	if evt.Attributes["amount"] != "0" {
		t.Fatalf("nil amount should render as zero, got %s", evt.Attributes["amount"])
	}
}

func TestCollateralEventsRenderReserveAndUser(t *testing.T) {
	for _, evt := range []Event{
		ReserveUsedAsCollateralEnabled{Reserve: testReserve, User: testUser},
		ReserveUsedAsCollateralDisabled{Reserve: testReserve, User: testUser},
	} {
		rendered := Render(evt)
		if rendered.Type != evt.EventType() {
			t.Fatalf("type mismatch: %s vs %s", rendered.Type, evt.EventType())
		}
		if rendered.Attributes["user"] != "0x00000000000000000000000000000000000000bb" {
			t.Fatalf("unexpected user attr: %+v", rendered.Attributes)
		}
	}
}

func TestBufferFlushPreservesOrder(t *testing.T) {
	var buf Buffer
	buf.Emit(ReserveUsedAsCollateralEnabled{Reserve: testReserve, User: testUser})
	buf.Emit(Supply{Reserve: testReserve, User: testUser, OnBehalfOf: testUser, Amount: big.NewInt(1)})

	rec := &Recorder{}
	buf.Flush(rec)
	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeLendingCollateralEnabled || got[1].EventType() != TypeLendingSupply {
		t.Fatalf("unexpected order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	if len(buf.Events()) != 0 {
		t.Fatalf("buffer should be empty after flush")
	}
}

func TestBufferResetDropsEvents(t *testing.T) {
	var buf Buffer
	buf.Emit(Withdraw{Reserve: testReserve, User: testUser, To: testUser, Amount: big.NewInt(3)})
	buf.Reset()
	rec := &Recorder{}
	buf.Flush(rec)
	if len(rec.Events()) != 0 {
		t.Fatalf("expected no events after reset")
	}
}
