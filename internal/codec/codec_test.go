package codec

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/cyclearb/internal/domain"
)

func mustPool() domain.PoolId {
	return solana.NewWallet().PublicKey()
}

func TestDecodeCPMM_RejectsWrongSize(t *testing.T) {
	_, err := DecodeCPMM(mustPool(), make([]byte, cpmmLayoutSize-1))
	if err == nil {
		t.Fatal("expected LengthMismatch, got nil")
	}
	de, ok := err.(*DecodeError)
	if !ok || de.Kind != LengthMismatch {
		t.Fatalf("expected LengthMismatch DecodeError, got %v", err)
	}
}

func TestDecodeCPMM_CanonicalOrderStable(t *testing.T) {
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	buf1 := encodeCPMM(mintA, mintB, 1000, 2000, 25, 10000)
	buf2 := encodeCPMM(mintB, mintA, 2000, 1000, 25, 10000)

	s1, err := DecodeCPMM(mustPool(), buf1)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := DecodeCPMM(mustPool(), buf2)
	if err != nil {
		t.Fatal(err)
	}

	if s1.TokenA != s2.TokenA || s1.TokenB != s2.TokenB {
		t.Fatalf("canonical order not stable across mint orderings")
	}
	if s1.ReserveA != s2.ReserveA || s1.ReserveB != s2.ReserveB {
		t.Fatalf("reserves should track canonical mint order, got %+v vs %+v", s1, s2)
	}
}

func TestDecodeCPMM_RejectsBadFee(t *testing.T) {
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()
	buf := encodeCPMM(mintA, mintB, 1000, 2000, 10000, 10000) // numerator == denominator
	_, err := DecodeCPMM(mustPool(), buf)
	if err == nil {
		t.Fatal("expected FieldRange error for fee numerator >= denominator")
	}
}

func TestDecodeCLMM_RejectsZeroSqrtPrice(t *testing.T) {
	buf := make([]byte, clmmLayoutSize)
	_, err := DecodeCLMM(mustPool(), buf)
	if err == nil {
		t.Fatal("expected FieldRange error for zero sqrt price")
	}
}

func TestDecodeCurve_BothLayouts(t *testing.T) {
	short := make([]byte, curveShortLayoutSize)
	binary.LittleEndian.PutUint64(short[curveOffBaseReserve:], 500)
	binary.LittleEndian.PutUint64(short[curveOffQuoteReserve:], 700)
	short[curveOffComplete] = 1

	snap, err := DecodeCurve(short)
	if err != nil {
		t.Fatal(err)
	}
	if snap.BaseReserve != 500 || snap.QuoteReserve != 700 || !snap.Complete {
		t.Fatalf("unexpected short-layout decode: %+v", snap)
	}

	long := make([]byte, curveLongLayoutSize)
	binary.LittleEndian.PutUint64(long[curveOffBaseReserve:], 500)
	binary.LittleEndian.PutUint64(long[curveOffQuoteReserve:], 700)

	if _, err := DecodeCurve(long); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeCurve_RejectsNeitherLayout(t *testing.T) {
	_, err := DecodeCurve(make([]byte, 3))
	if err == nil {
		t.Fatal("expected LengthMismatch for unrecognized curve layout")
	}
}

func encodeCPMM(mintA, mintB solana.PublicKey, reserveA, reserveB uint64, feeNum, feeDen uint16) []byte {
	buf := make([]byte, cpmmLayoutSize)
	binary.LittleEndian.PutUint64(buf[cpmmOffReserveA:], reserveA)
	binary.LittleEndian.PutUint64(buf[cpmmOffReserveB:], reserveB)
	binary.LittleEndian.PutUint16(buf[cpmmOffFeeNumerator:], feeNum)
	binary.LittleEndian.PutUint16(buf[cpmmOffFeeDenominator:], feeDen)
	copy(buf[cpmmOffMintA:], mintA[:])
	copy(buf[cpmmOffMintB:], mintB[:])
	return buf
}
