package bundle

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/cyclearb/internal/common"
)

// ComputeBudgetProgramID is the native compute-budget program address.
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// setComputeUnitLimitInstruction and setComputeUnitPriceInstruction are
// adapted from internal/aggregator/services/priority/service.go's compute
// budget instruction pair.
type setComputeUnitLimitInstruction struct {
	Units uint32
}

func (ix *setComputeUnitLimitInstruction) ProgramID() solana.PublicKey { return ComputeBudgetProgramID }
func (ix *setComputeUnitLimitInstruction) Accounts() []*solana.AccountMeta { return nil }
func (ix *setComputeUnitLimitInstruction) Data() ([]byte, error) {
	data := make([]byte, 5)
	data[0] = 2 // SetComputeUnitLimit discriminator
	binary.LittleEndian.PutUint32(data[1:], ix.Units)
	return data, nil
}

type setComputeUnitPriceInstruction struct {
	MicroLamports uint64
}

func (ix *setComputeUnitPriceInstruction) ProgramID() solana.PublicKey { return ComputeBudgetProgramID }
func (ix *setComputeUnitPriceInstruction) Accounts() []*solana.AccountMeta { return nil }
func (ix *setComputeUnitPriceInstruction) Data() ([]byte, error) {
	data := make([]byte, 9)
	data[0] = 3 // SetComputeUnitPrice discriminator
	binary.LittleEndian.PutUint64(data[1:], ix.MicroLamports)
	return data, nil
}

// tipTransferInstruction moves lamports from the signer to the relay's tip
// account using the native System Program transfer instruction.
type tipTransferInstruction struct {
	From, To solana.PublicKey
	Lamports uint64
}

func (ix *tipTransferInstruction) ProgramID() solana.PublicKey { return common.SystemProgramID }
func (ix *tipTransferInstruction) Accounts() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		{PublicKey: ix.From, IsSigner: true, IsWritable: true},
		{PublicKey: ix.To, IsSigner: false, IsWritable: true},
	}
}
func (ix *tipTransferInstruction) Data() ([]byte, error) {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:], 2) // System Program Transfer discriminator
	binary.LittleEndian.PutUint64(data[4:], ix.Lamports)
	return data, nil
}

// cpmmAccounts is the fixed account order for a CPMM swap instruction
// (spec.md §4.9): user source/destination ATAs, pool state, authority,
// open-orders, base/quote vaults.
type cpmmAccounts struct {
	ProgramID     solana.PublicKey
	PoolState     solana.PublicKey
	Authority     solana.PublicKey
	OpenOrders    solana.PublicKey
	BaseVault     solana.PublicKey
	QuoteVault    solana.PublicKey
	UserSourceATA solana.PublicKey
	UserDestATA   solana.PublicKey
	UserOwner     solana.PublicKey
	TokenProgram  solana.PublicKey
}

type cpmmSwapInstruction struct {
	accounts     cpmmAccounts
	amountIn     uint64
	minAmountOut uint64
}

func (ix *cpmmSwapInstruction) ProgramID() solana.PublicKey { return ix.accounts.ProgramID }

func (ix *cpmmSwapInstruction) Accounts() []*solana.AccountMeta {
	a := ix.accounts
	return []*solana.AccountMeta{
		{PublicKey: a.UserSourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserDestATA, IsSigner: false, IsWritable: true},
		{PublicKey: a.PoolState, IsSigner: false, IsWritable: true},
		{PublicKey: a.Authority, IsSigner: false, IsWritable: false},
		{PublicKey: a.OpenOrders, IsSigner: false, IsWritable: true},
		{PublicKey: a.BaseVault, IsSigner: false, IsWritable: true},
		{PublicKey: a.QuoteVault, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserOwner, IsSigner: true, IsWritable: false},
		{PublicKey: a.TokenProgram, IsSigner: false, IsWritable: false},
	}
}

func (ix *cpmmSwapInstruction) Data() ([]byte, error) {
	data := make([]byte, 17)
	data[0] = 1 // Swap discriminator
	binary.LittleEndian.PutUint64(data[1:], ix.amountIn)
	binary.LittleEndian.PutUint64(data[9:], ix.minAmountOut)
	return data, nil
}

// clmmAccounts is the fixed account order for a CLMM swap instruction
// (spec.md §4.9): only the current tick array is included — a hop that
// would need to cross one is already impossible because the candidate
// passed the impact cap before reaching the bundle assembler.
type clmmAccounts struct {
	ProgramID     solana.PublicKey
	PoolState     solana.PublicKey
	Authority     solana.PublicKey
	BaseVault     solana.PublicKey
	QuoteVault    solana.PublicKey
	TickArray     solana.PublicKey
	UserSourceATA solana.PublicKey
	UserDestATA   solana.PublicKey
	UserOwner     solana.PublicKey
	TokenProgram  solana.PublicKey
}

type clmmSwapInstruction struct {
	accounts     clmmAccounts
	amountIn     uint64
	minAmountOut uint64
}

func (ix *clmmSwapInstruction) ProgramID() solana.PublicKey { return ix.accounts.ProgramID }

func (ix *clmmSwapInstruction) Accounts() []*solana.AccountMeta {
	a := ix.accounts
	return []*solana.AccountMeta{
		{PublicKey: a.UserSourceATA, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserDestATA, IsSigner: false, IsWritable: true},
		{PublicKey: a.PoolState, IsSigner: false, IsWritable: true},
		{PublicKey: a.Authority, IsSigner: false, IsWritable: false},
		{PublicKey: a.BaseVault, IsSigner: false, IsWritable: true},
		{PublicKey: a.QuoteVault, IsSigner: false, IsWritable: true},
		{PublicKey: a.TickArray, IsSigner: false, IsWritable: true},
		{PublicKey: a.UserOwner, IsSigner: true, IsWritable: false},
		{PublicKey: a.TokenProgram, IsSigner: false, IsWritable: false},
	}
}

func (ix *clmmSwapInstruction) Data() ([]byte, error) {
	data := make([]byte, 17)
	data[0] = 1 // Swap discriminator
	binary.LittleEndian.PutUint64(data[1:], ix.amountIn)
	binary.LittleEndian.PutUint64(data[9:], ix.minAmountOut)
	return data, nil
}

// deriveTickArrayPDA derives the current tick array's address from the
// pool's own account key and tick index, the way internal/services/builder/pda.go
// derives other PDAs with solana.FindProgramAddress — simplified to the
// single current tick array the impact cap guarantees is enough.
func deriveTickArrayPDA(programID, pool solana.PublicKey, tickIndex int32) (solana.PublicKey, error) {
	idxBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(idxBytes, uint32(tickIndex))
	pda, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("tick_array"),
			pool[:],
			idxBytes,
		},
		programID,
	)
	return pda, err
}
