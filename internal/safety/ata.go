package safety

import (
	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/cyclearb/internal/common"
)

// deriveATA computes the associated token account for (wallet, mint).
func deriveATA(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	return common.DeriveATA(wallet, mint)
}
