package common

import "github.com/gagliardetto/solana-go"

// DeriveATA computes the associated token account for (wallet, mint),
// matching internal/services/builder/pda.go's GetATAAddress derivation.
// Shared by any package that needs the canonical ATA without the full
// builder package's hyperion_ag-backed PDA cache.
func DeriveATA(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			TokenProgramID[:],
			mint[:],
		},
		ATAProgramID,
	)
	return ata, err
}
