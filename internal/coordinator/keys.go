package coordinator

import "fmt"

// Entity keys. Vault-level operations serialize on the vault, loan-level
// operations on the loan; creation serializes on the asset being pledged
// since no vault id exists yet.

func VaultKey(vaultID string) string { return "vault:" + vaultID }

func LoanKey(loanID string) string { return "loan:" + loanID }

func AssetKey(owner, assetContract string, assetTokenID uint64) string {
	return fmt.Sprintf("asset:%s:%s:%d", owner, assetContract, assetTokenID)
}
