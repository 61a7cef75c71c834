package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Arrogantx/slapper/internal/types"
)

// RecoverSigner returns the address that produced an EIP-191 personal_sign signature over message
func RecoverSigner(message string, signatureHex string) (types.WalletAddress, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signatureHex))
	if err != nil {
		return "", fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length: %d", len(sig))
	}

	// wallets emit v as 27/28; SigToPub expects 0/1
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover signer: %w", err)
	}

	return types.NormalizeAddress(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// challengeMessage renders the text the wallet is asked to sign
func challengeMessage(appName, appURL string, address types.WalletAddress, chainID int64, nonce, issuedAt string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your wallet:\n", appName)
	fmt.Fprintf(&b, "%s\n\n", address.Checksum())
	fmt.Fprintf(&b, "URI: %s\n", appURL)
	fmt.Fprintf(&b, "Chain ID: %d\n", chainID)
	fmt.Fprintf(&b, "Nonce: %s\n", nonce)
	fmt.Fprintf(&b, "Issued At: %s", issuedAt)
	return b.String()
}
