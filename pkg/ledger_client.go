package pkg

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"github.com/scinklja/vip-bot/common"
)

// LedgerClient validates ownership proofs and queries merit scores from
// the ledger explorer API.
type LedgerClient struct {
	client      *http.Client
	explorerURL string
}

func NewLedgerClient(explorerURL string) *LedgerClient {
	return &LedgerClient{
		client:      &http.Client{Timeout: 15 * time.Second},
		explorerURL: explorerURL,
	}
}

// DeriveAddress converts a base58 address into the hex form the explorer
// and relay key on. Fails with common.ErrMalformedSignature when the
// input is not a 32-byte base58 public key.
func (c *LedgerClient) DeriveAddress(address string) (string, error) {
	pubKeyBytes, err := base58.Decode(address)
	if err != nil {
		return "", fmt.Errorf("decoding address: %w", common.ErrMalformedSignature)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return "", fmt.Errorf("bad public key length %d: %w", len(pubKeyBytes), common.ErrMalformedSignature)
	}
	return hex.EncodeToString(pubKeyBytes), nil
}

// ValidateSignature checks that proof is a valid ed25519 signature of
// challenge by the key behind address.
func (c *LedgerClient) ValidateSignature(address, proof, challenge string) (bool, error) {
	pubKeyBytes, err := base58.Decode(address)
	if err != nil {
		return false, fmt.Errorf("decoding address: %w", common.ErrMalformedSignature)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("bad public key length %d: %w", len(pubKeyBytes), common.ErrMalformedSignature)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(proof)
	if err != nil {
		return false, fmt.Errorf("decoding proof: %w", common.ErrMalformedSignature)
	}

	return ed25519.Verify(pubKeyBytes, []byte(challenge), sigBytes), nil
}

// ComputeMerit queries the explorer for the current merit score of a
// derived (hex) address.
func (c *LedgerClient) ComputeMerit(ctx context.Context, derived string) (uint64, error) {
	url := fmt.Sprintf("%s/v1/addresses/%s/merit", c.explorerURL, derived)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("merit query failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Merit uint64 `json:"merit"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("failed to unmarshal merit response: %w", err)
	}
	return out.Merit, nil
}
