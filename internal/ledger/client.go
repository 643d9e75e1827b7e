// Package ledger talks to the EVM chain that holds the liquidity vault and
// its underlying ERC-20 token. It implements the domain LedgerReader and
// LedgerWriter interfaces; every amount crossing this boundary is an exact
// *big.Int in the token's smallest unit.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/auctiondash/internal/domain"
)

// Minimal ABIs for the vault and its underlying token, mirroring the
// deployed contracts.
const vaultABIJSON = `[
	{"type":"function","name":"balances","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"totalLiquidity","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]}
]`

const tokenABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]}
]`

// receiptPollInterval is how often WaitConfirmed polls for a receipt.
const receiptPollInterval = 2 * time.Second

// Config holds the chain connection parameters.
type Config struct {
	RPCURL       string
	ChainID      int64
	VaultAddress string
	TokenAddress string
}

// Client wraps an ethclient plus the two bound contracts. The signing key is
// optional: a read-only client (monitor mode) passes key == nil and the
// write methods fail fast.
type Client struct {
	eth   *ethclient.Client
	vault *bind.BoundContract
	token *bind.BoundContract

	vaultAddr common.Address
	tokenAddr common.Address

	key     *ecdsa.PrivateKey
	account common.Address
	chainID *big.Int

	logger *slog.Logger
}

// New dials the RPC endpoint, verifies the chain ID, and binds the vault and
// token contracts. key may be nil for read-only use.
func New(ctx context.Context, cfg Config, key *ecdsa.PrivateKey, logger *slog.Logger) (*Client, error) {
	if !common.IsHexAddress(cfg.VaultAddress) {
		return nil, fmt.Errorf("ledger: invalid vault address %q", cfg.VaultAddress)
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("ledger: invalid token address %q", cfg.TokenAddress)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("ledger: chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("ledger: chain id mismatch: endpoint reports %d, config expects %d",
			chainID.Int64(), cfg.ChainID)
	}

	vaultABI, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("ledger: parse vault abi: %w", err)
	}
	tokenABI, err := abi.JSON(strings.NewReader(tokenABIJSON))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("ledger: parse token abi: %w", err)
	}

	vaultAddr := common.HexToAddress(cfg.VaultAddress)
	tokenAddr := common.HexToAddress(cfg.TokenAddress)

	c := &Client{
		eth:       eth,
		vault:     bind.NewBoundContract(vaultAddr, vaultABI, eth, eth, eth),
		token:     bind.NewBoundContract(tokenAddr, tokenABI, eth, eth, eth),
		vaultAddr: vaultAddr,
		tokenAddr: tokenAddr,
		key:       key,
		chainID:   chainID,
		logger:    logger.With(slog.String("component", "ledger")),
	}
	if key != nil {
		c.account = ethcrypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Account returns the transacting address, or the zero address when the
// client is read-only.
func (c *Client) Account() string {
	return c.account.Hex()
}

// VaultAddress returns the vault contract address (the allowance spender).
func (c *Client) VaultAddress() string {
	return c.vaultAddr.Hex()
}

// ReadBalance returns the user's deposited vault balance.
func (c *Client) ReadBalance(ctx context.Context, user string) (*big.Int, error) {
	return c.callUint(ctx, c.vault, "balances", common.HexToAddress(user))
}

// ReadAllowance returns the token allowance owner has granted spender.
func (c *Client) ReadAllowance(ctx context.Context, owner, spender string) (*big.Int, error) {
	return c.callUint(ctx, c.token, "allowance",
		common.HexToAddress(owner), common.HexToAddress(spender))
}

// ReadPoolTotal returns the vault's total liquidity.
func (c *Client) ReadPoolTotal(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, c.vault, "totalLiquidity")
}

func (c *Client) callUint(ctx context.Context, contract *bind.BoundContract, method string, args ...any) (*big.Int, error) {
	var out []any
	opts := &bind.CallOpts{Context: ctx}
	if err := contract.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("ledger: %s: %v: %w", method, err, domain.ErrLedgerRead)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("ledger: %s: unexpected output arity %d: %w", method, len(out), domain.ErrLedgerRead)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("ledger: %s: unexpected output type %T: %w", method, out[0], domain.ErrLedgerRead)
	}
	return value, nil
}

// Approve grants the spender permission to move amount of the underlying
// token on the caller's behalf.
func (c *Client) Approve(ctx context.Context, spender string, amount *big.Int) (string, error) {
	return c.transact(ctx, c.token, "approve", common.HexToAddress(spender), amount)
}

// Deposit commits amount of underlying token to the vault.
func (c *Client) Deposit(ctx context.Context, amount *big.Int) (string, error) {
	return c.transact(ctx, c.vault, "deposit", amount)
}

// Withdraw removes amount of underlying token from the vault.
func (c *Client) Withdraw(ctx context.Context, amount *big.Int) (string, error) {
	return c.transact(ctx, c.vault, "withdraw", amount)
}

func (c *Client) transact(ctx context.Context, contract *bind.BoundContract, method string, args ...any) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("ledger: %s: no signing key configured: %w", method, domain.ErrLedgerWrite)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return "", fmt.Errorf("ledger: %s: transactor: %v: %w", method, err, domain.ErrLedgerWrite)
	}
	opts.Context = ctx

	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return "", fmt.Errorf("ledger: %s: %v: %w", method, err, domain.ErrLedgerWrite)
	}

	c.logger.InfoContext(ctx, "ledger write submitted",
		slog.String("method", method),
		slog.String("tx", tx.Hash().Hex()),
	)
	return tx.Hash().Hex(), nil
}

// WaitConfirmed polls for the transaction receipt until it is mined or ctx
// expires. A context deadline maps to ErrConfirmationTimeout: the outcome is
// unknown, not known-failed. A reverted receipt is a write failure.
func (c *Client) WaitConfirmed(ctx context.Context, txRef string) error {
	hash := common.HexToHash(txRef)

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("ledger: tx %s reverted: %w", txRef, domain.ErrLedgerWrite)
			}
			return nil
		case errors.Is(err, ethereum.NotFound):
			// Not mined yet, keep polling.
		case ctx.Err() != nil:
			return fmt.Errorf("ledger: tx %s: %w", txRef, domain.ErrConfirmationTimeout)
		default:
			c.logger.DebugContext(ctx, "receipt poll failed",
				slog.String("tx", txRef),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("ledger: tx %s: %w", txRef, domain.ErrConfirmationTimeout)
		case <-ticker.C:
		}
	}
}

// Compile-time interface checks.
var (
	_ domain.LedgerReader = (*Client)(nil)
	_ domain.LedgerWriter = (*Client)(nil)
)
