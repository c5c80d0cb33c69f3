package wager

import (
	"context"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/potshotlabs/potshot-client/chain"
	"github.com/potshotlabs/potshot-client/config"
	"github.com/potshotlabs/potshot-client/db"
	"github.com/potshotlabs/potshot-client/ledger"
	"github.com/potshotlabs/potshot-client/store"
)

var (
	testWallet   = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	testContract = ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeChain is a scriptable Chain for engine and sweeper tests.
type fakeChain struct {
	wallet   ethcommon.Address
	contract ethcommon.Address

	currentBlock uint64
	pot          *big.Int
	price        *big.Int
	canCommit    bool
	canReveal    bool
	hasPending   bool
	pending      *chain.PendingShot
	cooldown     uint64

	// cachedHasPending, when set, is what the TTL-cached read returns; the
	// fresh read always returns hasPending.
	cachedHasPending *bool

	commitReceipt  *types.Receipt
	commitErr      error
	revealReceipt  *types.Receipt
	revealErr      error
	cleanupReceipt *types.Receipt
	cleanupErr     error

	parseWon   bool
	parseFound bool
	parseErr   error

	commits  int
	reveals  int
	cleanups int

	potInvalidations    int
	playerInvalidations int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		wallet:       testWallet,
		contract:     testContract,
		currentBlock: 1000,
		pot:          big.NewInt(10_000),
		price:        big.NewInt(1_000),
		canCommit:    true,
		pending:      &chain.PendingShot{Amount: big.NewInt(0)},
		parseFound:   true,
	}
}

func (f *fakeChain) WalletAddress() ethcommon.Address   { return f.wallet }
func (f *fakeChain) ContractAddress() ethcommon.Address { return f.contract }

func (f *fakeChain) CurrentBlock(context.Context) (uint64, error) { return f.currentBlock, nil }

func (f *fakeChain) GetCurrentPot(context.Context) (*big.Int, error) { return f.pot, nil }
func (f *fakeChain) GetShotCost(context.Context) (*big.Int, error)   { return f.price, nil }

func (f *fakeChain) CanCommitShot(context.Context, ethcommon.Address) (bool, error) {
	return f.canCommit, nil
}

func (f *fakeChain) CanRevealShot(context.Context, ethcommon.Address) (bool, error) {
	return f.canReveal, nil
}

func (f *fakeChain) HasPendingShot(context.Context, ethcommon.Address) (bool, error) {
	if f.cachedHasPending != nil {
		return *f.cachedHasPending, nil
	}
	return f.hasPending, nil
}

func (f *fakeChain) HasPendingShotFresh(context.Context, ethcommon.Address) (bool, error) {
	return f.hasPending, nil
}

func (f *fakeChain) GetPendingShot(context.Context, ethcommon.Address) (*chain.PendingShot, error) {
	return f.pending, nil
}

func (f *fakeChain) GetPendingShotFresh(context.Context, ethcommon.Address) (*chain.PendingShot, error) {
	return f.pending, nil
}

func (f *fakeChain) GetCooldownRemaining(context.Context, ethcommon.Address) (uint64, error) {
	return f.cooldown, nil
}

func (f *fakeChain) CommitShot(_ context.Context, _ [32]byte, _ *big.Int) (*types.Receipt, error) {
	f.commits++
	if f.commitErr != nil {
		return nil, f.commitErr
	}
	return f.commitReceipt, nil
}

func (f *fakeChain) RevealShot(_ context.Context, _ [32]byte) (*types.Receipt, error) {
	f.reveals++
	if f.revealErr != nil {
		return nil, f.revealErr
	}
	return f.revealReceipt, nil
}

func (f *fakeChain) CleanupExpiredPendingShot(_ context.Context, _ ethcommon.Address) (*types.Receipt, error) {
	f.cleanups++
	if f.cleanupErr != nil {
		return nil, f.cleanupErr
	}
	return f.cleanupReceipt, nil
}

func (f *fakeChain) ParseShotRevealed(*types.Receipt) (bool, bool, error) {
	return f.parseWon, f.parseFound, f.parseErr
}

func (f *fakeChain) InvalidatePot()                       { f.potInvalidations++ }
func (f *fakeChain) InvalidatePlayer(_ ethcommon.Address) { f.playerInvalidations++ }

// fakeRecorder scripts the ledger handoff.
type fakeRecorder struct {
	shotSynced bool
	shotErr    error
	winSynced  bool
	winErr     error
	shots      []*ledger.ShotRecord
	wins       []*ledger.WinRecord
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{shotSynced: true, winSynced: true}
}

func (f *fakeRecorder) RecordShot(_ context.Context, shot *ledger.ShotRecord) (bool, error) {
	f.shots = append(f.shots, shot)
	return f.shotSynced, f.shotErr
}

func (f *fakeRecorder) RecordWinner(_ context.Context, win *ledger.WinRecord) (bool, error) {
	f.wins = append(f.wins, win)
	return f.winSynced, f.winErr
}

// fakeDiscounts scripts the grant program.
type fakeDiscounts struct {
	grants      []ledger.DiscountGrant
	fetchErr    error
	redeemErr   error
	redeemCalls int
}

func (f *fakeDiscounts) FetchDiscounts(context.Context, string) ([]ledger.DiscountGrant, error) {
	return f.grants, f.fetchErr
}

func (f *fakeDiscounts) RedeemDiscount(_ context.Context, grantID, _ string) (*ledger.Redemption, error) {
	f.redeemCalls++
	if f.redeemErr != nil {
		return nil, f.redeemErr
	}
	for _, g := range f.grants {
		if g.ID == grantID {
			return &ledger.Redemption{GrantID: grantID, Percentage: g.Percentage}, nil
		}
	}
	return nil, nil
}

func testEngineConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	return cfg
}

func newTestEngine(t *testing.T, fc *fakeChain, rec ResultRecorder, disc DiscountSource) (*Engine, *store.SecretStore) {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	secrets := store.NewSecretStore(database.Client())
	engine := NewEngine(fc, rec, disc, secrets, testEngineConfig(t), zerolog.Nop())
	return engine, secrets
}

func successReceipt(txHash string, block uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      ethcommon.HexToHash(txHash),
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

// drainTransitions collects everything currently buffered on the channel.
func drainTransitions(e *Engine) []Transition {
	var out []Transition
	for {
		select {
		case t := <-e.Transitions():
			out = append(out, t)
		default:
			return out
		}
	}
}
