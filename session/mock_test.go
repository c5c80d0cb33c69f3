package session_test

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
	"github.com/potshotlabs/potshot-client/session"
	"github.com/potshotlabs/potshot-client/store"
	"github.com/potshotlabs/potshot-client/wager"
)

var (
	testWallet   = ethcommon.HexToAddress("0x1111111111111111111111111111111111111111")
	testContract = ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeChain is a scriptable wager.Chain. commitGate, when set, blocks
// CommitShot until closed so tests can hold an operation in flight;
// commitEntered, when set, is closed once CommitShot has been entered.
type fakeChain struct {
	currentBlock uint64
	pot          *big.Int
	price        *big.Int
	canCommit    bool
	hasPending   bool
	pending      *chain.PendingShot
	cooldown     uint64

	commitReceipt *types.Receipt
	revealReceipt *types.Receipt
	parseWon      bool

	commitGate    chan struct{}
	commitEntered chan struct{}
	readCalls     int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		currentBlock: 1000,
		pot:          big.NewInt(10_000),
		price:        big.NewInt(1_000),
		canCommit:    true,
		pending:      &chain.PendingShot{Amount: big.NewInt(0)},
	}
}

func (f *fakeChain) WalletAddress() ethcommon.Address   { return testWallet }
func (f *fakeChain) ContractAddress() ethcommon.Address { return testContract }

func (f *fakeChain) CurrentBlock(context.Context) (uint64, error) {
	f.readCalls++
	return f.currentBlock, nil
}

func (f *fakeChain) GetCurrentPot(context.Context) (*big.Int, error) {
	f.readCalls++
	return f.pot, nil
}

func (f *fakeChain) GetShotCost(context.Context) (*big.Int, error) {
	f.readCalls++
	return f.price, nil
}

func (f *fakeChain) CanCommitShot(context.Context, ethcommon.Address) (bool, error) {
	f.readCalls++
	return f.canCommit, nil
}

func (f *fakeChain) CanRevealShot(context.Context, ethcommon.Address) (bool, error) {
	return false, nil
}

func (f *fakeChain) HasPendingShot(context.Context, ethcommon.Address) (bool, error) {
	return f.hasPending, nil
}

func (f *fakeChain) HasPendingShotFresh(context.Context, ethcommon.Address) (bool, error) {
	return f.hasPending, nil
}

func (f *fakeChain) GetPendingShot(context.Context, ethcommon.Address) (*chain.PendingShot, error) {
	f.readCalls++
	return f.pending, nil
}

func (f *fakeChain) GetPendingShotFresh(context.Context, ethcommon.Address) (*chain.PendingShot, error) {
	return f.pending, nil
}

func (f *fakeChain) GetCooldownRemaining(context.Context, ethcommon.Address) (uint64, error) {
	f.readCalls++
	return f.cooldown, nil
}

func (f *fakeChain) CommitShot(ctx context.Context, _ [32]byte, _ *big.Int) (*types.Receipt, error) {
	if f.commitEntered != nil {
		close(f.commitEntered)
	}
	if f.commitGate != nil {
		select {
		case <-f.commitGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.commitReceipt, nil
}

func (f *fakeChain) RevealShot(context.Context, [32]byte) (*types.Receipt, error) {
	return f.revealReceipt, nil
}

func (f *fakeChain) CleanupExpiredPendingShot(context.Context, ethcommon.Address) (*types.Receipt, error) {
	return successReceipt("0xffff000000000000000000000000000000000000000000000000000000000006", f.currentBlock), nil
}

func (f *fakeChain) ParseShotRevealed(*types.Receipt) (bool, bool, error) {
	return f.parseWon, true, nil
}

func (f *fakeChain) InvalidatePot()                     {}
func (f *fakeChain) InvalidatePlayer(ethcommon.Address) {}

// fakeLedger succeeds on every call; session tests exercise orchestration,
// not ledger failure modes.
type fakeLedger struct {
	grants []ledger.DiscountGrant
	stats  *ledger.PlayerAggregate
}

func (f *fakeLedger) RecordShot(_ context.Context, shot *ledger.ShotRecord) (*ledger.ShotRecord, error) {
	return shot, nil
}

func (f *fakeLedger) RecordWinner(_ context.Context, win *ledger.WinRecord) (*ledger.WinRecord, error) {
	return win, nil
}

func (f *fakeLedger) FetchDiscounts(context.Context, string) ([]ledger.DiscountGrant, error) {
	return f.grants, nil
}

func (f *fakeLedger) RedeemDiscount(_ context.Context, id string, _ string) (*ledger.Redemption, error) {
	return &ledger.Redemption{GrantID: id}, nil
}

func (f *fakeLedger) GetPlayerStats(context.Context, string) (*ledger.PlayerAggregate, error) {
	return f.stats, nil
}

func successReceipt(txHash string, block uint64) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      ethcommon.HexToHash(txHash),
		BlockNumber: new(big.Int).SetUint64(block),
	}
}

func newTestOrchestrator(t *testing.T, fc *fakeChain) (*session.Orchestrator, *store.SecretStore, *config.Config) {
	t.Helper()

	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	cfg, err := config.LoadDefaultConfig()
	require.NoError(t, err)
	cfg.RefreshInterCallDelayMillis = 1

	fl := &fakeLedger{}
	secrets := store.NewSecretStore(database.Client())
	backlog := store.NewBacklog(database.Client())
	recorder := ledger.NewRecorder(fl, backlog, zerolog.Nop())

	engine := wager.NewEngine(fc, recorder, fl, secrets, cfg, zerolog.Nop())
	sweeper := wager.NewSweeper(engine, zerolog.Nop())
	orch := session.New(engine, sweeper, fc, fl, recorder, cfg, zerolog.Nop())
	return orch, secrets, cfg
}
