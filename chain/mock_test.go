package chain

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend implements Backend with overridable function fields.
type fakeBackend struct {
	chainIDFn            func(ctx context.Context) (*big.Int, error)
	blockNumberFn        func(ctx context.Context) (uint64, error)
	callContractFn       func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	estimateGasFn        func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	suggestGasPriceFn    func(ctx context.Context) (*big.Int, error)
	pendingNonceAtFn     func(ctx context.Context, account ethcommon.Address) (uint64, error)
	balanceAtFn          func(ctx context.Context, account ethcommon.Address, blockNumber *big.Int) (*big.Int, error)
	sendTransactionFn    func(ctx context.Context, tx *types.Transaction) error
	transactionReceiptFn func(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error)

	callCount map[string]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{callCount: make(map[string]int)}
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	f.callCount["ChainID"]++
	if f.chainIDFn != nil {
		return f.chainIDFn(ctx)
	}
	return big.NewInt(11155111), nil
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	f.callCount["BlockNumber"]++
	if f.blockNumberFn != nil {
		return f.blockNumberFn(ctx)
	}
	return 1000, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.callCount["CallContract"]++
	if f.callContractFn != nil {
		return f.callContractFn(ctx, msg, blockNumber)
	}
	return nil, nil
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.callCount["EstimateGas"]++
	if f.estimateGasFn != nil {
		return f.estimateGasFn(ctx, msg)
	}
	return 100000, nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.callCount["SuggestGasPrice"]++
	if f.suggestGasPriceFn != nil {
		return f.suggestGasPriceFn(ctx)
	}
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error) {
	f.callCount["PendingNonceAt"]++
	if f.pendingNonceAtFn != nil {
		return f.pendingNonceAtFn(ctx, account)
	}
	return 0, nil
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account ethcommon.Address, blockNumber *big.Int) (*big.Int, error) {
	f.callCount["BalanceAt"]++
	if f.balanceAtFn != nil {
		return f.balanceAtFn(ctx, account, blockNumber)
	}
	// Plenty by default
	return new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)), nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.callCount["SendTransaction"]++
	if f.sendTransactionFn != nil {
		return f.sendTransactionFn(ctx, tx)
	}
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	f.callCount["TransactionReceipt"]++
	if f.transactionReceiptFn != nil {
		return f.transactionReceiptFn(ctx, txHash)
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

// packOutputs ABI-encodes the outputs of a view method for fake responses.
func packOutputs(t testingT, method string, values ...interface{}) []byte {
	parsed, err := parseShotGameABI()
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack outputs for %s: %v", method, err)
	}
	return out
}

// testingT is the subset of *testing.T used by test helpers.
type testingT interface {
	Fatalf(format string, args ...interface{})
}
