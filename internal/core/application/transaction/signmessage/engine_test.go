package signmessage_test

import (
	"context"
	"encoding/hex"
	"fmt"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/veridian-wallet/walletcore/internal/core/application/transaction"
	"github.com/veridian-wallet/walletcore/internal/core/application/transaction/signmessage"
	"github.com/veridian-wallet/walletcore/internal/core/domain"
)

const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aae" +
	"d6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2" +
	"d2ce9e38e4"

type fakeSignatureTarget struct {
	message    []byte
	rejections int
}

func (f *fakeSignatureTarget) Message() []byte { return f.message }

func (f *fakeSignatureTarget) NotifyRejection(_ context.Context) error {
	f.rejections++
	return nil
}

func newTestFlow(
	t *testing.T, message []byte,
) (*signmessage.Engine, *fakeSignatureTarget, *domain.PendingTransaction) {
	t.Helper()

	wallet, err := domain.NewHDWallet(testSeedHex, "", "Main")
	require.NoError(t, err)

	target := &fakeSignatureTarget{message: message}
	engine := signmessage.NewEngine()
	err = engine.Start(signmessage.Source{Wallet: wallet}, target, nil)
	require.NoError(t, err)
	engine.AssertInputsValid()

	ptx, err := engine.InitializeTransaction(context.Background())
	require.NoError(t, err)
	ptx, err = engine.DoBuildConfirmations(context.Background(), ptx)
	require.NoError(t, err)
	return engine, target, ptx
}

func TestEngineSignsMessage(t *testing.T) {
	t.Parallel()

	message := []byte("hello from the wallet")
	engine, _, ptx := newTestFlow(t, message)
	ctx := context.Background()

	require.Zero(t, ptx.Amount.Sign())
	require.Zero(t, ptx.FeeAmount.Sign())
	messageLine := ptx.ConfirmationFor(domain.ConfirmationMessage)
	require.NotNil(t, messageLine)
	require.Equal(t, string(message), messageLine.Value)

	ptx, err := engine.DoValidateAll(ctx, ptx)
	require.NoError(t, err)
	require.True(t, ptx.CanExecute())

	res, err := engine.Execute(ctx, ptx)
	require.NoError(t, err)
	require.True(t, res.IsSigned())
	require.Empty(t, res.TxHash)

	// the signature must recover to the wallet's EVM key
	signature, err := hex.DecodeString(res.RawTx)
	require.NoError(t, err)
	require.Len(t, signature, 65)

	prefixed := fmt.Sprintf(
		"\x19Ethereum Signed Message:\n%d%s", len(message), message,
	)
	digest := ethcrypto.Keccak256([]byte(prefixed))
	recovered, err := ethcrypto.SigToPub(digest, signature)
	require.NoError(t, err)
	require.NotNil(t, recovered)
}

func TestEngineRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	engine, _, ptx := newTestFlow(t, nil)

	ptx, err := engine.DoValidateAll(context.Background(), ptx)
	require.NoError(t, err)
	require.Equal(t, domain.ValidationInvalidMessage, ptx.ValidationState)
}

func TestEngineStopNotifiesRejectionOnce(t *testing.T) {
	t.Parallel()

	engine, target, ptx := newTestFlow(t, []byte("please sign"))
	ctx := context.Background()

	require.NoError(t, engine.Stop(ctx, ptx))
	require.Equal(t, 1, target.rejections)

	require.NoError(t, engine.Stop(ctx, ptx))
	require.Equal(t, 1, target.rejections)
}

func TestEngineStopAfterExecuteDoesNotNotify(t *testing.T) {
	t.Parallel()

	engine, target, ptx := newTestFlow(t, []byte("please sign"))
	ctx := context.Background()

	ptx, err := engine.DoValidateAll(ctx, ptx)
	require.NoError(t, err)
	_, err = engine.Execute(ctx, ptx)
	require.NoError(t, err)

	require.NoError(t, engine.Stop(ctx, ptx))
	require.Zero(t, target.rejections)
}

func TestFailingEngineStart(t *testing.T) {
	t.Parallel()

	wallet, err := domain.NewHDWallet(testSeedHex, "", "Main")
	require.NoError(t, err)
	engine := signmessage.NewEngine()

	err = engine.Start("wrong", &fakeSignatureTarget{}, nil)
	require.ErrorIs(t, err, transaction.ErrInvalidSourceType)

	err = engine.Start(signmessage.Source{Wallet: wallet}, "wrong", nil)
	require.ErrorIs(t, err, transaction.ErrInvalidTargetType)
}
