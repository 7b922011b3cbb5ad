package refund_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/model"
	"github.com/noah-isme/backend-kasir/internal/refund"
)

func TestWorkflowHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf := refund.NewWorkflow(f.svc)
	require.Equal(t, refund.StateIdle, wf.State())

	results, err := wf.Search(ctx, "KOPI")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, refund.StateListing, wf.State())

	_, err = wf.SelectTransaction(ctx, f.tx.ID)
	require.NoError(t, err)
	require.Equal(t, refund.StateItemSelection, wf.State())

	_, err = wf.Confirm()
	require.ErrorIs(t, err, model.ErrValidation)
	require.Equal(t, refund.StateItemSelection, wf.State())

	snap, err := wf.SelectItem(refund.Selection{ProductID: 100, Quantity: 2, Reason: model.ReasonDamaged})
	require.NoError(t, err)
	require.Equal(t, int64(50000), snap.Total)
	snap, err = wf.SelectItem(refund.Selection{ProductID: 6})
	require.NoError(t, err)
	require.Equal(t, int64(70000), snap.Total)
	snap, err = wf.DeselectItem(6)
	require.NoError(t, err)
	require.Equal(t, int64(50000), snap.Total)

	_, err = wf.Confirm()
	require.NoError(t, err)
	require.Equal(t, refund.StateConfirming, wf.State())

	_, err = wf.Back()
	require.NoError(t, err)
	require.Equal(t, refund.StateItemSelection, wf.State())
	_, err = wf.Confirm()
	require.NoError(t, err)

	rf, err := wf.Process(ctx, "Siti")
	require.NoError(t, err)
	require.Equal(t, int64(50000), rf.Total)
	require.Equal(t, refund.StateIdle, wf.State())
	require.Equal(t, 9, stockOf(t, f.mem, 100))
}

func TestWorkflowAlreadyRefundedStaysListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Commit(ctx, refund.CommitRequest{TransactionID: f.tx.ID, Items: []refund.Selection{{ProductID: 6}}})
	require.NoError(t, err)

	wf := refund.NewWorkflow(f.svc)
	_, err = wf.Search(ctx, f.tx.ID)
	require.NoError(t, err)
	_, err = wf.SelectTransaction(ctx, f.tx.ID)
	require.ErrorIs(t, err, model.ErrAlreadyRefunded)
	require.Equal(t, refund.StateListing, wf.State())
}

func TestWorkflowNotFoundStaysIdle(t *testing.T) {
	f := newFixture(t)
	wf := refund.NewWorkflow(f.svc)
	_, err := wf.Search(context.Background(), "tidak ada")
	require.ErrorIs(t, err, model.ErrNotFound)
	require.Equal(t, refund.StateIdle, wf.State())
}

func TestWorkflowRejectsOutOfOrderSteps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf := refund.NewWorkflow(f.svc)

	_, err := wf.SelectTransaction(ctx, f.tx.ID)
	require.ErrorIs(t, err, model.ErrInvalidState)
	_, err = wf.SelectItem(refund.Selection{ProductID: 100})
	require.ErrorIs(t, err, model.ErrInvalidState)
	_, err = wf.Process(ctx, "Siti")
	require.ErrorIs(t, err, model.ErrInvalidState)
	_, err = wf.Back()
	require.ErrorIs(t, err, model.ErrInvalidState)
	require.NoError(t, wf.Cancel())
}

func TestWorkflowCancelDiscardsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf := refund.NewWorkflow(f.svc)
	_, err := wf.Search(ctx, "kopi")
	require.NoError(t, err)
	_, err = wf.SelectTransaction(ctx, f.tx.ID)
	require.NoError(t, err)
	_, err = wf.SelectItem(refund.Selection{ProductID: 100})
	require.NoError(t, err)

	require.NoError(t, wf.Cancel())
	snap := wf.Snapshot()
	require.Equal(t, refund.StateIdle, snap.State)
	require.Nil(t, snap.Transaction)
	require.Zero(t, snap.Total)
	require.Equal(t, 7, stockOf(t, f.mem, 100))
}

func TestWorkflowProcessFailureReturnsToConfirming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wf := refund.NewWorkflow(f.svc)
	_, err := wf.Search(ctx, "kopi")
	require.NoError(t, err)
	_, err = wf.SelectTransaction(ctx, f.tx.ID)
	require.NoError(t, err)
	_, err = wf.SelectItem(refund.Selection{ProductID: 100, Quantity: 1})
	require.NoError(t, err)
	_, err = wf.Confirm()
	require.NoError(t, err)

	// another terminal refunds the sale first
	_, err = f.svc.Commit(ctx, refund.CommitRequest{TransactionID: f.tx.ID, Items: []refund.Selection{{ProductID: 6}}})
	require.NoError(t, err)

	_, err = wf.Process(ctx, "Siti")
	require.ErrorIs(t, err, model.ErrAlreadyRefunded)
	require.Equal(t, refund.StateConfirming, wf.State())
	require.Equal(t, 7, stockOf(t, f.mem, 100))
}
