package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compartilar-backend-go/internal/approval"
	"compartilar-backend-go/internal/models"
)

func (e *testEnv) plan(t *testing.T, owner string, editors, viewers []string) *models.ParentalPlan {
	t.Helper()
	ctx := context.Background()
	c := e.child(t, owner, nil, nil)
	p, err := e.plans.Create(ctx, owner, models.CreatePlanRequest{Title: "Plano 2025", ChildrenIDs: []string{c.ID}})
	require.NoError(t, err)
	if len(editors) > 0 || len(viewers) > 0 {
		p, err = e.plans.UpdateAccess(ctx, owner, p.ID, models.UpdateAccessRequest{AddEditors: editors, AddViewers: viewers})
		require.NoError(t, err)
	}
	return p
}

func TestCreatePlanChecksChildren(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mine := env.child(t, "owner", nil, []string{"viewer"})

	_, err := env.plans.Create(ctx, "viewer", models.CreatePlanRequest{Title: "x", ChildrenIDs: []string{mine.ID}})
	assertKind(t, err, ErrForbidden, "")
	_, err = env.plans.Create(ctx, "owner", models.CreatePlanRequest{Title: "x", ChildrenIDs: []string{"nope"}})
	assertKind(t, err, ErrValidation, "")
	_, err = env.plans.Create(ctx, "owner", models.CreatePlanRequest{Title: "x"})
	assertKind(t, err, ErrValidation, "")

	p, err := env.plans.Create(ctx, "owner", models.CreatePlanRequest{Title: "Plano", ChildrenIDs: []string{mine.ID, mine.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, p.ChildrenIDs)
	assert.Equal(t, "owner", p.OwnerID)
	assert.Equal(t, models.PlanStatusActive, p.Status)

	list, err := env.plans.List(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPlanUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.plan(t, "owner", []string{"editor"}, []string{"viewer"})

	_, err := env.plans.Update(ctx, "viewer", p.ID, models.UpdatePlanRequest{Title: strp("x")})
	assertKind(t, err, ErrForbidden, "")

	p, err = env.plans.Update(ctx, "editor", p.ID, models.UpdatePlanRequest{Status: strp(models.PlanStatusArchived)})
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusArchived, p.Status)

	history, err := env.plans.History(ctx, "viewer", p.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, models.ActionUpdate, history[0].Action)
	assert.Equal(t, map[string]interface{}{"status": models.PlanStatusArchived}, history[0].FieldsAfter)

	assertKind(t, env.plans.Delete(ctx, "editor", p.ID), ErrForbidden, "")
	require.NoError(t, env.plans.Delete(ctx, "owner", p.ID))
	_, err = env.plans.Get(ctx, "owner", p.ID)
	assertKind(t, err, ErrNotFound, "Parental plan not found")
}

func TestFieldApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.plan(t, "owner", []string{"coparent"}, []string{"grandma"})

	f, err := env.plans.ProposeField(ctx, "owner", p.ID, "education", "school",
		models.FieldProposalRequest{Value: strp("Escola Azul"), Comment: "perto de casa"})
	require.NoError(t, err)
	assert.Equal(t, approval.StatusPending, f.Status)
	assert.True(t, f.IsLocked)
	require.Len(t, f.Comments, 1)
	assert.Equal(t, approval.ActionPropose, f.Comments[0].Action)

	// Locked while pending.
	_, err = env.plans.ProposeField(ctx, "coparent", p.ID, "education", "school", models.FieldProposalRequest{Value: strp("Escola Verde")})
	assertKind(t, err, ErrValidation, approval.ErrLocked.Error())

	// Nobody approves their own change, and viewers cannot review.
	_, err = env.plans.ApproveField(ctx, "owner", p.ID, "education", "school", models.FieldReviewRequest{})
	assertKind(t, err, ErrForbidden, approval.ErrSelfReview.Error())
	_, err = env.plans.ApproveField(ctx, "grandma", p.ID, "education", "school", models.FieldReviewRequest{})
	assertKind(t, err, ErrForbidden, "Only editors can change parental plan fields")

	assert.Equal(t, 1, countType(env.notificationsFor(t, "coparent"), models.NotificationFieldProposed))
	assert.Equal(t, 1, countType(env.notificationsFor(t, "grandma"), models.NotificationFieldProposed))

	f, err = env.plans.ApproveField(ctx, "coparent", p.ID, "education", "school", models.FieldReviewRequest{Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, f.Status)
	assert.False(t, f.IsLocked)
	assert.Equal(t, "coparent", f.ApprovedBy)
	assert.Equal(t, "Escola Azul", f.Value)
	assert.Equal(t, 1, countType(env.notificationsFor(t, "owner"), models.NotificationFieldReviewed))

	got, err := env.plans.Get(ctx, "grandma", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Escola Azul", got.Sections["education"]["school"].Value)

	history, err := env.plans.History(ctx, "owner", p.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "field_approve", history[0].Action)
	assert.Equal(t, "field_propose", history[1].Action)
	assert.Equal(t, "pending", history[0].FieldsBefore["status"])
	assert.Equal(t, "approved", history[0].FieldsAfter["status"])
}

func TestFieldRejectAndCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.plan(t, "owner", []string{"coparent"}, nil)

	_, err := env.plans.ProposeField(ctx, "owner", p.ID, "education", "school", models.FieldProposalRequest{Value: strp("A")})
	require.NoError(t, err)
	_, err = env.plans.ApproveField(ctx, "coparent", p.ID, "education", "school", models.FieldReviewRequest{})
	require.NoError(t, err)

	_, err = env.plans.ProposeField(ctx, "coparent", p.ID, "education", "school", models.FieldProposalRequest{Value: strp("B")})
	require.NoError(t, err)
	f, err := env.plans.RejectField(ctx, "owner", p.ID, "education", "school", models.FieldReviewRequest{Comment: "não"})
	require.NoError(t, err)
	assert.Equal(t, approval.StatusDisagreed, f.Status)
	assert.Equal(t, "A", f.Value)

	_, err = env.plans.ProposeField(ctx, "coparent", p.ID, "education", "school", models.FieldProposalRequest{Value: strp("C")})
	require.NoError(t, err)
	_, err = env.plans.CancelField(ctx, "owner", p.ID, "education", "school")
	assertKind(t, err, ErrForbidden, approval.ErrNotProposer.Error())
	f, err = env.plans.CancelField(ctx, "coparent", p.ID, "education", "school")
	require.NoError(t, err)
	assert.Equal(t, "A", f.Value)
	assert.Equal(t, approval.StatusApproved, f.Status)

	_, err = env.plans.CancelField(ctx, "coparent", p.ID, "education", "school")
	assertKind(t, err, ErrValidation, approval.ErrNotPending.Error())
}

func TestFieldTransitionGuards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.plan(t, "owner", nil, nil)
	before, err := env.plans.History(ctx, "owner", p.ID, 0)
	require.NoError(t, err)

	_, err = env.plans.ProposeField(ctx, "owner", p.ID, "finance", "school", models.FieldProposalRequest{Value: strp("x")})
	assertKind(t, err, ErrValidation, "")
	_, err = env.plans.ProposeField(ctx, "owner", p.ID, "education", "1bad", models.FieldProposalRequest{Value: strp("x")})
	assertKind(t, err, ErrValidation, "invalid field name")

	_, err = env.plans.Update(ctx, "owner", p.ID, models.UpdatePlanRequest{Status: strp(models.PlanStatusArchived)})
	require.NoError(t, err)
	_, err = env.plans.ProposeField(ctx, "owner", p.ID, "education", "school", models.FieldProposalRequest{Value: strp("x")})
	assertKind(t, err, ErrValidation, "Archived parental plans cannot be changed")

	after, err := env.plans.History(ctx, "owner", p.ID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
}
