//go:build integration

package team

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/testutil/containers"
)

const teamSchema = `
CREATE TABLE audit_team_members (
	id             UUID PRIMARY KEY,
	audit_id       UUID NOT NULL,
	tenant_id      UUID NOT NULL,
	user_id        UUID NOT NULL,
	role           TEXT NOT NULL,
	status         TEXT NOT NULL,
	decline_reason TEXT NOT NULL DEFAULT '',
	assigned_by    UUID NOT NULL,
	assigned_at    TIMESTAMPTZ NOT NULL,
	responded_at   TIMESTAMPTZ,
	UNIQUE (audit_id, user_id)
);
CREATE UNIQUE INDEX audit_team_members_leader_idx
	ON audit_team_members (audit_id) WHERE role = 'TEAM_LEADER';
`

func newMember(auditID id.AuditID, role Role) *Member {
	return &Member{
		ID:         id.MemberID(uuid.New()),
		AuditID:    auditID,
		TenantID:   id.TenantID(uuid.New()),
		UserID:     id.UserID(uuid.New()),
		Role:       role,
		Status:     StatusPending,
		AssignedBy: id.UserID(uuid.New()),
		AssignedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresStoreIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	_, err := pg.DB.Exec(teamSchema)
	require.NoError(t, err)

	ctx := context.Background()
	store := NewPostgresStore(pg.DB)
	auditID := id.AuditID(uuid.New())

	leader := newMember(auditID, RoleTeamLeader)
	require.NoError(t, store.Upsert(ctx, leader))

	t.Run("single leader per audit", func(t *testing.T) {
		rival := newMember(auditID, RoleTeamLeader)
		err := store.Upsert(ctx, rival)
		assert.ErrorIs(t, err, sentinel.ErrDuplicate)
	})

	t.Run("find leader", func(t *testing.T) {
		got, err := store.FindLeader(ctx, auditID)
		require.NoError(t, err)
		assert.Equal(t, leader.UserID, got.UserID)
	})

	t.Run("bulk insert skips existing rows", func(t *testing.T) {
		fresh := newMember(auditID, RoleTeamMember)
		dup := newMember(auditID, RoleTeamMember)
		dup.UserID = leader.UserID

		inserted, err := store.BulkInsertSkipDuplicates(ctx, []*Member{fresh, dup})
		require.NoError(t, err)
		require.Len(t, inserted, 1)
		assert.Equal(t, fresh.ID, inserted[0].ID)
	})

	t.Run("save records the response", func(t *testing.T) {
		respondedAt := time.Now().UTC().Truncate(time.Microsecond)
		leader.Status = StatusAccepted
		leader.RespondedAt = &respondedAt
		require.NoError(t, store.Save(ctx, leader))

		got, err := store.FindByAuditAndUser(ctx, auditID, leader.UserID)
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, got.Status)
		require.NotNil(t, got.RespondedAt)
		assert.True(t, got.RespondedAt.Equal(respondedAt))
	})

	t.Run("list orders by assignment time", func(t *testing.T) {
		members, err := store.ListByAudit(ctx, auditID)
		require.NoError(t, err)
		require.Len(t, members, 2)
		assert.Equal(t, leader.UserID, members[0].UserID)
	})

	t.Run("delete frees the slot", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, auditID, leader.UserID))
		_, err := store.FindLeader(ctx, auditID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		err = store.Delete(ctx, auditID, leader.UserID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
