package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskboard/taskboard/database"
	"github.com/taskboard/taskboard/database/model"
	"github.com/taskboard/taskboard/util/common"
	"github.com/taskboard/taskboard/util/crypto"
	"github.com/taskboard/taskboard/web/entity"
)

func TestCreateAdminReturnsUsableTempPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	admin, temp, err := f.users.CreateAdmin(ctx, "Root", "root@x.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
	assert.Len(t, temp, tempPasswordLength)
	assert.True(t, crypto.Verify(temp, admin.PasswordSalt, admin.PasswordHash))

	var queued int64
	require.NoError(t, database.GetDB().Model(&model.OutboundEmail{}).Count(&queued).Error)
	assert.Equal(t, int64(0), queued)
}

func TestInviteQueuesMail(t *testing.T) {
	f := setup(t)
	user, err := f.users.Invite(context.Background(), "Inv", "inv@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotEmpty(t, queuedTempPassword(t, "inv@x.com"))
}

func TestUserAdminGuards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin, _, err := f.users.CreateAdmin(ctx, "Root", "root@x.com")
	require.NoError(t, err)

	_, err = f.users.UpdateRole(ctx, admin.Id, admin.Id, model.RoleUser)
	assert.ErrorIs(t, err, common.ErrBadRequest)
	_, err = f.users.SetActive(ctx, admin.Id, admin.Id, false)
	assert.ErrorIs(t, err, common.ErrBadRequest)
	assert.ErrorIs(t, f.users.DeleteUser(ctx, admin.Id, admin.Id), common.ErrBadRequest)

	_, err = f.users.UpdateRole(ctx, admin.Id, 404, model.RoleUser)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.users.UpdateRole(ctx, admin.Id, 404, model.Role("owner"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRoleAndActiveChanges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin, _, err := f.users.CreateAdmin(ctx, "Root", "root@x.com")
	require.NoError(t, err)
	user := f.activeUser(t, "u@x.com", "password-1")
	_, err = f.auth.Login(ctx, "u@x.com", "password-1")
	require.NoError(t, err)

	updated, err := f.users.UpdateRole(ctx, admin.Id, user.Id, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, updated.Role)

	updated, err = f.users.SetActive(ctx, admin.Id, user.Id, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, int64(0), countTokens(t, user.Id))

	updated, err = f.users.SetActive(ctx, admin.Id, user.Id, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)

	list, err := f.users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestDeleteUserCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin, _, err := f.users.CreateAdmin(ctx, "Root", "root@x.com")
	require.NoError(t, err)
	user := f.activeUser(t, "del@x.com", "password-1")
	_, err = f.auth.Login(ctx, "del@x.com", "password-1")
	require.NoError(t, err)

	title := "doomed"
	statusID := uint(1)
	_, err = f.tasks.CreateTask(ctx, user.Id, &entity.TaskForm{Title: &title, StatusId: &statusID})
	require.NoError(t, err)

	require.NoError(t, f.users.DeleteUser(ctx, admin.Id, user.Id))

	var tasks, users int64
	require.NoError(t, database.GetDB().Model(&model.Task{}).Where("user_id = ?", user.Id).Count(&tasks).Error)
	require.NoError(t, database.GetDB().Model(&model.User{}).Where("id = ?", user.Id).Count(&users).Error)
	assert.Equal(t, int64(0), tasks)
	assert.Equal(t, int64(0), users)
	assert.Equal(t, int64(0), countTokens(t, user.Id))
}
