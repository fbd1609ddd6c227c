package repository

import (
	"testing"
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&chatdomain.Account{}, &chatdomain.Conversation{}))
	return db
}

func TestAccountLifecycle(t *testing.T) {
	repo := NewAccountRepository(newTestDB(t))

	account := &chatdomain.Account{Email: " A@X.com ", AccessToken: "tok"}
	require.NoError(t, repo.Create(account))
	assert.NotEmpty(t, account.ID)

	byEmail, err := repo.FindByEmail("a@x.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, account.ID, byEmail.ID)
	assert.Nil(t, byEmail.LastSyncTime)

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkSynced(account.ID, at))
	byID, err := repo.FindByID(account.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.LastSyncTime)
	assert.True(t, at.Equal(*byID.LastSyncTime))

	missing, err := repo.FindByID("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	byIDs, err := repo.FindByIDs([]string{account.ID, "nope"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)
}

func TestConversationRoundTripAndSpaceLookup(t *testing.T) {
	repo := NewConversationRepository(newTestDB(t))

	c := &chatdomain.Conversation{
		AccountID:     "acc-a",
		RemoteSpaceID: "spaces/S1",
		Kind:          chatdomain.KindDirect,
		Participants:  chatdomain.ParticipantList{{ExternalUserID: "users/2", Email: "b@x.com"}},
	}
	c.AppendMessages([]chatdomain.Message{{RemoteMessageID: "m1", Text: "hi", CreateTime: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}})
	require.NoError(t, repo.Create(c))

	other := &chatdomain.Conversation{AccountID: "acc-b", RemoteSpaceID: "spaces/S1", Kind: chatdomain.KindDirect}
	require.NoError(t, repo.Create(other))

	loaded, err := repo.FindByAccountAndSpace("acc-a", "spaces/S1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "hi", loaded.Messages[0].Text)
	assert.Equal(t, "b@x.com", loaded.Participants[0].Email)
	assert.Equal(t, 1, loaded.MessageCount)

	loaded.AppendMessages([]chatdomain.Message{{RemoteMessageID: "m2", CreateTime: time.Date(2026, 5, 1, 9, 5, 0, 0, time.UTC)}})
	require.NoError(t, repo.Update(loaded))

	bySpace, err := repo.ListBySpace("spaces/S1")
	require.NoError(t, err)
	assert.Len(t, bySpace, 2)

	byAccount, err := repo.ListByAccount("acc-a")
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	assert.Equal(t, 2, byAccount[0].MessageCount)

	none, err := repo.FindByAccountAndSpace("acc-a", "spaces/missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestConversationUniquePerAccountSpace(t *testing.T) {
	repo := NewConversationRepository(newTestDB(t))

	require.NoError(t, repo.Create(&chatdomain.Conversation{AccountID: "acc-a", RemoteSpaceID: "spaces/S1", Kind: chatdomain.KindGroup}))
	err := repo.Create(&chatdomain.Conversation{AccountID: "acc-a", RemoteSpaceID: "spaces/S1", Kind: chatdomain.KindGroup})
	assert.Error(t, err)
}
