package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgAt(id string, minute int) Message {
	return Message{
		RemoteMessageID: id,
		Text:            "text " + id,
		CreateTime:      time.Date(2026, 3, 1, 10, minute, 0, 0, time.UTC),
	}
}

func TestAppendMessagesSetDifference(t *testing.T) {
	c := &Conversation{}

	added := c.AppendMessages([]Message{msgAt("m2", 2), msgAt("m1", 1)})
	assert.Equal(t, 2, added)

	added = c.AppendMessages([]Message{msgAt("m1", 1), msgAt("m3", 3), msgAt("m3", 3)})
	assert.Equal(t, 1, added)

	require.Len(t, c.Messages, 3)
	assert.Equal(t, 3, c.MessageCount)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{c.Messages[0].RemoteMessageID, c.Messages[1].RemoteMessageID, c.Messages[2].RemoteMessageID})
	require.NotNil(t, c.LastMessageTime)
	assert.Equal(t, msgAt("m3", 3).CreateTime, *c.LastMessageTime)
	assert.True(t, c.HasMessage("m2"))
	assert.False(t, c.HasMessage("m4"))
}

func TestAppendMessagesNeverOverwrites(t *testing.T) {
	c := &Conversation{}
	c.AppendMessages([]Message{msgAt("m1", 1)})

	edited := msgAt("m1", 1)
	edited.Text = "changed"
	c.AppendMessages([]Message{edited})

	assert.Equal(t, "text m1", c.Messages[0].Text)
}

func TestRecountEmpty(t *testing.T) {
	c := &Conversation{MessageCount: 4}
	c.Recount()
	assert.Equal(t, 0, c.MessageCount)
	assert.Nil(t, c.LastMessageTime)
}

func TestJSONColumns(t *testing.T) {
	list := ParticipantList{{ExternalUserID: "users/1", Email: "a@x.com"}}
	v, err := list.Value()
	require.NoError(t, err)

	var scanned ParticipantList
	require.NoError(t, scanned.Scan([]byte(v.(string))))
	assert.Equal(t, list, scanned)

	empty, err := MessageList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)

	var msgs MessageList
	assert.NoError(t, msgs.Scan(nil))
	assert.Error(t, msgs.Scan(42))
}
