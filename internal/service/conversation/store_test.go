package conversation_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	model "github.com/palona/shopchat/backend/internal/model/conversation"
	"github.com/palona/shopchat/backend/internal/service/conversation"
)

func TestNewStoreSeedsGreeting(t *testing.T) {
	store := conversation.NewStore("w1")
	snap := store.Snapshot()

	require.Equal(t, "w1", snap.WidgetID)
	require.Len(t, snap.Messages, 1)
	require.Equal(t, model.SenderBot, snap.Messages[0].Sender)
	require.Equal(t, model.KindChat, snap.Messages[0].Kind)
	require.Equal(t, model.Greeting, snap.Messages[0].Text)
	require.False(t, snap.IsAwaitingResponse)
	require.Empty(t, snap.PendingInput)
}

func TestAppendPreservesOrder(t *testing.T) {
	store := conversation.NewStore("w1")

	require.NoError(t, store.Append(model.BotChat("one"), model.BotChat("two")))
	require.NoError(t, store.Append(model.UserText("three")))

	snap := store.Snapshot()
	require.Len(t, snap.Messages, 4)
	require.Equal(t, "one", snap.Messages[1].Text)
	require.Equal(t, "two", snap.Messages[2].Text)
	require.Equal(t, "three", snap.Messages[3].Text)
	require.False(t, snap.Messages[3].CreatedAt.IsZero())
}

func TestAppendRejectsMalformedEntriesAtomically(t *testing.T) {
	store := conversation.NewStore("w1")

	err := store.Append(model.BotChat("ok"), model.Message{Sender: model.SenderBot, Kind: "video"})
	require.ErrorIs(t, err, model.ErrInvalidMessage)
	require.Len(t, store.Snapshot().Messages, 1)

	err = store.Append(model.Message{Sender: model.SenderUser, Kind: model.KindImage})
	require.ErrorIs(t, err, model.ErrInvalidMessage)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	store := conversation.NewStore("w1")
	require.NoError(t, store.Append(model.BotProducts("intro", model.Product{Title: "Shoe"})))

	before := store.Snapshot()
	before.Messages[1].Products[0].Title = "mutated"
	before.Messages[0].Text = "mutated"

	after := store.Snapshot()
	require.Equal(t, "Shoe", after.Messages[1].Products[0].Title)
	require.Equal(t, model.Greeting, after.Messages[0].Text)

	require.NoError(t, store.Append(model.BotChat("later")))
	require.Len(t, after.Messages, 2)
}

func TestBeginRejectsOverlappingDispatch(t *testing.T) {
	store := conversation.NewStore("w1")
	store.SetDraft("shoes")

	require.NoError(t, store.Begin(model.UserText("shoes"), true))
	snap := store.Snapshot()
	require.True(t, snap.IsAwaitingResponse)
	require.Empty(t, snap.PendingInput)

	err := store.Begin(model.UserText("again"), true)
	require.ErrorIs(t, err, conversation.ErrBusy)
	require.Len(t, store.Snapshot().Messages, 2)

	require.NoError(t, store.Finish(model.BotChat("done")))
	snap = store.Snapshot()
	require.False(t, snap.IsAwaitingResponse)
	require.Len(t, snap.Messages, 3)
}

func TestFinishClearsAwaitingOnInvalidEntry(t *testing.T) {
	store := conversation.NewStore("w1")
	require.NoError(t, store.Begin(model.UserText("x"), false))

	err := store.Finish(model.Message{})
	require.Error(t, err)
	require.False(t, store.Snapshot().IsAwaitingResponse)
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	store := conversation.NewStore("w1")
	updates, cancel := store.Subscribe()
	defer cancel()

	first := <-updates
	require.Len(t, first.Messages, 1)

	store.SetAwaiting(true)
	store.SetAwaiting(false)

	latest := <-updates
	require.False(t, latest.IsAwaitingResponse)
	require.Equal(t, first.Version+2, latest.Version)
}

func TestCloseEndsSubscriptions(t *testing.T) {
	store := conversation.NewStore("w1")
	updates, cancel := store.Subscribe()
	<-updates

	store.Close()
	_, ok := <-updates
	require.False(t, ok)
	cancel()
}
