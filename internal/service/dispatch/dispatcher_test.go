package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	model "github.com/palona/shopchat/backend/internal/model/conversation"
	"github.com/palona/shopchat/backend/internal/service/backend"
	"github.com/palona/shopchat/backend/internal/service/conversation"
)

type fakeBackend struct {
	mu sync.Mutex

	isProduct   bool
	classifyErr error
	products    []backend.Product
	searchErr   error
	reply       string
	chatErr     error
	image       backend.ImageResult
	imageErr    error

	calls    []string
	uploaded *backend.File
	// block, when set, is waited on before the classify call returns.
	block chan struct{}
}

func (f *fakeBackend) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeBackend) ClassifyIntent(ctx context.Context, message string) (bool, error) {
	f.called("classify")
	if f.block != nil {
		<-f.block
	}
	return f.isProduct, f.classifyErr
}

func (f *fakeBackend) SearchProducts(ctx context.Context, message string) ([]backend.Product, error) {
	f.called("search")
	return f.products, f.searchErr
}

func (f *fakeBackend) Chat(ctx context.Context, message string) (string, error) {
	f.called("chat")
	return f.reply, f.chatErr
}

func (f *fakeBackend) SearchImage(ctx context.Context, file backend.File) (backend.ImageResult, error) {
	f.called("image")
	f.uploaded = &file
	return f.image, f.imageErr
}

func newFixture(fb *fakeBackend) (*Dispatcher, *conversation.Widget) {
	return New(fb, zerolog.Nop()), conversation.NewWidget()
}

func lastMessage(w *conversation.Widget) model.Message {
	msgs := w.Store.Snapshot().Messages
	return msgs[len(msgs)-1]
}

func TestGreetingsNeverCallTheBackend(t *testing.T) {
	for _, input := range []string{"hi", "Hello", "  HEY  ", "hEy\n"} {
		fb := &fakeBackend{}
		d, w := newFixture(fb)

		require.NoError(t, d.DispatchText(context.Background(), w, input))

		snap := w.Store.Snapshot()
		require.Empty(t, fb.calls, input)
		require.Len(t, snap.Messages, 3)
		require.Equal(t, model.UserText(input).Text, snap.Messages[1].Text)
		require.Equal(t, model.BotChat(GreetingReply).Text, snap.Messages[2].Text)
		require.Equal(t, model.KindChat, snap.Messages[2].Kind)
		require.False(t, snap.IsAwaitingResponse)
	}
}

func TestGreetingMustMatchExactly(t *testing.T) {
	_, _, ok := ShortCircuit("hi there")
	require.False(t, ok)
	_, _, ok = ShortCircuit("hello!")
	require.False(t, ok)
	_, _, ok = ShortCircuit("shine")
	require.False(t, ok)
}

func TestHowAreYouNeverCallsTheBackend(t *testing.T) {
	fb := &fakeBackend{}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchText(context.Background(), w, "Hey, HOW ARE YOU doing?"))

	require.Empty(t, fb.calls)
	msg := lastMessage(w)
	require.Equal(t, model.SenderBot, msg.Sender)
	require.Equal(t, WellBeingReply, msg.Text)
	require.False(t, w.Store.Snapshot().IsAwaitingResponse)
}

func TestBlankInputIsNoOp(t *testing.T) {
	for _, input := range []string{"", "   ", "\t\n"} {
		fb := &fakeBackend{}
		d, w := newFixture(fb)
		w.Store.SetDraft(input)
		before := w.Store.Snapshot()

		require.NoError(t, d.DispatchText(context.Background(), w, input))

		after := w.Store.Snapshot()
		require.Equal(t, before.Version, after.Version)
		require.Len(t, after.Messages, 1)
		require.False(t, after.IsAwaitingResponse)
		require.Empty(t, fb.calls)
	}
}

func TestProductIntentFormatsOneProductMessage(t *testing.T) {
	fb := &fakeBackend{
		isProduct: true,
		products:  []backend.Product{{Title: "Shoe", Price: "$10", Link: "http://x"}},
	}
	d, w := newFixture(fb)
	w.Store.SetDraft("running shoes")

	require.NoError(t, d.DispatchText(context.Background(), w, "running shoes"))

	snap := w.Store.Snapshot()
	require.Equal(t, []string{"classify", "search"}, fb.calls)
	require.Len(t, snap.Messages, 3)
	require.Empty(t, snap.PendingInput)
	require.False(t, snap.IsAwaitingResponse)

	msg := snap.Messages[2]
	require.Equal(t, model.SenderBot, msg.Sender)
	require.Equal(t, model.KindProduct, msg.Kind)
	require.Equal(t, ProductIntro, msg.Text)
	require.Equal(t, fb.products, msg.Products)
}

func TestProductIntentWithoutResults(t *testing.T) {
	fb := &fakeBackend{isProduct: true}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchText(context.Background(), w, "unobtainium"))

	msg := lastMessage(w)
	require.Equal(t, model.KindProduct, msg.Kind)
	require.Equal(t, NoProductsReply, msg.Text)
	require.Empty(t, msg.Products)
}

func TestChatIntentAppendsReply(t *testing.T) {
	fb := &fakeBackend{reply: "Hello!"}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchText(context.Background(), w, "what do you sell"))

	require.Equal(t, []string{"classify", "chat"}, fb.calls)
	msg := lastMessage(w)
	require.Equal(t, model.SenderBot, msg.Sender)
	require.Equal(t, model.KindChat, msg.Kind)
	require.Equal(t, "Hello!", msg.Text)
}

func TestChatIntentMissingReplyUsesFallback(t *testing.T) {
	fb := &fakeBackend{}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchText(context.Background(), w, "what do you sell"))
	require.Equal(t, ChatFallback, lastMessage(w).Text)
}

func TestBackendFailuresAppendExactlyOneFallback(t *testing.T) {
	cases := map[string]*fakeBackend{
		"classify": {classifyErr: errors.New("connection refused")},
		"search":   {isProduct: true, searchErr: errors.New("bad json")},
		"chat":     {chatErr: &backend.StatusError{Endpoint: backend.EndpointChat, Code: 500}},
	}

	for name, fb := range cases {
		d, w := newFixture(fb)

		require.NoError(t, d.DispatchText(context.Background(), w, "red sneakers"), name)

		snap := w.Store.Snapshot()
		require.Len(t, snap.Messages, 3, name)
		require.Equal(t, model.UserText("red sneakers").Text, snap.Messages[1].Text, name)
		require.Equal(t, FailureReply, snap.Messages[2].Text, name)
		require.Equal(t, model.KindChat, snap.Messages[2].Kind, name)
		require.False(t, snap.IsAwaitingResponse, name)
	}
}

func TestOverlappingDispatchIsRejected(t *testing.T) {
	fb := &fakeBackend{block: make(chan struct{}), reply: "ok"}
	d, w := newFixture(fb)

	updates, cancel := w.Store.Subscribe()
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.DispatchText(context.Background(), w, "first question") }()

	for snap := range updates {
		if snap.IsAwaitingResponse {
			break
		}
	}

	err := d.DispatchText(context.Background(), w, "second question")
	require.ErrorIs(t, err, conversation.ErrBusy)

	err = d.DispatchImage(context.Background(), w, &backend.File{Name: "a.png", Data: []byte("x")})
	require.ErrorIs(t, err, conversation.ErrBusy)

	close(fb.block)
	require.NoError(t, <-done)

	snap := w.Store.Snapshot()
	require.Len(t, snap.Messages, 3)
	require.Equal(t, "first question", snap.Messages[1].Text)
	require.False(t, snap.IsAwaitingResponse)
}

type panickingBackend struct{ fakeBackend }

func (p *panickingBackend) ClassifyIntent(context.Context, string) (bool, error) {
	panic("backend exploded")
}

func TestAwaitingClearedWhenSequencePanics(t *testing.T) {
	d := New(&panickingBackend{}, zerolog.Nop())
	w := conversation.NewWidget()

	require.Panics(t, func() {
		_ = d.DispatchText(context.Background(), w, "shoes")
	})
	require.False(t, w.Store.Snapshot().IsAwaitingResponse)
}

func TestImageWithoutResultsAppendsCaptionOnly(t *testing.T) {
	fb := &fakeBackend{image: backend.ImageResult{Caption: "a shoe"}}
	d, w := newFixture(fb)

	file := &backend.File{Name: "shoe.jpg", ContentType: "image/jpeg", Data: []byte("jpeg")}
	require.NoError(t, d.DispatchImage(context.Background(), w, file))

	snap := w.Store.Snapshot()
	require.Len(t, snap.Messages, 3)

	user := snap.Messages[1]
	require.Equal(t, model.SenderUser, user.Sender)
	require.Equal(t, model.KindImage, user.Kind)
	img, err := w.Image(user.ImageRef)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg"), img.Data)

	bot := snap.Messages[2]
	require.Equal(t, model.KindChat, bot.Kind)
	require.Equal(t, `🧠 I see: "a shoe". Here's what I found.`, bot.Text)
	require.False(t, snap.IsAwaitingResponse)
	require.Equal(t, "shoe.jpg", fb.uploaded.Name)
}

func TestImageResultsBecomeOneMessageEach(t *testing.T) {
	fb := &fakeBackend{image: backend.ImageResult{
		Caption: "a shoe",
		Results: []backend.Product{
			{Title: "Shoe A", Price: "$10", Link: "http://a"},
			{Title: "Shoe B", Price: "$20", Link: "http://b"},
		},
	}}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchImage(context.Background(), w, &backend.File{Data: []byte("x")}))

	msgs := w.Store.Snapshot().Messages
	require.Len(t, msgs, 5)
	for i, want := range fb.image.Results {
		msg := msgs[3+i]
		require.Equal(t, model.KindProduct, msg.Kind)
		require.Empty(t, msg.Text)
		require.Equal(t, []backend.Product{want}, msg.Products)
	}
}

func TestImageFailureAppendsFallback(t *testing.T) {
	fb := &fakeBackend{imageErr: errors.New("timeout")}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchImage(context.Background(), w, &backend.File{Data: []byte("x")}))

	snap := w.Store.Snapshot()
	require.Len(t, snap.Messages, 3)
	require.Equal(t, ImageFailure, snap.Messages[2].Text)
	require.False(t, snap.IsAwaitingResponse)
}

func TestNilImageIsNoOp(t *testing.T) {
	fb := &fakeBackend{}
	d, w := newFixture(fb)

	require.NoError(t, d.DispatchImage(context.Background(), w, nil))
	require.Len(t, w.Store.Snapshot().Messages, 1)
	require.Empty(t, fb.calls)
}
