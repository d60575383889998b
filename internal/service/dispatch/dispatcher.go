package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/palona/shopchat/backend/internal/metrics"
	model "github.com/palona/shopchat/backend/internal/model/conversation"
	"github.com/palona/shopchat/backend/internal/service/backend"
	"github.com/palona/shopchat/backend/internal/service/conversation"
)

// Fixed replies.
const (
	GreetingReply   = "Hi there! I'm Palona, your personal shopping assistant. What can I help you find today?"
	WellBeingReply  = "I'm great, thank you! How can I help you shop today?"
	ProductIntro    = "Here are the products I recommend: "
	NoProductsReply = "Sorry, I couldn't find anything relevant."
	ChatFallback    = "Sorry, I had trouble processing that."
	FailureReply    = "Something went wrong."
	ImageFailure    = "Sorry, I couldn't analyze the image."
)

const (
	captionPrefix    = "🧠 I see: \""
	captionSuffix    = "\". Here's what I found."
	kindText         = "text"
	kindImage        = "image"
	outcomeFailed    = "failed"
	outcomeShortcut  = "short_circuit"
	outcomeProducts  = "products"
	outcomeNoResults = "no_products"
	outcomeChat      = "chat"
	outcomeCaptioned = "captioned"
)

// CaptionReply is the bot entry announcing what the image shows.
func CaptionReply(caption string) string {
	return captionPrefix + caption + captionSuffix
}

// Dispatcher turns one user action into backend calls and transcript entries.
type Dispatcher struct {
	backend backend.Backend
	logger  zerolog.Logger
}

// New creates a dispatcher bound to a backend.
func New(b backend.Backend, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		backend: b,
		logger:  logger.With().Str("component", "dispatch").Logger(),
	}
}

// DispatchText handles a text send. Blank input is ignored. It returns
// conversation.ErrBusy, without changing the transcript, while another
// dispatch on the widget is awaiting a response. Backend failures never
// surface as errors; they become a fallback reply.
func (d *Dispatcher) DispatchText(ctx context.Context, w *conversation.Widget, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	if err := w.Store.Begin(model.UserText(input), true); err != nil {
		return err
	}

	start := time.Now()
	outcome := outcomeFailed
	finished := false
	defer func() {
		if !finished {
			w.Store.SetAwaiting(false)
		}
		d.record(w.ID, kindText, outcome, start)
	}()

	var replies []model.Message
	replies, outcome = d.answerText(ctx, input)
	err := w.Store.Finish(replies...)
	finished = true
	return err
}

func (d *Dispatcher) answerText(ctx context.Context, input string) ([]model.Message, string) {
	if rule, reply, ok := ShortCircuit(input); ok {
		metrics.ShortCircuitTotal.WithLabelValues(string(rule)).Inc()
		return []model.Message{model.BotChat(reply)}, outcomeShortcut
	}

	isProduct, err := d.backend.ClassifyIntent(ctx, input)
	if err != nil {
		d.logger.Warn().Err(err).Msg("intent classification failed")
		return []model.Message{model.BotChat(FailureReply)}, outcomeFailed
	}

	if isProduct {
		products, err := d.backend.SearchProducts(ctx, input)
		if err != nil {
			d.logger.Warn().Err(err).Msg("product search failed")
			return []model.Message{model.BotChat(FailureReply)}, outcomeFailed
		}
		if len(products) == 0 {
			return []model.Message{model.BotProducts(NoProductsReply)}, outcomeNoResults
		}
		return []model.Message{model.BotProducts(ProductIntro, products...)}, outcomeProducts
	}

	reply, err := d.backend.Chat(ctx, input)
	if err != nil {
		d.logger.Warn().Err(err).Msg("chat failed")
		return []model.Message{model.BotChat(FailureReply)}, outcomeFailed
	}
	if reply == "" {
		reply = ChatFallback
	}
	return []model.Message{model.BotChat(reply)}, outcomeChat
}

// DispatchImage handles an image upload. A nil file is ignored. The image is
// kept on the widget so the transcript can show it.
func (d *Dispatcher) DispatchImage(ctx context.Context, w *conversation.Widget, file *backend.File) error {
	if file == nil {
		return nil
	}

	ref := w.PutImage(file.Name, file.ContentType, file.Data)
	if err := w.Store.Begin(model.UserImage(ref), false); err != nil {
		w.DiscardImage(ref)
		return err
	}

	start := time.Now()
	outcome := outcomeFailed
	finished := false
	defer func() {
		if !finished {
			w.Store.SetAwaiting(false)
		}
		d.record(w.ID, kindImage, outcome, start)
	}()

	var replies []model.Message
	result, err := d.backend.SearchImage(ctx, *file)
	if err != nil {
		d.logger.Warn().Err(err).Msg("image search failed")
		replies = []model.Message{model.BotChat(ImageFailure)}
	} else {
		outcome = outcomeCaptioned
		replies = make([]model.Message, 0, len(result.Results)+1)
		replies = append(replies, model.BotChat(CaptionReply(result.Caption)))
		for _, product := range result.Results {
			replies = append(replies, model.BotProducts("", product))
		}
	}

	err = w.Store.Finish(replies...)
	finished = true
	return err
}

func (d *Dispatcher) record(widgetID, kind, outcome string, start time.Time) {
	metrics.DispatchTotal.WithLabelValues(kind, outcome).Inc()
	d.logger.Info().
		Str("widget_id", widgetID).
		Str("kind", kind).
		Str("outcome", outcome).
		Dur("latency", time.Since(start)).
		Msg("dispatch completed")
}
