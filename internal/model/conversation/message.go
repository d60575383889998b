package conversation

import (
	"errors"
	"fmt"
	"time"
)

// Sender identifies who produced a transcript entry.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Kind decides how a transcript entry is rendered.
type Kind string

const (
	KindChat    Kind = "chat"
	KindProduct Kind = "product"
	KindImage   Kind = "image"
)

// ErrInvalidMessage is returned when an entry does not have a valid shape.
var ErrInvalidMessage = errors.New("invalid message")

// Product is a single search result as returned by the product backend.
type Product struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Link   string `json:"link"`
	Source string `json:"source,omitempty"`
}

// Message is one transcript entry.
type Message struct {
	Sender    Sender    `json:"sender"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text,omitempty"`
	ImageRef  string    `json:"imageRef,omitempty"`
	Products  []Product `json:"products,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the structural shape only; content is never inspected.
func (m Message) Validate() error {
	switch m.Sender {
	case SenderUser, SenderBot:
	default:
		return fmt.Errorf("%w: unknown sender %q", ErrInvalidMessage, m.Sender)
	}

	switch m.Kind {
	case KindChat, KindProduct:
		if m.ImageRef != "" {
			return fmt.Errorf("%w: imageRef only allowed on image entries", ErrInvalidMessage)
		}
	case KindImage:
		if m.ImageRef == "" {
			return fmt.Errorf("%w: image entry requires imageRef", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, m.Kind)
	}
	return nil
}

// UserText builds the entry appended when the user sends text.
func UserText(text string) Message {
	return Message{Sender: SenderUser, Kind: KindChat, Text: text}
}

// UserImage builds the entry appended when the user uploads an image.
func UserImage(ref string) Message {
	return Message{Sender: SenderUser, Kind: KindImage, ImageRef: ref}
}

// BotChat builds a conversational bot reply.
func BotChat(text string) Message {
	return Message{Sender: SenderBot, Kind: KindChat, Text: text}
}

// BotProducts builds a product entry. intro may be empty.
func BotProducts(intro string, products ...Product) Message {
	return Message{
		Sender:   SenderBot,
		Kind:     KindProduct,
		Text:     intro,
		Products: append([]Product(nil), products...),
	}
}
