package conversation

// Greeting seeds every new transcript.
const Greeting = "Hi! My name is Palona, your friendly AI e-commerce chatbot. Search for a product in the text box or upload an image, " +
	"and I will help you find the best products. What can I help you find today?"

// Snapshot is an immutable view of one widget's conversation state.
type Snapshot struct {
	WidgetID           string    `json:"widgetId"`
	Messages           []Message `json:"messages"`
	PendingInput       string    `json:"pendingInput"`
	IsAwaitingResponse bool      `json:"isAwaitingResponse"`
	Version            uint64    `json:"version"`
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	for i, msg := range s.Messages {
		msg.Products = append([]Product(nil), msg.Products...)
		out.Messages[i] = msg
	}
	return out
}
