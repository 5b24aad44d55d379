// Package transcript holds the per-conversation message log shared by the
// visitor and operator roles. A transcript is append-only: messages land in
// arrival order and are never reordered, merged, or evicted.
package transcript

// message author labels used when no display name is known
const (
	SenderSystem   = "system"
	SenderVisitor  = "visitor"
	SenderOperator = "operator"
)

// one chat line; immutable after append
type Message struct {
	Sender string
	Body   string
	System bool
}

// an ordered, append-only conversation log
type Transcript struct {
	messages []Message
}

func New() *Transcript {
	return &Transcript{messages: make([]Message, 0, 16)}
}

// appends a user-authored message, preserving arrival order
func (t *Transcript) Append(sender, body string) {
	t.messages = append(t.messages, Message{Sender: sender, Body: body})
}

// appends a system notice (connection status, chat ended, errors)
func (t *Transcript) AppendSystem(body string) {
	t.messages = append(t.messages, Message{Sender: SenderSystem, Body: body, System: true})
}

// returns a copy of the messages in arrival order
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// returns the most recent message, if any
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}

	return t.messages[len(t.messages)-1], true
}
