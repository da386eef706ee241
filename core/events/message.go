package events

const (
	// KindMessageFinal identifies an authoritative finalized message.
	KindMessageFinal Kind = "message.final"
)

// MessageSource identifies who a finalized message came from.
type MessageSource string

const (
	MessageSourceUser  MessageSource = "user"
	MessageSourceAgent MessageSource = "agent"
)

// MessageFinal carries an authoritative, immutable message. For the agent
// source it closes the currently open streaming message, overwriting any
// accumulated delta text. For the user source it is the echoed transcript
// or text submission.
type MessageFinal struct {
	Base
	Source MessageSource
	Text   string
}

// NewMessageFinal creates a finalized message event.
func NewMessageFinal(source MessageSource, text string) MessageFinal {
	return MessageFinal{Base: NewBase(KindMessageFinal), Source: source, Text: text}
}
