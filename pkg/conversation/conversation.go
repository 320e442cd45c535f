// Package conversation holds the message list collected from the user.
package conversation

import (
	"strings"
	"time"

	"github.com/schardosin/bpmnbot/pkg/prompts"
	"google.golang.org/genai"
)

// Role identifies the author of a message. Values match the role names the
// Cohere chat API expects in chat_history.
type Role string

const (
	RoleUser    Role = "USER"
	RoleChatbot Role = "CHATBOT"
)

// Message is a single entry of the conversation.
type Message struct {
	Role   Role      `json:"role"`
	Text   string    `json:"message"`
	Source string    `json:"source,omitempty"` // set for imported documents
	Time   time.Time `json:"time"`
}

// Conversation is an ordered list of messages.
type Conversation struct {
	Language string    `json:"language"`
	Messages []Message `json:"messages"`
}

// New returns a conversation seeded with the greeting messages. keyword is
// the termination keyword the greeting tells the user to type; empty means
// the default.
func New(lang, keyword string) *Conversation {
	c := &Conversation{Language: lang}
	for _, line := range prompts.For(lang).Greetings(keyword) {
		c.Append(RoleChatbot, line)
	}
	return c
}

// Append adds a message and returns it.
func (c *Conversation) Append(role Role, text string) Message {
	msg := Message{Role: role, Text: text, Time: time.Now().UTC()}
	c.Messages = append(c.Messages, msg)
	return msg
}

// AppendDocument records imported text as a user contribution so it takes
// part in the generation context.
func (c *Conversation) AppendDocument(source, text string) Message {
	msg := Message{Role: RoleUser, Text: text, Source: source, Time: time.Now().UTC()}
	c.Messages = append(c.Messages, msg)
	return msg
}

// IsTermination reports whether input is the keyword that ends the
// description phase.
func IsTermination(input, keyword string) bool {
	return strings.ToLower(strings.TrimSpace(input)) == strings.ToLower(strings.TrimSpace(keyword))
}

// UserContext joins every user message with a newline, in order.
func (c *Conversation) UserContext() string {
	var parts []string
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			parts = append(parts, m.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// UserMessageCount returns how many messages the user has contributed.
func (c *Conversation) UserMessageCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Last returns the most recent message, if any.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ToContents converts the conversation to LLM history.
func (c *Conversation) ToContents() []*genai.Content {
	contents := make([]*genai.Content, 0, len(c.Messages))
	for _, m := range c.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleChatbot {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}

// Clone returns a deep copy.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{Language: c.Language}
	out.Messages = append([]Message(nil), c.Messages...)
	return out
}
