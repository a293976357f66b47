// Package model defines the invoke contract between the retry engine and an
// inference backend.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags a content block.
type BlockType string

const (
	BlockText     BlockType = "text"
	BlockImage    BlockType = "image"
	BlockDocument BlockType = "document"
	BlockVideo    BlockType = "video"
)

// ContentBlock is one piece of message content.
type ContentBlock struct {
	Type   BlockType `json:"type"`
	Text   string    `json:"text,omitempty"`
	Format string    `json:"format,omitempty"` // e.g. png, pdf, mp4
	Name   string    `json:"name,omitempty"`   // Documents only
	Bytes  []byte    `json:"bytes,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserText returns a user message holding a single text block.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{{Type: BlockText, Text: text}}}
}

// InferenceConfig holds the standard sampling settings. Nil fields are
// left to the backend default.
type InferenceConfig struct {
	MaxTokens     *int32   `json:"max_tokens,omitempty"`
	Temperature   *float32 `json:"temperature,omitempty"`
	TopP          *float32 `json:"top_p,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty"`
}

// Request is one invocation of one identifier in one region.
type Request struct {
	Region      string          `json:"region"`
	Identifier  string          `json:"identifier"` // Model id or inference profile id/ARN
	Messages    []Message       `json:"messages"`
	System      []string        `json:"system,omitempty"`
	Inference   InferenceConfig `json:"inference_config"`
	ExtraFields map[string]any  `json:"extra_fields,omitempty"`
}

// Validate checks the fields every backend needs.
func (r *Request) Validate() error {
	if r.Region == "" {
		return fmt.Errorf("request has no region")
	}
	if r.Identifier == "" {
		return fmt.Errorf("request has no model identifier")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("request has no messages")
	}
	return nil
}

// Modalities returns the non-text block types used in the request.
func (r *Request) Modalities() []BlockType {
	seen := make(map[BlockType]bool)
	var out []BlockType
	for _, m := range r.Messages {
		for _, b := range m.Content {
			if b.Type != BlockText && !seen[b.Type] {
				seen[b.Type] = true
				out = append(out, b.Type)
			}
		}
	}
	return out
}

// Usage is the token accounting of one response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is a successful invocation result.
type Response struct {
	Content    []ContentBlock `json:"content"`
	Usage      Usage          `json:"usage"`
	StopReason string         `json:"stop_reason"`
	Latency    time.Duration  `json:"latency"`
}

// Text concatenates the text blocks of the response.
func (r *Response) Text() string {
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
