package domain

import "fmt"

// ReplyMode selects how replies are generated for a page.
type ReplyMode string

const (
	// ModeDirect sends the user message through a single-turn chat
	// completion, steered by the profile's free-form instructions.
	ModeDirect ReplyMode = "direct"

	// ModeAssistant runs the message through a pre-registered assistant
	// as an asynchronous thread/run job that must be polled to completion.
	ModeAssistant ReplyMode = "assistant"
)

// PageProfile is the per-page configuration: the delivery credential and
// the behavior used to generate replies. Immutable for the lifetime of a
// request; owned by the profile store.
type PageProfile struct {
	PageID       string    `json:"page_id" yaml:"pageId"`
	AccessToken  string    `json:"access_token" yaml:"accessToken"`
	Mode         ReplyMode `json:"mode" yaml:"mode"`
	Instructions string    `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	AssistantID  string    `json:"assistant_id,omitempty" yaml:"assistantId,omitempty"`
	Enabled      bool      `json:"enabled" yaml:"enabled"`
}

// Validate checks that the profile's mode and behavior fields are coherent:
// direct mode carries instructions and no assistant ID, assistant mode the
// reverse. A profile failing this is treated the same as a missing one.
func (p *PageProfile) Validate() error {
	if p.PageID == "" {
		return fmt.Errorf("profile has no page ID")
	}
	if p.AccessToken == "" {
		return fmt.Errorf("profile %s has no access token", p.PageID)
	}
	switch p.Mode {
	case ModeDirect:
		if p.Instructions == "" {
			return fmt.Errorf("profile %s: direct mode requires instructions", p.PageID)
		}
		if p.AssistantID != "" {
			return fmt.Errorf("profile %s: direct mode must not set an assistant ID", p.PageID)
		}
	case ModeAssistant:
		if p.AssistantID == "" {
			return fmt.Errorf("profile %s: assistant mode requires an assistant ID", p.PageID)
		}
		if p.Instructions != "" {
			return fmt.Errorf("profile %s: assistant mode must not set instructions", p.PageID)
		}
	default:
		return fmt.Errorf("profile %s: unknown mode %q", p.PageID, p.Mode)
	}
	return nil
}
