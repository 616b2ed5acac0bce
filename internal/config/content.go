package config

import (
	"fmt"

	"miniquest-server/internal/safety"

	"github.com/ilyakaznacheev/cleanenv"
)

// Fixed narrations and prompts used when no content file overrides them.
const (
	DefaultOpeningNarration = "Your MiniQuest begins in a magical forest. Which path will you take? Left or Right?"

	DefaultSafetyRedirectNarration = "Let's keep our adventure kind and friendly! " +
		"What would you like to do next on your quest?"

	DefaultGenerationFallbackNarration = "The storyteller is resting for a moment. Let's try again soon!"

	DefaultUnsafeOutputFallbackNarration = "Oh! The story took a funny turn. " +
		"Let's get back to our magical forest adventure!"

	DefaultSystemPrompt = "You are a friendly storyteller for kids age 5-9. " +
		"Respond in one or two short, positive, and age-appropriate sentences. " +
		"Do NOT include any personal information or unsafe content."

	DefaultRecapPrompt = "You are a friendly storyteller for kids age 5-9. " +
		"Retell the child's adventure from the transcript in three short, happy sentences, " +
		"praising the choices they made. Do NOT include any personal information or unsafe content."

	DefaultUserID = "player1"
)

// Content is the story text a deployment may customize without rebuilding.
type Content struct {
	OpeningNarration              string   `yaml:"opening_narration" env:"CONTENT_OPENING_NARRATION"`
	SafetyRedirectNarration       string   `yaml:"safety_redirect_narration"`
	GenerationFallbackNarration   string   `yaml:"generation_fallback_narration"`
	UnsafeOutputFallbackNarration string   `yaml:"unsafe_output_fallback_narration"`
	SystemPrompt                  string   `yaml:"system_prompt"`
	RecapPrompt                   string   `yaml:"recap_prompt"`
	DefaultUserID                 string   `yaml:"default_user_id" env:"CONTENT_DEFAULT_USER_ID"`
	BlockList                     []string `yaml:"block_list"`
}

// DefaultContent returns the built-in content.
func DefaultContent() Content {
	blockList := make([]string, len(safety.DefaultBlockList))
	copy(blockList, safety.DefaultBlockList)
	return Content{
		OpeningNarration:              DefaultOpeningNarration,
		SafetyRedirectNarration:       DefaultSafetyRedirectNarration,
		GenerationFallbackNarration:   DefaultGenerationFallbackNarration,
		UnsafeOutputFallbackNarration: DefaultUnsafeOutputFallbackNarration,
		SystemPrompt:                  DefaultSystemPrompt,
		RecapPrompt:                   DefaultRecapPrompt,
		DefaultUserID:                 DefaultUserID,
		BlockList:                     blockList,
	}
}

// LoadContent reads a YAML content file. An empty path yields the defaults; fields
// missing from the file keep their default value.
func LoadContent(path string) (Content, error) {
	if path == "" {
		return DefaultContent(), nil
	}
	var loaded Content
	if err := cleanenv.ReadConfig(path, &loaded); err != nil {
		return Content{}, fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	return loaded.withDefaults(), nil
}

func (c Content) withDefaults() Content {
	d := DefaultContent()
	if c.OpeningNarration == "" {
		c.OpeningNarration = d.OpeningNarration
	}
	if c.SafetyRedirectNarration == "" {
		c.SafetyRedirectNarration = d.SafetyRedirectNarration
	}
	if c.GenerationFallbackNarration == "" {
		c.GenerationFallbackNarration = d.GenerationFallbackNarration
	}
	if c.UnsafeOutputFallbackNarration == "" {
		c.UnsafeOutputFallbackNarration = d.UnsafeOutputFallbackNarration
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	if c.RecapPrompt == "" {
		c.RecapPrompt = d.RecapPrompt
	}
	if c.DefaultUserID == "" {
		c.DefaultUserID = d.DefaultUserID
	}
	if len(c.BlockList) == 0 {
		c.BlockList = d.BlockList
	}
	return c
}
