// Package prompt holds the static platform prompt table and the
// input-type to target-platform conversion table.
package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Platform identifies a social posting target.
type Platform string

// Supported platforms.
const (
	Twitter   Platform = "twitter"
	LinkedIn  Platform = "linkedin"
	Instagram Platform = "instagram"
)

// AllPlatforms is the default target set, in response order.
var AllPlatforms = []Platform{Twitter, LinkedIn, Instagram}

// Input types describing where the source content came from.
const (
	InputYouTubeTranscript = "youtube-transcript"
	InputLinkedInPost      = "linkedin-post"
	InputTwitterPost       = "twitter-post"
	InputInstagramPost     = "instagram-post"
	InputBlogArticle       = "blog-article"
	InputGeneralContent    = "general-content"
)

// PostSeparator splits multi-variant output into individual posts.
const PostSeparator = "---"

// ErrUnsupportedPlatform is matched by every *UnsupportedPlatformError.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// UnsupportedPlatformError reports a platform missing from the table.
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %s", e.Platform)
}

// Is lets errors.Is match ErrUnsupportedPlatform.
func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}

// Config is the immutable prompt configuration for one platform.
type Config struct {
	Platform Platform
	// Instruction is the system prompt. %s is replaced by the readable input type.
	Instruction string
	// Brief is the one-line instruction used by completion-style providers.
	Brief string
	// MaxLength is the maximum length, in characters, of a single post.
	MaxLength int
	// MaxTokens bounds the provider's output.
	MaxTokens int
	// Variants is the number of posts requested; >1 means output is split on PostSeparator.
	Variants int
	// Hashtags are appended by the template strategy.
	Hashtags []string
}

var conversions = map[string][]Platform{
	InputYouTubeTranscript: {Twitter, LinkedIn, Instagram},
	InputLinkedInPost:      {Twitter, Instagram},
	InputTwitterPost:       {LinkedIn, Instagram},
	InputInstagramPost:     {LinkedIn, Twitter},
	InputBlogArticle:       {Twitter, LinkedIn, Instagram},
	InputGeneralContent:    {Twitter, LinkedIn, Instagram},
}

var platforms = map[Platform]Config{
	Twitter: {
		Platform: Twitter,
		Instruction: `You are a social media expert specializing in X (Twitter) content. Transform the given %s into 3 engaging Twitter posts. Each post should:
- Be under 280 characters
- Include relevant hashtags (2-3 max)
- Be engaging and conversational
- Extract key insights or quotes from the original content
- Use emojis sparingly but effectively
- Maintain the core message while adapting to Twitter's format
Return only the posts, separated by "---"`,
		Brief:     "Convert this content into an engaging Twitter/X post. Keep it concise, use relevant hashtags, and make it shareable. Maximum 280 characters:",
		MaxLength: 280,
		MaxTokens: 1000,
		Variants:  3,
		Hashtags:  []string{"#content", "#socialmedia"},
	},
	LinkedIn: {
		Platform: LinkedIn,
		Instruction: `You are a LinkedIn content specialist. Transform the given %s into a professional LinkedIn post that:
- Is 1300-3000 characters long
- Uses a professional but engaging tone
- Includes 3-5 relevant hashtags at the end
- Has a clear hook in the first line
- Provides value and professional insights
- Encourages engagement with a thoughtful question or call-to-action
- Uses line breaks for readability
- Adapts the original content for a professional audience`,
		Brief:     "Transform this content into a professional LinkedIn post. Use a professional tone, include insights, and encourage engagement. Make it informative and business-focused:",
		MaxLength: 3000,
		MaxTokens: 1500,
		Variants:  1,
		Hashtags:  []string{"#professional", "#insights", "#growth"},
	},
	Instagram: {
		Platform: Instagram,
		Instruction: `You are an Instagram content creator. Transform the given %s into an engaging Instagram caption that:
- Is visually appealing with line breaks and spacing
- Uses emojis throughout to break up text and add visual interest
- Includes 5-10 relevant hashtags at the end
- Has a conversational, authentic tone
- Tells a story or shares insights in an engaging way
- Encourages engagement with questions
- Is around 300-1000 characters
- Adapts the content for Instagram's visual and community-focused platform`,
		Brief:     "Create an Instagram caption from this content. Make it engaging, use emojis appropriately, include relevant hashtags, and encourage interaction:",
		MaxLength: 2200,
		MaxTokens: 1200,
		Variants:  1,
		Hashtags:  []string{"#instagood", "#content", "#inspiration", "#share"},
	},
}

// TargetsFor resolves the target platforms for an input type.
// Unknown or empty input types yield all platforms.
func TargetsFor(inputType string) []Platform {
	if targets, ok := conversions[inputType]; ok {
		return slices.Clone(targets)
	}
	return slices.Clone(AllPlatforms)
}

// KnownInputType reports whether inputType has an explicit mapping.
func KnownInputType(inputType string) bool {
	_, ok := conversions[inputType]
	return ok
}

// Lookup returns the prompt configuration for a platform.
func Lookup(platform Platform) (Config, error) {
	cfg, ok := platforms[platform]
	if !ok {
		return Config{}, &UnsupportedPlatformError{Platform: string(platform)}
	}
	return cfg, nil
}

// ParsePlatforms normalizes a caller-supplied platform list: values are
// trimmed and lowercased, blanks and duplicates dropped, order preserved.
// Unsupported names are kept so they can be reported per platform.
func ParsePlatforms(names []string) []Platform {
	out := make([]Platform, 0, len(names))
	for _, name := range names {
		p := Platform(strings.ToLower(strings.TrimSpace(name)))
		if p == "" || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ReadableInputType turns "blog-article" into "blog article".
// An empty input type reads as "content".
func ReadableInputType(inputType string) string {
	if inputType == "" {
		return "content"
	}
	return strings.ReplaceAll(inputType, "-", " ")
}

// SystemPrompt renders the chat system instruction for an input type.
func (c Config) SystemPrompt(inputType string) string {
	return fmt.Sprintf(c.Instruction, ReadableInputType(inputType))
}

// Prompt markers used by completion-style prompts.
const (
	OriginalMarker   = "Original content:"
	RepurposedMarker = "Repurposed content:"
)

// CompletionPrompt renders a single-string prompt for text-generation models.
func (c Config) CompletionPrompt(content string) string {
	return c.Brief + "\n\n" + OriginalMarker + "\n" + content + "\n\n" + RepurposedMarker
}
