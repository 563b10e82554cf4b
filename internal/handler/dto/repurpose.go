package dto

import (
	"github.com/recast/recast/internal/generation"
	"github.com/recast/recast/internal/prompt"
	"github.com/recast/recast/internal/service"
)

// RepurposeRequest accepts both request shapes:
// {text|url, inputType} and {content, platforms}.
type RepurposeRequest struct {
	Text      string   `json:"text,omitempty"`
	URL       string   `json:"url,omitempty"`
	InputType string   `json:"inputType,omitempty"`
	Content   string   `json:"content,omitempty"`
	Platforms []string `json:"platforms,omitempty"`
}

// ToInput converts the body to a service input.
func (r RepurposeRequest) ToInput() service.RepurposeInput {
	return service.RepurposeInput{
		Text:      r.Text,
		URL:       r.URL,
		InputType: r.InputType,
		Content:   r.Content,
		Platforms: r.Platforms,
	}
}

// InputTypeResponse answers the {text|url, inputType} shape.
type InputTypeResponse struct {
	InputType        string            `json:"inputType"`
	TargetPlatforms  []string          `json:"targetPlatforms"`
	TwitterPosts     []string          `json:"twitterPosts,omitempty"`
	LinkedInPost     string            `json:"linkedinPost,omitempty"`
	InstagramCaption string            `json:"instagramCaption,omitempty"`
	Errors           map[string]string `json:"errors,omitempty"`
	Degraded         []string          `json:"degraded,omitempty"`
}

// PlatformsResponse answers the {content, platforms} shape.
type PlatformsResponse struct {
	Results  map[string]string `json:"results"`
	Errors   map[string]string `json:"errors,omitempty"`
	Degraded []string          `json:"degraded,omitempty"`
}

// ToRepurposeResponse renders a result in the shape the request used.
func ToRepurposeResponse(result *service.RepurposeResult) any {
	degraded := platformNames(result.Degraded)

	if result.Shape == service.ShapePlatforms {
		results := make(map[string]string, len(result.Outputs))
		for platform, out := range result.Outputs {
			results[string(platform)] = out.Text
		}
		return PlatformsResponse{
			Results:  results,
			Errors:   nonEmpty(result.Errors),
			Degraded: degraded,
		}
	}

	resp := InputTypeResponse{
		InputType:       result.InputType,
		TargetPlatforms: platformNames(result.TargetPlatforms),
		Errors:          nonEmpty(result.Errors),
		Degraded:        degraded,
	}
	if resp.TargetPlatforms == nil {
		resp.TargetPlatforms = []string{}
	}
	if out, ok := result.Outputs[prompt.Twitter]; ok {
		resp.TwitterPosts = twitterPosts(out)
	}
	if out, ok := result.Outputs[prompt.LinkedIn]; ok {
		resp.LinkedInPost = out.Text
	}
	if out, ok := result.Outputs[prompt.Instagram]; ok {
		resp.InstagramCaption = out.Text
	}
	return resp
}

func twitterPosts(out generation.Output) []string {
	if len(out.Posts) > 0 {
		return out.Posts
	}
	if out.Text == "" {
		return nil
	}
	return []string{out.Text}
}

func platformNames(platforms []prompt.Platform) []string {
	if len(platforms) == 0 {
		return nil
	}
	names := make([]string, len(platforms))
	for i, p := range platforms {
		names[i] = string(p)
	}
	return names
}

func nonEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
