package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/profile"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/infrastructure/provider"
)

// Chat generation parameters.
const (
	ChatContextSize   = 10
	ChatTemperature   = 0.7
	ChatMaxTokens     = 800
	chatFallbackReply = "Sorry, I could not generate a response."
)

const chatSystemPrompt = `You are an expert movie recommendation assistant with deep knowledge of cinema.
Your role is to help users discover movies they'll love based on their preferences and mood.

Guidelines:
1. Be conversational, friendly, and enthusiastic about movies
2. Explain WHY you're recommending each movie (themes, style, similar elements)
3. Reference specific details from the movie data provided (director, cast, ratings)
4. If the user mentions a mood or feeling, tailor recommendations accordingly
5. Keep responses concise but informative (2-4 sentences per recommendation)
6. Recommend 3-5 movies unless the user asks for a different number
7. Only recommend movies from the provided context

Format movie titles in **bold**.`

// ChatRequest is one conversational turn.
type ChatRequest struct {
	UserID  string
	Message string
	History []provider.Message
}

// ChatResponse is the generated reply and the items it was grounded on.
type ChatResponse struct {
	reply      string
	candidates []search.Candidate
	mood       string
}

// Reply returns the generated text.
func (r ChatResponse) Reply() string { return r.reply }

// Candidates returns the retrieved items given to the generator.
func (r ChatResponse) Candidates() []search.Candidate { return r.candidates }

// Mood returns the detected mood, empty when none.
func (r ChatResponse) Mood() string { return r.mood }

// Chat answers free-form requests with retrieved catalog context.
type Chat struct {
	search    *Search
	profiles  *Profiles
	generator provider.TextGenerator
	closed    *atomic.Bool
	logger    *slog.Logger
}

// NewChat creates a new Chat service. profiles may be nil.
func NewChat(searchService *Search, profiles *Profiles, generator provider.TextGenerator, closed *atomic.Bool, logger *slog.Logger) *Chat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chat{
		search:    searchService,
		profiles:  profiles,
		generator: generator,
		closed:    closed,
		logger:    logger,
	}
}

// Ask retrieves items relevant to the message, re-ranks them by any
// detected mood and asks the generator for a reply grounded on them.
func (c *Chat) Ask(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if c.closed != nil && c.closed.Load() {
		return ChatResponse{}, ErrClientClosed
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return ChatResponse{}, search.ErrEmptyInput
	}

	found, err := c.search.ByMood(ctx, message, "", ChatContextSize)
	if err != nil {
		return ChatResponse{}, err
	}

	var summary profile.Summary
	hasSummary := false
	if c.profiles != nil && req.UserID != "" {
		summary, hasSummary, err = c.profiles.Preferences(ctx, req.UserID)
		if err != nil {
			c.logger.WarnContext(ctx, "preferences unavailable", slog.String("user_id", req.UserID), slog.String("error", err.Error()))
			hasSummary = false
		}
	}

	messages := make([]provider.Message, 0, len(req.History)+2)
	messages = append(messages, provider.SystemMessage(systemPrompt(summary, hasSummary, found.Mood())))
	messages = append(messages, req.History...)
	messages = append(messages, provider.UserMessage(
		fmt.Sprintf("Based on these movies:\n\n%s\n\nUser question: %s", FormatContext(found.Candidates()), message),
	))

	resp, err := c.generator.ChatCompletion(ctx, provider.NewChatCompletionRequest(messages).
		WithTemperature(ChatTemperature).
		WithMaxTokens(ChatMaxTokens))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat completion: %w", err)
	}

	reply := strings.TrimSpace(resp.Content())
	if reply == "" {
		reply = chatFallbackReply
	}
	return ChatResponse{reply: reply, candidates: found.Candidates(), mood: found.Mood()}, nil
}

func systemPrompt(summary profile.Summary, hasSummary bool, moodName string) string {
	var b strings.Builder
	b.WriteString(chatSystemPrompt)

	if hasSummary && len(summary.Favourites) > 0 {
		b.WriteString("\n\nThe user's favourite movies:\n")
		for _, f := range summary.Favourites {
			fmt.Fprintf(&b, "- %s (%d/10)", f.Title, f.Rating)
			if len(f.Genres) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(f.Genres, ", "))
			}
			b.WriteString("\n")
		}
	}
	if moodName != "" {
		fmt.Fprintf(&b, "\n\nThe user seems to be in the mood for: %s", moodName)
	}
	return b.String()
}

// FormatContext renders candidates as the numbered movie list given to the generator.
func FormatContext(candidates []search.Candidate) string {
	blocks := make([]string, len(candidates))
	for i, c := range candidates {
		blocks[i] = formatItem(i+1, c.Item())
	}
	return strings.Join(blocks, "\n\n")
}

func formatItem(n int, it catalog.Item) string {
	year := "N/A"
	if !it.ReleaseDate().IsZero() {
		year = strconv.Itoa(it.ReleaseDate().Year())
	}
	rating := "N/A"
	if it.VoteCount() > 0 || it.VoteAverage() > 0 {
		rating = strconv.FormatFloat(it.VoteAverage(), 'f', 1, 64) + "/10"
	}

	lines := []string{
		fmt.Sprintf("Movie %d: %s (%s)", n, it.Title(), year),
		"Tagline: " + orNA(it.Tagline()),
		"Genres: " + orNA(strings.Join(it.Genres(), ", ")),
		"Description: " + orNA(it.Description()),
		"Keywords: " + orNA(strings.Join(firstN(it.Keywords(), 5), ", ")),
		"Director: " + orNA(it.Director()),
		"Cast: " + orNA(strings.Join(firstN(it.Cast(), 3), ", ")),
		"Rating: " + rating,
	}
	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
