package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
)

type saveContent struct {
	Content string `json:"content"`
	Speaker string `json:"speaker"`
}

type saveConversationRequest struct {
	MemberNum int64         `json:"memberNum"`
	Contents  []saveContent `json:"contents"`
}

type bookmarkRequest struct {
	Bookmark int `json:"bookmark"`
}

// FetchConversations lists the member's saved conversations. The backend
// keeps only the joined content of each one, so every conversation comes
// back as a single self message.
func (c *Client) FetchConversations(ctx context.Context, memberNum int64) ([]domain.Conversation, error) {
	path := "/api/conversation?memberNum=" + url.QueryEscape(strconv.FormatInt(memberNum, 10))
	body, err := c.get(ctx, "fetch conversations", path)
	if err != nil {
		return nil, err
	}

	items, err := list(body)
	if err != nil {
		return nil, fmt.Errorf("fetch conversations: %w", err)
	}

	convs := make([]domain.Conversation, 0, len(items))
	for i, raw := range items {
		obj, ok := object(raw)
		if !ok {
			return nil, fmt.Errorf("fetch conversations: %w: item %d is not an object", ErrMalformedResponse, i)
		}
		id, ok := identifier(obj["conversationNum"])
		if !ok {
			return nil, fmt.Errorf("fetch conversations: %w: item %d has no conversationNum", ErrMalformedResponse, i)
		}
		content := text(obj["content"])
		created, _ := timestamp(obj["createdAt"])

		convs = append(convs, domain.Conversation{
			ID:        id,
			Title:     domain.TitleFor(content),
			Timestamp: created,
			Messages: []domain.Message{{
				ID:        id + "-0",
				Role:      domain.RoleSelf,
				Text:      content,
				Timestamp: created,
			}},
		})
	}
	return convs, nil
}

func (c *Client) SaveConversation(ctx context.Context, memberNum int64, messages []domain.Message) error {
	req := saveConversationRequest{
		MemberNum: memberNum,
		Contents:  make([]saveContent, 0, len(messages)),
	}
	for _, m := range messages {
		req.Contents = append(req.Contents, saveContent{Content: m.Text, Speaker: m.Role.SpeakerCode()})
	}

	_, err := c.send(ctx, "save conversation", http.MethodPost, "/api/conversation/save", req)
	return err
}

func (c *Client) FetchBookmarks(ctx context.Context, memberNum int64) ([]application.Bookmark, error) {
	path := fmt.Sprintf("/api/statements/%d/bookmark", memberNum)
	body, err := c.get(ctx, "fetch bookmarks", path)
	if err != nil {
		return nil, err
	}

	items, err := list(body)
	if err != nil {
		return nil, fmt.Errorf("fetch bookmarks: %w", err)
	}

	out := make([]application.Bookmark, 0, len(items))
	for i, raw := range items {
		obj, ok := object(raw)
		if !ok {
			return nil, fmt.Errorf("fetch bookmarks: %w: item %d is not an object", ErrMalformedResponse, i)
		}
		id, ok := identifier(obj["statementNum"])
		if !ok {
			return nil, fmt.Errorf("fetch bookmarks: %w: item %d has no statementNum", ErrMalformedResponse, i)
		}
		created, _ := timestamp(obj["createdAt"])
		out = append(out, application.Bookmark{
			ID:         id,
			Content:    text(obj["content"]),
			Bookmarked: flag(obj["bookmark"]),
			CreatedAt:  created,
		})
	}
	return out, nil
}

func (c *Client) SetBookmark(ctx context.Context, statementID string, bookmarked bool) error {
	value := 0
	if bookmarked {
		value = 1
	}
	path := "/api/statements/" + url.PathEscape(statementID) + "/bookmark"
	_, err := c.send(ctx, "set bookmark", http.MethodPatch, path, bookmarkRequest{Bookmark: value})
	return err
}
