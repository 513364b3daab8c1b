package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"voice-companion/internal/application"
	"voice-companion/internal/domain"
)

type signUpRequest struct {
	MemberID      string `json:"memberId"`
	Password      string `json:"password"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	Gender        int    `json:"gender"`
	PreferSubject string `json:"preferSubject"`
}

type signInRequest struct {
	MemberID string `json:"memberId"`
	Password string `json:"password"`
}

type preferencesRequest struct {
	PreferSubject string `json:"preferSubject"`
}

func (c *Client) SignUp(ctx context.Context, req application.SignUpRequest) (*domain.User, error) {
	body, err := c.send(ctx, "sign up", http.MethodPost, "/api/member/sign-up", signUpRequest{
		MemberID:      req.MemberID,
		Password:      req.Password,
		Name:          req.Name,
		Age:           req.Age,
		Gender:        int(req.Gender),
		PreferSubject: req.PreferSubject,
	})
	if err != nil {
		return nil, err
	}

	user, err := parseUser(body)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if user.Name == "" {
		user.Name = req.Name
	}
	return user, nil
}

func (c *Client) SignIn(ctx context.Context, memberID, password string) (*domain.User, error) {
	body, err := c.send(ctx, "sign in", http.MethodPost, "/api/member/sign-in", signInRequest{
		MemberID: memberID,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	user, err := parseUser(body)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return user, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, memberNum int64, preferSubject string) error {
	path := fmt.Sprintf("/api/member/%d/preferences", memberNum)
	_, err := c.send(ctx, "update preferences", http.MethodPatch, path, preferencesRequest{PreferSubject: preferSubject})
	return err
}

// parseUser finds the user object in an auth response. The backend has
// answered with {"user": ...}, {"data": {"user": ...}}, {"data": ...} and a
// bare user object; they are tried in that order.
func parseUser(body []byte) (*domain.User, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	candidates := make([]map[string]json.RawMessage, 0, 4)
	if obj, ok := object(root["user"]); ok {
		candidates = append(candidates, obj)
	}
	if data, ok := object(root["data"]); ok {
		if obj, ok := object(data["user"]); ok {
			candidates = append(candidates, obj)
		}
		candidates = append(candidates, data)
	}
	candidates = append(candidates, root)

	for _, obj := range candidates {
		if user, ok := userFrom(obj); ok {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: no user object", ErrMalformedResponse)
}

func userFrom(obj map[string]json.RawMessage) (*domain.User, bool) {
	id, ok := identifier(obj["id"])
	if !ok {
		id, ok = identifier(obj["memberId"])
	}
	if !ok {
		return nil, false
	}

	user := &domain.User{ID: id}
	if n, ok := number(obj["memberNum"]); ok {
		user.MemberNum = n
	}
	user.Name = text(obj["name"])
	user.Characteristics = text(obj["characteristics"])
	user.PreferSubject = text(obj["preferSubject"])
	if user.Characteristics == "" {
		user.Characteristics = user.PreferSubject
	}
	if ts, ok := timestamp(obj["createdAt"]); ok {
		user.CreatedAt = ts
	}
	return user, true
}
