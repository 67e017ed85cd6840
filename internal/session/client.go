package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	keyLoggedIn  = "loggedIn"
	keyUsername  = "username"
	keyActiveTab = "activeTab"
	draftPrefix  = "draft:"
)

// Client is the single access point to one session's persisted state.
type Client struct {
	store Store
	sid   string
}

func NewClient(store Store, sid string) *Client {
	return &Client{store: store, sid: sid}
}

func (c *Client) ID() string {
	return c.sid
}

// State is the boot time view of a session.
type State struct {
	LoggedIn  bool     `json:"loggedIn"`
	Username  string   `json:"username,omitempty"`
	ActiveTab string   `json:"activeTab,omitempty"`
	Drafts    []string `json:"drafts"`
}

func (c *Client) Init(ctx context.Context) (State, error) {
	values, err := c.store.Load(ctx, c.sid)
	if err != nil {
		return State{}, err
	}
	st := State{Drafts: []string{}}
	for k, v := range values {
		switch {
		case k == keyLoggedIn:
			_ = json.Unmarshal(v, &st.LoggedIn)
		case k == keyUsername:
			_ = json.Unmarshal(v, &st.Username)
		case k == keyActiveTab:
			_ = json.Unmarshal(v, &st.ActiveTab)
		case strings.HasPrefix(k, draftPrefix):
			st.Drafts = append(st.Drafts, strings.TrimPrefix(k, draftPrefix))
		}
	}
	return st, nil
}

func (c *Client) Login(ctx context.Context, username string) error {
	if err := c.write(ctx, keyUsername, username); err != nil {
		return err
	}
	return c.write(ctx, keyLoggedIn, true)
}

func (c *Client) LoggedIn(ctx context.Context) (bool, error) {
	var v bool
	_, err := c.read(ctx, keyLoggedIn, &v)
	return v, err
}

func (c *Client) ActiveTab(ctx context.Context) (string, error) {
	var v string
	_, err := c.read(ctx, keyActiveTab, &v)
	return v, err
}

func (c *Client) SetActiveTab(ctx context.Context, tab string) error {
	return c.write(ctx, keyActiveTab, tab)
}

// LoadDraft decodes the cached draft of a work order into v.
func (c *Client) LoadDraft(ctx context.Context, workOrderID string, v interface{}) (bool, error) {
	return c.read(ctx, draftPrefix+workOrderID, v)
}

func (c *Client) SaveDraft(ctx context.Context, workOrderID string, v interface{}) error {
	return c.write(ctx, draftPrefix+workOrderID, v)
}

func (c *Client) DeleteDraft(ctx context.Context, workOrderID string) error {
	return c.store.Delete(ctx, c.sid, draftPrefix+workOrderID)
}

// Clear drops everything, used on logout.
func (c *Client) Clear(ctx context.Context) error {
	return c.store.Clear(ctx, c.sid)
}

func (c *Client) read(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, ok, err := c.store.Get(ctx, c.sid, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode session key %s: %w", key, err)
	}
	return true, nil
}

func (c *Client) write(ctx context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session key %s: %w", key, err)
	}
	return c.store.Set(ctx, c.sid, key, raw)
}
