package googlechat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"
	identitydomain "chatsync-backend/internal/identity/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/chat/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const maxPageSize = 1000

// Service opens Google Chat + Admin Directory clients for accounts
type Service struct {
	clientID     string
	clientSecret string
	limiter      *Limiter
	pageSize     int64
	extraOptions []option.ClientOption
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback chatdomain.TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[GoogleChat] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// NewService creates the provider. extraOptions are appended to every client
// (tests use them to point the clients at a local endpoint).
func NewService(clientID, clientSecret string, limiter *Limiter, pageSize int64, extraOptions ...option.ClientOption) *Service {
	if limiter == nil {
		limiter = NewLimiter(5, 0, 30*time.Second)
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = 100
	}
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		limiter:      limiter,
		pageSize:     pageSize,
		extraOptions: extraOptions,
	}
}

var _ chatdomain.ChatProvider = (*Service)(nil)

// Open builds the account-bound client using the account's OAuth tokens
func (s *Service) Open(ctx context.Context, account *chatdomain.Account, onTokenRefresh chatdomain.TokenUpdateFunc) (chatdomain.RemoteClient, error) {
	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       account.TokenExpiry,
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	// Wrap token source to detect refreshes
	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}
	httpClient := oauth2.NewClient(ctx, wrappedSource)

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, s.extraOptions...)

	chatSrv, err := chat.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Chat service: %w", err)
	}
	dirSrv, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Directory service: %w", err)
	}

	return &client{
		chat:     chatSrv,
		dir:      dirSrv,
		limiter:  s.limiter,
		pageSize: s.pageSize,
	}, nil
}

// client implements chatdomain.RemoteClient for one account
type client struct {
	chat     *chat.Service
	dir      *admin.Service
	limiter  *Limiter
	pageSize int64
}

var _ chatdomain.RemoteClient = (*client)(nil)

func (c *client) GetUser(ctx context.Context, key string) (*identitydomain.DirectoryUser, error) {
	var user *admin.User
	err := c.limiter.Do(ctx, func(ctx context.Context) error {
		var err error
		user, err = c.dir.Users.Get(key).ViewType("domain_public").Context(ctx).Do()
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to look up user %s: %w", key, err)
	}

	result := &identitydomain.DirectoryUser{
		ID:           user.Id,
		PrimaryEmail: user.PrimaryEmail,
	}
	if user.Name != nil {
		result.FullName = user.Name.FullName
	}
	return result, nil
}

func (c *client) ListSpaces(ctx context.Context) ([]chatdomain.RemoteSpace, error) {
	spaces := make([]chatdomain.RemoteSpace, 0)
	pageToken := ""
	for {
		var resp *chat.ListSpacesResponse
		err := c.limiter.Do(ctx, func(ctx context.Context) error {
			call := c.chat.Spaces.List().PageSize(c.pageSize)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("unable to list spaces: %w", err)
		}

		for _, sp := range resp.Spaces {
			spaces = append(spaces, convertSpace(sp))
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return spaces, nil
}

func (c *client) ListMembers(ctx context.Context, spaceID string) ([]chatdomain.RemoteMember, error) {
	members := make([]chatdomain.RemoteMember, 0)
	pageToken := ""
	for {
		var resp *chat.ListMembershipsResponse
		err := c.limiter.Do(ctx, func(ctx context.Context) error {
			call := c.chat.Spaces.Members.List(spaceID).PageSize(c.pageSize)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("unable to list members of %s: %w", spaceID, err)
		}

		for _, m := range resp.Memberships {
			// Group memberships carry no user
			if m.Member == nil || m.Member.Name == "" {
				continue
			}
			members = append(members, chatdomain.RemoteMember{
				ExternalUserID: m.Member.Name,
				DisplayName:    m.Member.DisplayName,
			})
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return members, nil
}

func (c *client) ListMessages(ctx context.Context, spaceID string, since *time.Time) ([]chatdomain.RemoteMessage, error) {
	messages := make([]chatdomain.RemoteMessage, 0)
	pageToken := ""
	for {
		var resp *chat.ListMessagesResponse
		err := c.limiter.Do(ctx, func(ctx context.Context) error {
			call := c.chat.Spaces.Messages.List(spaceID).
				PageSize(c.pageSize).
				OrderBy("createTime ASC")
			if since != nil {
				call = call.Filter(fmt.Sprintf("createTime > %q", since.UTC().Format(time.RFC3339)))
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			resp, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("unable to list messages of %s: %w", spaceID, err)
		}

		for _, m := range resp.Messages {
			msg, ok := convertMessage(m)
			if !ok {
				continue
			}
			messages = append(messages, msg)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return messages, nil
}

func convertSpace(sp *chat.Space) chatdomain.RemoteSpace {
	kind := chatdomain.KindGroup
	if sp.SpaceType == "DIRECT_MESSAGE" || sp.SingleUserBotDm {
		kind = chatdomain.KindDirect
	}
	return chatdomain.RemoteSpace{
		SpaceID:     sp.Name,
		Kind:        kind,
		DisplayName: sp.DisplayName,
	}
}

func convertMessage(m *chat.Message) (chatdomain.RemoteMessage, bool) {
	if m == nil || m.Name == "" {
		return chatdomain.RemoteMessage{}, false
	}
	created, err := time.Parse(time.RFC3339Nano, m.CreateTime)
	if err != nil {
		log.Printf("[GoogleChat] message %s has unparsable createTime %q", m.Name, m.CreateTime)
		return chatdomain.RemoteMessage{}, false
	}
	msg := chatdomain.RemoteMessage{
		MessageID:  m.Name,
		Text:       m.Text,
		CreateTime: created,
	}
	if m.Sender != nil {
		msg.SenderExternalID = m.Sender.Name
		msg.SenderDisplayName = m.Sender.DisplayName
	}
	return msg, true
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusBadRequest
	}
	return false
}
