package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	chatdomain "chatsync-backend/internal/chat/domain"
	"chatsync-backend/internal/chat/dto"
	"chatsync-backend/internal/chat/repository"
	identitydomain "chatsync-backend/internal/identity/domain"
	identityrepo "chatsync-backend/internal/identity/repository"
	identityusecase "chatsync-backend/internal/identity/usecase"
	"chatsync-backend/pkg/config"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Stored lastMessageTime is moved back by this much for incremental fetches
const incrementalOverlap = time.Minute

// chatUsecase implements ChatUsecase interface
type chatUsecase struct {
	accountRepo      repository.AccountRepository
	conversationRepo repository.ConversationRepository
	identityStore    identityrepo.IdentityRepository
	resolver         identityusecase.Resolver
	provider         chatdomain.ChatProvider
	inference        *participantInference

	spaceConcurrency   int
	accountConcurrency int

	inFlight sync.Map // accountID -> struct{}
	now      func() time.Time
}

// NewChatUsecase creates a new instance of chatUsecase
func NewChatUsecase(accountRepo repository.AccountRepository, conversationRepo repository.ConversationRepository, identityStore identityrepo.IdentityRepository, resolver identityusecase.Resolver, provider chatdomain.ChatProvider, cfg *config.Config) ChatUsecase {
	uc := &chatUsecase{
		accountRepo:        accountRepo,
		conversationRepo:   conversationRepo,
		identityStore:      identityStore,
		resolver:           resolver,
		provider:           provider,
		spaceConcurrency:   4,
		accountConcurrency: 2,
		now:                time.Now,
	}
	if cfg != nil {
		if cfg.SyncSpaceConcurrency > 0 {
			uc.spaceConcurrency = cfg.SyncSpaceConcurrency
		}
		if cfg.SyncAccountConcurrency > 0 {
			uc.accountConcurrency = cfg.SyncAccountConcurrency
		}
	}
	uc.inference = newParticipantInference(accountRepo, conversationRepo, identityStore)
	return uc
}

func (u *chatUsecase) CreateAccount(req *dto.CreateAccountRequest) (*chatdomain.Account, error) {
	existing, err := u.accountRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	account := existing
	if account == nil {
		account = &chatdomain.Account{Email: req.Email}
	}
	if req.DisplayName != "" {
		account.DisplayName = strings.TrimSpace(req.DisplayName)
	}
	account.AccessToken = req.AccessToken
	if req.RefreshToken != "" {
		account.RefreshToken = req.RefreshToken
	}
	if req.TokenExpiry != nil {
		account.TokenExpiry = *req.TokenExpiry
	}

	if existing != nil {
		if err := u.accountRepo.Update(account); err != nil {
			return nil, fmt.Errorf("failed to update account: %w", err)
		}
		return account, nil
	}
	if err := u.accountRepo.Create(account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

func (u *chatUsecase) ListAccounts() ([]*chatdomain.Account, error) {
	return u.accountRepo.List()
}

func (u *chatUsecase) SyncAccount(ctx context.Context, accountID string) (*chatdomain.SyncReport, error) {
	if _, busy := u.inFlight.LoadOrStore(accountID, struct{}{}); busy {
		return nil, ErrSyncInProgress
	}
	defer u.inFlight.Delete(accountID)

	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	report := &chatdomain.SyncReport{AccountID: account.ID, StartedAt: u.now()}

	remote, err := u.provider.Open(ctx, account, u.tokenUpdater(account.ID))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteListing, err)
	}

	u.learnSelf(ctx, account, remote)

	spaces, err := remote.ListSpaces(ctx)
	if err != nil {
		log.Printf("[ChatSync] Listing spaces failed for account %s: %v", account.Email, err)
		return nil, fmt.Errorf("%w: %w", ErrRemoteListing, err)
	}
	log.Printf("[ChatSync] Account %s: %d spaces to reconcile", account.Email, len(spaces))

	listings := u.listMembers(ctx, remote, spaces)
	if account.ExternalUserID == "" {
		u.learnSelfFromMembers(account, spaces, listings)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(u.spaceConcurrency)
	for _, space := range spaces {
		space := space
		g.Go(func() error {
			outcome := u.syncSpace(ctx, account, remote, space, listings[space.SpaceID])
			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome.skipped:
				report.SkippedConversations++
			case outcome.created:
				report.NewConversations++
			default:
				report.UpdatedConversations++
			}
			report.NewMessages += outcome.newMessages
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sync interrupted: %w", err)
	}

	report.FinishedAt = u.now()
	if err := u.accountRepo.MarkSynced(account.ID, report.FinishedAt); err != nil {
		return nil, fmt.Errorf("failed to record sync time: %w", err)
	}

	log.Printf("[ChatSync] Account %s done: %d new, %d updated, %d skipped conversations, %d new messages",
		account.Email, report.NewConversations, report.UpdatedConversations, report.SkippedConversations, report.NewMessages)
	return report, nil
}

func (u *chatUsecase) SyncAll(ctx context.Context) {
	accounts, err := u.accountRepo.List()
	if err != nil {
		log.Printf("[ChatSync] Failed to list accounts: %v", err)
		return
	}

	var g errgroup.Group
	g.SetLimit(u.accountConcurrency)
	for _, account := range accounts {
		accountID := account.ID
		g.Go(func() error {
			if _, err := u.SyncAccount(ctx, accountID); err != nil {
				if errors.Is(err, ErrSyncInProgress) {
					log.Printf("[ChatSync] Account %s already syncing, skipped", accountID)
					return nil
				}
				log.Printf("[ChatSync] Sync failed for account %s: %v", accountID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// tokenUpdater persists refreshed OAuth tokens back onto the account
func (u *chatUsecase) tokenUpdater(accountID string) chatdomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		account, err := u.accountRepo.FindByID(accountID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAccountNotFound
		}
		account.AccessToken = token.AccessToken
		if token.RefreshToken != "" {
			account.RefreshToken = token.RefreshToken
		}
		account.TokenExpiry = token.Expiry
		log.Printf("[ChatSync] Refreshed token stored for account %s", account.Email)
		return u.accountRepo.Update(account)
	}
}

// learnSelf looks the account up in the directory once, so its own messages
// can be recognized by sender id. Failures only cost that recognition.
func (u *chatUsecase) learnSelf(ctx context.Context, account *chatdomain.Account, remote chatdomain.RemoteClient) {
	if account.ExternalUserID != "" {
		return
	}
	user, err := remote.GetUser(ctx, account.Email)
	if err != nil {
		log.Printf("[WARN] Could not look up own directory entry for %s: %v", account.Email, err)
		return
	}
	if user == nil || user.ID == "" {
		return
	}

	account.ExternalUserID = identitydomain.NormalizeExternalID(user.ID)
	if account.DisplayName == "" {
		account.DisplayName = user.FullName
	}
	if err := u.accountRepo.Update(account); err != nil {
		log.Printf("[WARN] Could not store external id for %s: %v", account.Email, err)
	}

	self := identitydomain.NewIdentity(account.ExternalUserID, user.FullName, account.Email,
		identitydomain.ConfidenceRemoteDirectory, identitydomain.ProvenanceRemoteDirectory)
	if _, err := u.identityStore.Upsert(self); err != nil {
		log.Printf("[WARN] Could not store own identity for %s: %v", account.Email, err)
	}
}

// memberListing is the membership fetched for one space, or why it could not be
type memberListing struct {
	members []chatdomain.RemoteMember
	err     error
}

// listMembers fetches every space's membership once per pass
func (u *chatUsecase) listMembers(ctx context.Context, remote chatdomain.RemoteClient, spaces []chatdomain.RemoteSpace) map[string]memberListing {
	listings := make(map[string]memberListing, len(spaces))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(u.spaceConcurrency)
	for _, space := range spaces {
		spaceID := space.SpaceID
		g.Go(func() error {
			members, err := remote.ListMembers(ctx, spaceID)
			mu.Lock()
			listings[spaceID] = memberListing{members: members, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return listings
}

// learnSelfFromMembers recognizes the account among direct-space members when
// the directory could not name it.
func (u *chatUsecase) learnSelfFromMembers(account *chatdomain.Account, spaces []chatdomain.RemoteSpace, listings map[string]memberListing) {
	id, name := selfFromMembers(account.DisplayName, spaces, listings)
	if id == "" {
		log.Printf("[WARN] Could not recognize own member id for %s", account.Email)
		return
	}
	account.ExternalUserID = id
	if account.DisplayName == "" {
		account.DisplayName = name
	}
	log.Printf("[ChatSync] Account %s recognized as %s from space membership", account.Email, id)
	if err := u.accountRepo.Update(account); err != nil {
		log.Printf("[WARN] Could not store external id for %s: %v", account.Email, err)
	}
}

// selfFromMembers returns the one member present in every direct space (two or
// more needed), else the one member whose display name matches the account's.
func selfFromMembers(displayName string, spaces []chatdomain.RemoteSpace, listings map[string]memberListing) (string, string) {
	counts := make(map[string]int)
	names := make(map[string]string)
	direct := 0
	for _, space := range spaces {
		if space.Kind != chatdomain.KindDirect {
			continue
		}
		listing, ok := listings[space.SpaceID]
		if !ok || listing.err != nil || len(listing.members) == 0 {
			continue
		}
		direct++
		seen := make(map[string]struct{})
		for _, m := range listing.members {
			id := identitydomain.NormalizeExternalID(m.ExternalUserID)
			if id == "" {
				continue
			}
			if name := strings.TrimSpace(m.DisplayName); name != "" {
				names[id] = name
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			counts[id]++
		}
	}

	if direct >= 2 {
		common := ""
		shared := 0
		for id, n := range counts {
			if n == direct {
				common = id
				shared++
			}
		}
		if shared == 1 {
			return common, names[common]
		}
	}

	want := strings.TrimSpace(displayName)
	if want == "" {
		return "", ""
	}
	match := ""
	for id, name := range names {
		if !strings.EqualFold(name, want) {
			continue
		}
		if match != "" {
			return "", ""
		}
		match = id
	}
	if match == "" {
		return "", ""
	}
	return match, names[match]
}

type spaceOutcome struct {
	created     bool
	skipped     bool
	newMessages int
}

func (u *chatUsecase) syncSpace(ctx context.Context, account *chatdomain.Account, remote chatdomain.RemoteClient, space chatdomain.RemoteSpace, listing memberListing) spaceOutcome {
	existing, err := u.conversationRepo.FindByAccountAndSpace(account.ID, space.SpaceID)
	if err != nil {
		log.Printf("[ChatSync] Failed to load conversation %s: %v", space.SpaceID, err)
		return spaceOutcome{skipped: true}
	}

	members, membersErr := listing.members, listing.err
	if membersErr != nil {
		log.Printf("[WARN] Members of %s unavailable, deriving from senders: %v", space.SpaceID, membersErr)
	}

	var since *time.Time
	if existing != nil && existing.LastMessageTime != nil {
		s := existing.LastMessageTime.Add(-incrementalOverlap)
		since = &s
	}
	remoteMessages, err := remote.ListMessages(ctx, space.SpaceID, since)
	if err != nil {
		log.Printf("[ChatSync] Skipping space %s, messages unavailable: %v", space.SpaceID, err)
		return spaceOutcome{skipped: true}
	}

	rc := identitydomain.ResolveContext{
		AccountID:         account.ID,
		AccountEmail:      account.Email,
		AccountExternalID: account.ExternalUserID,
		AccountName:       account.DisplayName,
		SpaceID:           space.SpaceID,
		Directory:         remote,
	}
	memberIDs := make([]string, 0, len(members))
	for _, m := range members {
		rc.Members = append(rc.Members, identitydomain.MemberHint{
			ExternalUserID: m.ExternalUserID,
			DisplayName:    m.DisplayName,
			Email:          m.Email,
		})
		memberIDs = append(memberIDs, m.ExternalUserID)
	}
	senderIDs := make([]string, 0, len(remoteMessages))
	for _, m := range remoteMessages {
		senderIDs = append(senderIDs, m.SenderExternalID)
	}

	// Everyone is resolved before any message is built
	resolved := make(map[string]identitydomain.Identity)
	for _, id := range uniqueIDs(memberIDs, senderIDs) {
		resolved[id] = u.resolver.Resolve(ctx, id, rc)
	}

	messages := make([]chatdomain.Message, 0, len(remoteMessages))
	for _, m := range remoteMessages {
		msg := chatdomain.Message{
			RemoteMessageID:   m.MessageID,
			Text:              m.Text,
			CreateTime:        m.CreateTime,
			SenderExternalID:  identitydomain.NormalizeExternalID(m.SenderExternalID),
			SenderDisplayName: m.SenderDisplayName,
		}
		applySender(&msg, resolved, account)
		messages = append(messages, msg)
	}

	var participants chatdomain.ParticipantList
	if membersErr == nil && len(memberIDs) > 0 {
		participants = participantsFor(uniqueIDs(memberIDs), resolved)
	} else {
		derived := participantsFor(uniqueIDs(senderIDs), resolved)
		if existing != nil {
			participants = mergeParticipants(existing.Participants, derived)
		} else {
			participants = derived
		}
	}

	if existing == nil {
		conversation := &chatdomain.Conversation{
			AccountID:     account.ID,
			RemoteSpaceID: space.SpaceID,
			Kind:          space.Kind,
			Title:         strings.TrimSpace(space.DisplayName),
			Participants:  participants,
		}
		added := conversation.AppendMessages(messages)
		u.backfillParticipant(conversation, account)
		if err := u.conversationRepo.Create(conversation); err != nil {
			log.Printf("[ChatSync] Failed to store conversation %s: %v", space.SpaceID, err)
			return spaceOutcome{skipped: true}
		}
		return spaceOutcome{created: true, newMessages: added}
	}

	existing.Kind = space.Kind
	if title := strings.TrimSpace(space.DisplayName); title != "" {
		existing.Title = title
	}
	for i := range existing.Messages {
		applySender(&existing.Messages[i], resolved, account)
	}
	added := existing.AppendMessages(messages)
	existing.Participants = participants
	u.backfillParticipant(existing, account)
	if err := u.conversationRepo.Update(existing); err != nil {
		log.Printf("[ChatSync] Failed to update conversation %s: %v", space.SpaceID, err)
		return spaceOutcome{skipped: true}
	}
	return spaceOutcome{newMessages: added}
}

// backfillParticipant adds the inferred counterpart to a DIRECT row that has none
func (u *chatUsecase) backfillParticipant(conversation *chatdomain.Conversation, account *chatdomain.Account) {
	if conversation.Kind != chatdomain.KindDirect {
		return
	}
	if otherParticipant(conversation.Participants, account) != nil {
		return
	}
	if p := u.inference.Infer(conversation, account); p != nil {
		conversation.Participants = append(conversation.Participants, *p)
	}
}

// applySender refreshes the denormalized sender fields from this pass's resolutions
func applySender(msg *chatdomain.Message, resolved map[string]identitydomain.Identity, account *chatdomain.Account) {
	identity, ok := resolved[identitydomain.NormalizeExternalID(msg.SenderExternalID)]
	if !ok {
		return
	}
	if identity.DisplayName != "" {
		msg.SenderDisplayName = identity.DisplayName
	}
	msg.SenderEmail = identity.Email
	msg.SenderDomain = identity.EmailDomain
	msg.IsFromOwningAccount = isOwner(account, identity.ExternalUserID, identity.Email)
}

func isOwner(account *chatdomain.Account, externalUserID, email string) bool {
	if identitydomain.SameEmail(account.Email, email) {
		return true
	}
	return account.ExternalUserID != "" && externalUserID != "" &&
		identitydomain.NormalizeExternalID(account.ExternalUserID) == identitydomain.NormalizeExternalID(externalUserID)
}

// uniqueIDs returns the normalized, non-empty ids in first-seen order
func uniqueIDs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, list := range lists {
		for _, raw := range list {
			id := identitydomain.NormalizeExternalID(raw)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func participantsFor(ids []string, resolved map[string]identitydomain.Identity) chatdomain.ParticipantList {
	participants := make(chatdomain.ParticipantList, 0, len(ids))
	for _, id := range ids {
		identity := resolved[id]
		participants = append(participants, chatdomain.Participant{
			ExternalUserID: id,
			Email:          identity.Email,
			DisplayName:    identity.DisplayName,
		})
	}
	return participants
}

// mergeParticipants keeps stored participants and adds derived ones not present yet;
// derived entries refresh the stored ones they match.
func mergeParticipants(stored, derived chatdomain.ParticipantList) chatdomain.ParticipantList {
	merged := make(chatdomain.ParticipantList, 0, len(stored)+len(derived))
	merged = append(merged, stored...)
	for _, d := range derived {
		found := false
		for i := range merged {
			if merged[i].ExternalUserID != "" && merged[i].ExternalUserID == d.ExternalUserID {
				merged[i] = d
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, d)
		}
	}
	return merged
}
