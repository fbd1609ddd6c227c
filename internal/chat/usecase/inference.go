package usecase

import (
	"log"
	"strings"

	chatdomain "chatsync-backend/internal/chat/domain"
	"chatsync-backend/internal/chat/repository"
	identitydomain "chatsync-backend/internal/identity/domain"
	identityrepo "chatsync-backend/internal/identity/repository"
)

// participantInference finds the counterpart of a conversation for its owning account
type participantInference struct {
	accountRepo      repository.AccountRepository
	conversationRepo repository.ConversationRepository
	identityStore    identityrepo.IdentityRepository
}

func newParticipantInference(accountRepo repository.AccountRepository, conversationRepo repository.ConversationRepository, identityStore identityrepo.IdentityRepository) *participantInference {
	return &participantInference{
		accountRepo:      accountRepo,
		conversationRepo: conversationRepo,
		identityStore:    identityStore,
	}
}

// Infer returns the other participant of the conversation, or nil when nothing is known.
// Order: stored participants, then message senders, then other accounts' rows for the same space.
func (p *participantInference) Infer(conversation *chatdomain.Conversation, owner *chatdomain.Account) *chatdomain.Participant {
	if other := otherParticipant(conversation.Participants, owner); other != nil {
		return other
	}
	if sender := dominantSender(conversation.Messages, owner); sender != nil {
		return sender
	}
	return p.fromOtherAccounts(conversation, owner)
}

// otherParticipant returns the first participant that is not the owner
func otherParticipant(participants chatdomain.ParticipantList, owner *chatdomain.Account) *chatdomain.Participant {
	for i := range participants {
		candidate := participants[i]
		if candidate.ExternalUserID == "" && candidate.Email == "" {
			continue
		}
		if isOwner(owner, candidate.ExternalUserID, candidate.Email) {
			continue
		}
		// an unrecognized owner still shows up under its own name
		if owner.ExternalUserID == "" && candidate.Email == "" && owner.DisplayName != "" &&
			strings.EqualFold(strings.TrimSpace(candidate.DisplayName), strings.TrimSpace(owner.DisplayName)) {
			continue
		}
		return &candidate
	}
	return nil
}

// dominantSender picks the non-owner sender with the most messages; ties go to the first seen
func dominantSender(messages chatdomain.MessageList, owner *chatdomain.Account) *chatdomain.Participant {
	counts := make(map[string]int)
	first := make(map[string]chatdomain.Message)
	var order []string
	for _, m := range messages {
		if m.SenderExternalID == "" || m.IsFromOwningAccount {
			continue
		}
		if isOwner(owner, m.SenderExternalID, m.SenderEmail) {
			continue
		}
		if _, ok := counts[m.SenderExternalID]; !ok {
			order = append(order, m.SenderExternalID)
			first[m.SenderExternalID] = m
		}
		counts[m.SenderExternalID]++
	}

	best := ""
	for _, id := range order {
		if best == "" || counts[id] > counts[best] {
			best = id
		}
	}
	if best == "" {
		return nil
	}
	m := first[best]
	return &chatdomain.Participant{
		ExternalUserID: m.SenderExternalID,
		Email:          m.SenderEmail,
		DisplayName:    m.SenderDisplayName,
	}
}

// fromOtherAccounts handles one-sided conversations: another synced account that
// holds the same remote space is the counterpart.
func (p *participantInference) fromOtherAccounts(conversation *chatdomain.Conversation, owner *chatdomain.Account) *chatdomain.Participant {
	if conversation.RemoteSpaceID == "" {
		return nil
	}
	rows, err := p.conversationRepo.ListBySpace(conversation.RemoteSpaceID)
	if err != nil {
		log.Printf("[ChatSync] Cross-account lookup for %s failed: %v", conversation.RemoteSpaceID, err)
		return nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.AccountID != conversation.AccountID {
			ids = append(ids, row.AccountID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	accounts, err := p.accountRepo.FindByIDs(ids)
	if err != nil {
		log.Printf("[ChatSync] Cross-account lookup for %s failed: %v", conversation.RemoteSpaceID, err)
		return nil
	}

	var (
		bestRow     *chatdomain.Conversation
		bestAccount *chatdomain.Account
	)
	for _, row := range rows {
		account, ok := accounts[row.AccountID]
		if !ok || row.AccountID == conversation.AccountID {
			continue
		}
		if identitydomain.SameEmail(account.Email, owner.Email) {
			continue
		}
		if bestRow == nil || moreRecent(row, bestRow) {
			bestRow, bestAccount = row, account
		}
	}
	if bestAccount == nil {
		return nil
	}

	participant := &chatdomain.Participant{
		ExternalUserID: bestAccount.ExternalUserID,
		Email:          identitydomain.NormalizeEmail(bestAccount.Email),
		DisplayName:    bestAccount.DisplayName,
	}
	if participant.DisplayName == "" || participant.ExternalUserID == "" {
		identity, err := p.identityStore.FindByEmail(bestAccount.Email)
		if err != nil {
			log.Printf("[ChatSync] Identity lookup for %s failed: %v", bestAccount.Email, err)
		}
		if identity != nil {
			if participant.DisplayName == "" {
				participant.DisplayName = identity.DisplayName
			}
			if participant.ExternalUserID == "" {
				participant.ExternalUserID = identity.ExternalUserID
			}
		}
	}
	return participant
}

// moreRecent orders rows by lastMessageTime, rows without messages last
func moreRecent(a, b *chatdomain.Conversation) bool {
	if a.LastMessageTime == nil {
		return false
	}
	if b.LastMessageTime == nil {
		return true
	}
	return a.LastMessageTime.After(*b.LastMessageTime)
}
