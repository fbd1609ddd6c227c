package usecase

import (
	"log"
	"sort"

	chatdomain "chatsync-backend/internal/chat/domain"
	identitydomain "chatsync-backend/internal/identity/domain"
)

const defaultGroupTitle = "Group chat"

func (u *chatUsecase) ListConversations(accountID string) ([]chatdomain.ConversationView, error) {
	views := make([]chatdomain.ConversationView, 0)

	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		log.Printf("[ChatSync] Failed to load account %s: %v", accountID, err)
		return views, nil
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}

	conversations, err := u.conversationRepo.ListByAccount(account.ID)
	if err != nil {
		log.Printf("[ChatSync] Failed to list conversations for %s: %v", account.Email, err)
		return views, nil
	}

	for _, conversation := range conversations {
		view := chatdomain.ConversationView{
			ID:              conversation.ID,
			RemoteSpaceID:   conversation.RemoteSpaceID,
			Kind:            conversation.Kind,
			MessageCount:    conversation.MessageCount,
			LastMessageTime: conversation.LastMessageTime,
		}

		if conversation.Kind != chatdomain.KindDirect {
			view.Title = conversation.Title
			if view.Title == "" {
				view.Title = defaultGroupTitle
			}
			views = append(views, view)
			continue
		}

		participant := u.inference.Infer(conversation, account)
		if participant == nil {
			continue
		}
		u.refreshParticipant(participant)
		view.Participant = participant
		view.Title = participantTitle(participant)
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := views[i].LastMessageTime, views[j].LastMessageTime
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.After(*b)
	})

	return dedupDirect(views), nil
}

// refreshParticipant takes the stored identity when it is trusted
func (u *chatUsecase) refreshParticipant(participant *chatdomain.Participant) {
	var (
		stored *identitydomain.Identity
		err    error
	)
	if participant.ExternalUserID != "" {
		stored, err = u.identityStore.Get(participant.ExternalUserID)
	} else if participant.Email != "" {
		stored, err = u.identityStore.FindByEmail(participant.Email)
	}
	if err != nil {
		log.Printf("[ChatSync] Identity refresh failed: %v", err)
		return
	}
	if !stored.IsTrusted() {
		return
	}
	if participant.ExternalUserID == "" {
		participant.ExternalUserID = stored.ExternalUserID
	}
	if stored.DisplayName != "" {
		participant.DisplayName = stored.DisplayName
	}
	if stored.Email != "" {
		participant.Email = stored.Email
	}
}

// participantTitle: display name, else email local part, else short id
func participantTitle(p *chatdomain.Participant) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if local := identitydomain.EmailLocalPart(p.Email); local != "" {
		return local
	}
	return identitydomain.ShortLabel(p.ExternalUserID)
}

// dedupDirect collapses DIRECT views sharing an external id or an email.
// Views must already be sorted most recent first, so the first one kept wins.
func dedupDirect(views []chatdomain.ConversationView) []chatdomain.ConversationView {
	seenIDs := make(map[string]struct{})
	seenEmails := make(map[string]struct{})
	result := make([]chatdomain.ConversationView, 0, len(views))

	for _, view := range views {
		if view.Kind != chatdomain.KindDirect || view.Participant == nil {
			result = append(result, view)
			continue
		}
		id := identitydomain.NormalizeExternalID(view.Participant.ExternalUserID)
		email := identitydomain.NormalizeEmail(view.Participant.Email)

		if _, dup := seenIDs[id]; id != "" && dup {
			continue
		}
		if _, dup := seenEmails[email]; email != "" && dup {
			continue
		}
		if id != "" {
			seenIDs[id] = struct{}{}
		}
		if email != "" {
			seenEmails[email] = struct{}{}
		}
		result = append(result, view)
	}
	return result
}
