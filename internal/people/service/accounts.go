package service

import (
	"context"

	"personring/internal/people/models"
	"personring/internal/people/store"
)

// SetPersonalIDAccount binds an external account id to a person. The binding
// collaborator only ever consults the position to check the person is not
// suspended; the account must not be bound to anyone else.
func (s *Service) SetPersonalIDAccount(ctx context.Context, id models.PersonalID, account string) error {
	return s.store.Update(ctx, func(st *store.State) error {
		record, ok := st.People[id]
		if !ok {
			return models.ErrNotPerson
		}
		if record.Position.Suspended() {
			return models.ErrSuspended
		}
		if _, taken := st.Accounts[account]; taken {
			return models.ErrAccountInUse
		}
		if record.Account != nil {
			delete(st.Accounts, *record.Account)
		}
		record.Account = &account
		st.Accounts[account] = id
		return nil
	})
}

// UnsetPersonalIDAccount removes a person's account binding.
func (s *Service) UnsetPersonalIDAccount(ctx context.Context, id models.PersonalID) error {
	return s.store.Update(ctx, func(st *store.State) error {
		record, ok := st.People[id]
		if !ok {
			return models.ErrNotPerson
		}
		if record.Account == nil {
			return models.ErrInvalidAccount
		}
		delete(st.Accounts, *record.Account)
		record.Account = nil
		return nil
	})
}
