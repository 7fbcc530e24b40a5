package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateCommand inserts a pending command with a client-generated UUID:
// relying on DB auto-increment here previously caused NOT-NULL
// violations during migrations.
func (s *Store) CreateCommand(ctx context.Context, accountNumber int64, typ CommandType, payload string) (*Command, error) {
	cmd := &Command{
		ID:            uuid.NewString(),
		AccountNumber: accountNumber,
		Type:          typ,
		Payload:       payload,
		Status:        CmdPending,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(cmd).Error; err != nil {
		return nil, err
	}
	return cmd, nil
}

// PendingCommands returns up to N pending commands for an account and
// atomically transitions them to sent — the pending→sent half of
// /api/get_commands' contract. Uses a CAS-style WHERE clause so concurrent
// pollers never double-claim a command.
func (s *Store) PendingCommands(ctx context.Context, accountNumber int64, limit int) ([]Command, error) {
	var claimed []Command
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []Command
		if err := tx.
			Where("account_number = ? AND status = ?", accountNumber, CmdPending).
			Order("created_at ASC").
			Limit(limit).
			Find(&pending).Error; err != nil {
			return err
		}
		for _, c := range pending {
			res := tx.Model(&Command{}).
				Where("id = ? AND status = ?", c.ID, CmdPending).
				Update("status", CmdSent)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				c.Status = CmdSent
				claimed = append(claimed, c)
			}
		}
		return nil
	})
	return claimed, err
}

// CompleteCommand applies the terminal's outcome. Idempotent on command_id:
// a CAS-style UPDATE ... WHERE status='sent' means a repeat call is a
// no-op.
func (s *Store) CompleteCommand(ctx context.Context, cmdID string, success bool, response string) error {
	status := CmdCompleted
	if !success {
		status = CmdFailed
	}
	now := time.Now().UTC()
	return s.DB.WithContext(ctx).Model(&Command{}).
		Where("id = ? AND status = ?", cmdID, CmdSent).
		Updates(map[string]any{
			"status":      status,
			"response":    response,
			"executed_at": now,
		}).Error
}

// CommandByID fetches a single command.
func (s *Store) CommandByID(ctx context.Context, id string) (*Command, error) {
	var cmd Command
	err := s.DB.WithContext(ctx).First(&cmd, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &cmd, err
}

// SweepTimedOutCommands marks any command older than timeout and still
// pending/sent as failed — the recovery path when the cache queue loses
// entries.
func (s *Store) SweepTimedOutCommands(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	res := s.DB.WithContext(ctx).Model(&Command{}).
		Where("status IN ? AND created_at < ?", []CommandStatus{CmdPending, CmdSent}, cutoff).
		Update("status", CmdFailed)
	return res.RowsAffected, res.Error
}

// UnfinishedCommands returns every pending/sent command for an account —
// used to repopulate the cache queue after a restart or eviction.
func (s *Store) UnfinishedCommands(ctx context.Context, accountNumber int64) ([]Command, error) {
	var cmds []Command
	err := s.DB.WithContext(ctx).
		Where("account_number = ? AND status IN ?", accountNumber, []CommandStatus{CmdPending, CmdSent}).
		Find(&cmds).Error
	return cmds, err
}
