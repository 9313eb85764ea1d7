package repository

import (
	"time"

	"github.com/noteduco342/tourchat-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func preloadReads(db *gorm.DB) *gorm.DB {
	return db.Order("message_reads.read_at ASC, message_reads.user_id ASC")
}

// insertMessageOnce is a no-op when (local_message_id, sender_id) exists,
// matching the unique index idx_local_sender.
func insertMessageOnce(tx *gorm.DB, msg *models.Message) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "local_message_id"}, {Name: "sender_id"}},
		DoNothing: true,
	}).Create(msg)
}

// insertReads skips receipts already recorded under the (message_id, user_id)
// primary key.
func insertReads(tx *gorm.DB, reads []models.MessageRead) *gorm.DB {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reads)
}

// InsertBatchIdempotent stores messages from one sender in a single
// transaction. Rows whose (local_message_id, sender_id) already exist are
// left untouched. The stored records are returned in submission order along
// with the number of rows actually inserted.
func (r *MessageRepository) InsertBatchIdempotent(senderID uint, messages []models.Message) ([]models.Message, int, error) {
	var stored []models.Message
	inserted := 0

	err := r.db.Transaction(func(tx *gorm.DB) error {
		localIDs := make([]string, 0, len(messages))
		for i := range messages {
			msg := messages[i]
			msg.SenderID = senderID
			res := insertMessageOnce(tx, &msg)
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
			localIDs = append(localIDs, msg.LocalMessageID)
		}

		var rows []models.Message
		if err := tx.Preload("Sender").Preload("Reads", preloadReads).
			Where("sender_id = ? AND local_message_id IN ?", senderID, localIDs).
			Find(&rows).Error; err != nil {
			return err
		}

		byLocalID := make(map[string]models.Message, len(rows))
		for _, row := range rows {
			byLocalID[row.LocalMessageID] = row
		}
		stored = make([]models.Message, 0, len(localIDs))
		for _, id := range localIDs {
			row, ok := byLocalID[id]
			if !ok {
				return gorm.ErrRecordNotFound
			}
			stored = append(stored, row)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return stored, inserted, nil
}

// FindGroupMessagesSince returns messages with sent_at strictly after since,
// or all messages when since is nil, ordered by (sent_at, id).
func (r *MessageRepository) FindGroupMessagesSince(groupID uint, since *time.Time) ([]models.Message, error) {
	var messages []models.Message
	q := r.db.Preload("Sender").Preload("Reads", preloadReads).
		Where("group_id = ?", groupID)
	if since != nil {
		q = q.Where("sent_at > ?", *since)
	}
	err := q.Order("sent_at ASC, id ASC").Find(&messages).Error
	return messages, err
}

// MarkRead records readerID as a reader of every listed message that
// belongs to groupID and was not sent by readerID. Other ids are skipped.
func (r *MessageRepository) MarkRead(groupID, readerID uint, messageIDs []uint, at time.Time) (int, error) {
	var affected int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.Message{}).
			Where("id IN ? AND group_id = ? AND sender_id <> ?", messageIDs, groupID, readerID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Model(&models.Message{}).Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":  models.StatusRead,
				"read_at": at,
			}).Error; err != nil {
			return err
		}

		reads := make([]models.MessageRead, 0, len(ids))
		for _, id := range ids {
			reads = append(reads, models.MessageRead{MessageID: id, UserID: readerID, ReadAt: at})
		}
		if err := insertReads(tx, reads).Error; err != nil {
			return err
		}
		affected = len(ids)
		return nil
	})
	return affected, err
}
