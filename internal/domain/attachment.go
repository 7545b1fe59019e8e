package domain

import "time"

// Attachment is a file linked to a message. Created atomically alongside the
// owning message; never mutated afterwards. FilePath is relative to the
// upload root and sanitized (never the user-supplied name).
type Attachment struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	MessageID  int64     `gorm:"column:message_id;index:idx_att_msg" json:"message_id"`
	FileName   string    `gorm:"column:file_name;size:255" json:"file_name"`
	FilePath   string    `gorm:"column:file_path;size:255" json:"file_path"`
	FileSize   int64     `gorm:"column:file_size" json:"file_size"`
	FileType   string    `gorm:"column:file_type;size:100" json:"file_type"`
	UploadedAt time.Time `gorm:"column:uploaded_at;autoCreateTime" json:"uploaded_at"`
}

func (Attachment) TableName() string {
	return "message_attachments"
}
