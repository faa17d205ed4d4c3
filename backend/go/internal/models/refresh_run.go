package models

import "time"

// RefreshStatus 表示一次目录刷新的结果类别。
type RefreshStatus string

const (
	RefreshSucceeded   RefreshStatus = "succeeded"   // 数据已成功写入索引。
	RefreshEmpty       RefreshStatus = "empty"       // 源数据中没有有效行。
	RefreshUnreachable RefreshStatus = "unreachable" // 数据源无法访问。
	RefreshFailed      RefreshStatus = "failed"      // 其他失败（索引、嵌入等）。
)

// RefreshRun 记录一次目录刷新操作，持久化到 MySQL 以便追溯。
type RefreshRun struct {
	ID         string        `gorm:"primaryKey;size:36" json:"id"`
	Source     string        `gorm:"size:1024;not null" json:"source"`
	Status     RefreshStatus `gorm:"size:32;index;not null" json:"status"`
	Message    string        `gorm:"size:1024" json:"message"`
	Items      int           `json:"items"`
	Skipped    int           `json:"skipped"`
	Pruned     int           `json:"pruned"`
	Error      string        `gorm:"size:2048" json:"error,omitempty"`
	StartedAt  time.Time     `gorm:"index" json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
}
